// Package cmd wires the command-line interface of xmadmin.
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/config"
	"github.com/mensylisir/xmadmin/connector"
	"github.com/mensylisir/xmadmin/executor"
	"github.com/mensylisir/xmadmin/logger"
	"github.com/mensylisir/xmadmin/runtime"
	"github.com/mensylisir/xmadmin/task"
	"github.com/mensylisir/xmadmin/terminal"
	"github.com/mensylisir/xmadmin/util"
)

// RuntimeFactory builds the session runtime once the configuration is known.
type RuntimeFactory func(cfg *config.AppConfig, prompter executor.Prompter) (runtime.Runtime, error)

// App holds the state shared by every command of one process: the standard
// streams and the session, which is created on first use and reused by the
// interactive shell.
type App struct {
	In  *os.File
	Out io.Writer
	Err io.Writer

	// Prompter reads secrets. A terminal prompter is built when nil.
	Prompter executor.Prompter
	// NewRuntime builds the session. A runtime.Session over
	// connector.NewDialer is used when nil.
	NewRuntime RuntimeFactory
	// NewLineReader opens the line editor of the interactive shell.
	NewLineReader func() LineReader

	cfg *config.AppConfig
	rt  runtime.Runtime
}

// NewApp returns an App bound to the process's standard streams.
func NewApp() *App {
	return &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp()
	err := app.Run(ctx, os.Args[1:])
	if closeErr := app.Close(); closeErr != nil {
		fmt.Fprintf(app.Err, "Warning: %v\n", closeErr)
	}
	if err != nil {
		fmt.Fprintf(app.Err, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// Run executes one command line against the app.
func (a *App) Run(ctx context.Context, args []string) error {
	root := NewRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Close wipes every cached credential of the session.
func (a *App) Close() error {
	if a.rt == nil {
		return nil
	}
	err := a.rt.Close()
	a.rt = nil
	return err
}

// NewRootCmd builds a fresh command tree bound to app. Flags are parsed into
// a new CliArgs each time, so the shell can run one tree per line.
func NewRootCmd(app *App) *cobra.Command {
	args := runtime.NewCliArgs()

	root := &cobra.Command{
		Use:   common.AppName,
		Short: "Run administrative commands with elevated privileges",
		Long: common.AppName + ` runs account, network and process administration commands
through sudo. The password is asked once per session and kept in memory only.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			args.TimeoutSet = cmd.Flags().Changed("timeout")
			if args.Interactive && args.NonInteractive {
				return errors.New("--interactive and --non-interactive cannot be used together")
			}
			return nil
		},
	}
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	if app.In != nil {
		root.SetIn(app.In)
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&args.ConfigPath, "config", "c", "", "config file (default ~/"+common.ConfigDirName+"/"+common.ConfigFileName+")")
	flags.StringVar(&args.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&args.LogDir, "log-dir", "", "write logs to rotating files in this directory")
	flags.BoolVarP(&args.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&args.Host, "host", "H", "", "target host name from the config, or localhost")
	flags.DurationVar(&args.Timeout, "timeout", 0, "per-command timeout, 0 disables it")
	flags.BoolVar(&args.IgnoreErr, "ignore-errors", false, "keep running the remaining steps after a failure")
	flags.BoolVar(&args.NonInteractive, "non-interactive", false, "never prompt; fail when a password is needed")
	flags.BoolVar(&args.Interactive, "interactive", false, "prompt even when a CI environment is detected")

	root.AddCommand(
		newAuthCmd(app, args),
		newUserCmd(app, args),
		newNetCmd(app, args),
		newProcCmd(app, args),
		newRunCmd(app, args),
		newShellCmd(app, args),
		newVersionCmd(),
	)
	return root
}

// session returns the session runtime, creating it on first use. Later
// calls reuse the session; a --host or --ignore-errors given on a later
// shell line applies to that line only.
func (a *App) session(args *runtime.CliArgs) (runtime.Runtime, error) {
	if a.rt == nil {
		cfg, err := args.LoadConfig()
		if err != nil {
			return nil, err
		}
		if err := logger.InitGlobalLogger(logger.Options{
			Dir:     cfg.Log.Dir,
			Level:   cfg.LogLevel(),
			Verbose: cfg.Log.Verbose,
			Output:  a.Err,
		}); err != nil {
			return nil, err
		}
		a.cfg = cfg
		rt, err := a.runtimeFactory()(cfg, a.prompter(cfg, args))
		if err != nil {
			return nil, err
		}
		a.rt = rt
		return rt, nil
	}

	if args.Host == "" && !args.IgnoreErr {
		return a.rt, nil
	}
	o := &overrideRuntime{Runtime: a.rt, runner: a.rt.Runner(), ignoreErr: a.rt.IgnoreError() || args.IgnoreErr}
	if args.Host != "" {
		cfg := *a.rt.Config()
		cfg.Target = args.Host
		host, err := cfg.ResolveTarget()
		if err != nil {
			return nil, err
		}
		if o.runner, err = a.rt.RunnerFor(host); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (a *App) runtimeFactory() RuntimeFactory {
	if a.NewRuntime != nil {
		return a.NewRuntime
	}
	return func(cfg *config.AppConfig, prompter executor.Prompter) (runtime.Runtime, error) {
		return runtime.NewSession(cfg, runtime.Options{
			Dialer:   connector.NewDialer(),
			Prompter: prompter,
			Out:      a.Out,
			Log:      logger.Log,
		})
	}
}

func (a *App) prompter(cfg *config.AppConfig, args *runtime.CliArgs) executor.Prompter {
	if a.Prompter == nil {
		a.Prompter = terminal.NewPasswordPrompter(terminal.PromptOptions{
			In:             a.In,
			Out:            a.Err,
			NonInteractive: !interactive(cfg, args),
		})
	}
	return a.Prompter
}

// interactive reports whether prompting is allowed. --interactive wins over
// both detection and a nonInteractive config file.
func interactive(cfg *config.AppConfig, args *runtime.CliArgs) bool {
	return terminal.NewInteractiveDetector(terminal.DetectorOptions{
		ForceInteractive:    args.Interactive,
		ForceNonInteractive: cfg.NonInteractive,
	}).IsInteractive()
}

// secretPrompter returns the prompter before the session exists, loading
// the config only to learn whether prompting is allowed.
func (a *App) secretPrompter(args *runtime.CliArgs) (executor.Prompter, error) {
	if a.Prompter != nil {
		return a.Prompter, nil
	}
	cfg := a.cfg
	if cfg == nil {
		var err error
		if cfg, err = args.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return a.prompter(cfg, args), nil
}

// runTask runs t in the session and reports through the task summary. When
// no session can be opened the steps are still post-processed so that any
// secret they hold is wiped.
func (a *App) runTask(cmd *cobra.Command, args *runtime.CliArgs, t task.Task) error {
	rt, err := a.session(args)
	if err != nil {
		_ = t.Post(nil, logger.Log.WithField(common.TaskName, t.Name()), err)
		return err
	}
	return task.Run(cmd.Context(), rt, t)
}

// overrideRuntime redirects a session to another host's runner for one
// command line.
type overrideRuntime struct {
	runtime.Runtime
	runner    executor.Runner
	ignoreErr bool
}

func (o *overrideRuntime) Runner() executor.Runner {
	return o.runner
}

func (o *overrideRuntime) IgnoreError() bool {
	return o.ignoreErr
}

// Close is a no-op; the underlying session is closed by the App.
func (o *overrideRuntime) Close() error {
	return nil
}

// readNewSecret asks for a secret twice and returns it when both entries
// match. The caller wipes the result.
func readNewSecret(cmd *cobra.Command, p executor.Prompter, what string) ([]byte, error) {
	first, err := p.ReadSecret(cmd.Context(), "New "+what+": ")
	if err != nil {
		return nil, err
	}
	second, err := p.ReadSecret(cmd.Context(), "Retype new "+what+": ")
	if err != nil {
		util.Wipe(first)
		return nil, err
	}
	defer util.Wipe(second)
	if !bytes.Equal(first, second) {
		util.Wipe(first)
		return nil, errors.Errorf("%ss do not match", what)
	}
	return first, nil
}
