package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/runtime"
)

// LineReader reads one edited line per prompt. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

func newShellCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell that asks for the sudo password once",
		Long: `Start an interactive shell. Every line is one ` + common.AppName + ` command,
for example "user add alice" or "--host web1 proc kill 4242". The sudo password
is asked the first time it is needed and kept until "exit" or "auth forget".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.rt != nil {
				return errors.New("already inside a shell")
			}
			// The session, and with it the credential cache, outlives every line.
			if _, err := app.session(args); err != nil {
				return err
			}
			return app.shell(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func (a *App) lineReader() LineReader {
	if a.NewLineReader != nil {
		return a.NewLineReader()
	}
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)
	l.SetTabCompletionStyle(liner.TabPrints)
	l.SetCompleter(completer(NewRootCmd(a)))
	return l
}

func (a *App) shell(ctx context.Context, out, errOut io.Writer) error {
	line := a.lineReader()
	defer line.Close()

	for {
		input, err := line.Prompt(a.shellPrompt())
		if err == liner.ErrPromptAborted {
			fmt.Fprintln(out)
			continue
		} else if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		} else if err != nil {
			return errors.Wrap(err, "failed to read command line")
		}

		input = strings.TrimSpace(input)
		if input == "" || strings.HasPrefix(input, "#") {
			continue
		}
		line.AppendHistory(input)

		switch input {
		case "exit", "quit":
			return nil
		case "help", "?":
			input = "--help"
		}

		words, err := shellquote.Split(input)
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			continue
		}
		if err := a.Run(ctx, words); err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// shellPrompt shows the target and whether a credential is cached.
func (a *App) shellPrompt() string {
	r := a.rt.Runner()
	mark := "$"
	if r.Authenticated() {
		mark = "#"
	}
	return fmt.Sprintf("%s@%s%s ", common.AppName, r.Target(), mark)
}

// completer completes command and subcommand names of root.
func completer(root *cobra.Command) func(string) []string {
	return func(line string) []string {
		fields := strings.Fields(line)
		trailingSpace := strings.HasSuffix(line, " ")

		cmd := root
		consumed := fields
		partial := ""
		if !trailingSpace && len(fields) > 0 {
			consumed, partial = fields[:len(fields)-1], fields[len(fields)-1]
		}
		for _, f := range consumed {
			next := findSubcommand(cmd, f)
			if next == nil {
				return nil
			}
			cmd = next
		}

		prefix := strings.Join(consumed, " ")
		if prefix != "" {
			prefix += " "
		}
		var out []string
		for _, c := range cmd.Commands() {
			if c.Hidden || !c.IsAvailableCommand() {
				continue
			}
			if strings.HasPrefix(c.Name(), partial) {
				out = append(out, prefix+c.Name()+" ")
			}
		}
		sort.Strings(out)
		return out
	}
}

func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return c
		}
	}
	return nil
}
