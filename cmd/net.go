package cmd

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/runtime"
	"github.com/mensylisir/xmadmin/task/network"
	"github.com/mensylisir/xmadmin/util"
)

const defaultWifiInterface = "wlan0"

func newNetCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "net",
		Aliases: []string{"network"},
		Short:   "Configure network interfaces, DNS and Wi-Fi",
	}
	cmd.AddCommand(
		newNetLinkCmd(app, args),
		newNetStaticCmd(app, args),
		newNetDHCPCmd(app, args),
		newNetDNSCmd(app, args),
		newNetWifiConnectCmd(app, args),
		newNetWifiDisconnectCmd(app, args),
		newNetQueryCmd(app, args, "wifi-scan", "Rescan and list wireless networks in range", network.NewWifiScanTask),
		newNetQueryCmd(app, args, "saved", "List saved connection profiles", network.NewSavedConnectionsTask),
		newNetQueryCmd(app, args, "wifi-password", "Show the SSID and passphrase of the active wireless connection", network.NewWifiPasswordTask),
		newNetQueryCmd(app, args, "status", "Show the state of every network device", network.NewDeviceStatusTask),
		newNetPingCmd(app, args),
	)
	return cmd
}

// runQuery runs t and prints what its commands wrote to stdout, also when
// they failed.
func (a *App) runQuery(cmd *cobra.Command, args *runtime.CliArgs, t *network.NetworkTask) error {
	err := a.runTask(cmd, args, t)
	_, _ = io.WriteString(cmd.OutOrStdout(), t.Output())
	return err
}

func newNetQueryCmd(app *App, args *runtime.CliArgs, use, short string, newTask func() *network.NetworkTask) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runQuery(cmd, args, newTask())
		},
	}
}

func newNetPingCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [HOST]",
		Short: "Send four echo requests to HOST (default " + network.DefaultPingHost + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			var host string
			if len(a) == 1 {
				host = a[0]
			}
			t, err := network.NewPingTask(host)
			if err != nil {
				return err
			}
			return app.runQuery(cmd, args, t)
		},
	}
}

func newNetLinkCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	return &cobra.Command{
		Use:       "link IFACE up|down",
		Short:     "Bring an interface up or down",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, a []string) error {
			var up bool
			switch a[1] {
			case "up":
				up = true
			case "down":
			default:
				return errors.Errorf("link state must be up or down, got %q", a[1])
			}
			t, err := network.NewLinkTask(a[0], up)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
}

func newNetStaticCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	var netmask, gateway string
	cmd := &cobra.Command{
		Use:   "static IFACE ADDRESS[/PREFIX]",
		Short: "Assign a static IPv4 address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, a []string) error {
			t, err := network.NewStaticIPTask(a[0], a[1], netmask, gateway)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
	cmd.Flags().StringVarP(&netmask, "netmask", "m", "", "netmask, dotted (255.255.255.0) or prefix length (24)")
	cmd.Flags().StringVarP(&gateway, "gateway", "g", "", "default gateway")
	return cmd
}

func newNetDHCPCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "dhcp IFACE",
		Short: "Renew the DHCP lease of an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			t, err := network.NewDHCPTask(a[0])
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
}

func newNetDNSCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "dns SERVER[,SERVER...]...",
		Short: "Replace the DNS servers in " + common.DefaultResolvConf,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			t, err := network.NewDNSTask(splitList(a))
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
}

func newNetWifiConnectCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "wifi-connect SSID",
		Short: "Join a wireless network; the passphrase is prompted for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			var passphrase []byte
			if !open {
				p, err := app.secretPrompter(args)
				if err != nil {
					return err
				}
				if passphrase, err = p.ReadSecret(cmd.Context(), "Passphrase for "+a[0]+": "); err != nil {
					return err
				}
				defer util.Wipe(passphrase)
				if len(passphrase) == 0 {
					return errors.New("empty passphrase; use --open for networks without one")
				}
			}
			t, err := network.NewWifiConnectTask(a[0], passphrase)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "the network has no passphrase")
	return cmd
}

func newNetWifiDisconnectCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "wifi-disconnect [IFACE]",
		Short: "Disconnect a wireless interface (default " + defaultWifiInterface + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			iface := defaultWifiInterface
			if len(a) == 1 {
				iface = a[0]
			}
			t, err := network.NewWifiDisconnectTask(iface)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
}
