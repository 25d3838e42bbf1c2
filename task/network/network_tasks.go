package network

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/ip"
	"github.com/mensylisir/xmadmin/step/privcmd"
	"github.com/mensylisir/xmadmin/task"
	"github.com/mensylisir/xmadmin/util"
)

const (
	maxSSIDLength       = 32
	minPassphraseLength = 8
	maxPassphraseLength = 63
)

// DefaultPingHost is pinged when no host is given.
const DefaultPingHost = "8.8.8.8"

// interfacePattern accepts kernel interface names (IFNAMSIZ - 1 bytes).
var interfacePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.:@-]{0,14}$`)

// hostnamePattern accepts RFC 1123 host names.
var hostnamePattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\.?$`)

func validateInterface(name string) error {
	if !interfacePattern.MatchString(name) {
		return errors.Errorf("invalid interface name %q", name)
	}
	return nil
}

// NetworkTask runs the privileged commands of one network change.
type NetworkTask struct {
	task.BaseTask
}

func newNetworkTask(name, description string) *NetworkTask {
	return &NetworkTask{BaseTask: task.NewBaseTask(name, description)}
}

// Output returns the stdout of every step of the last run, in order.
func (t *NetworkTask) Output() string {
	var b strings.Builder
	for _, r := range t.Results() {
		b.WriteString(r.Output)
	}
	return b.String()
}

func newQueryTask(name, description string, args ...string) *NetworkTask {
	t := newNetworkTask(name, description)
	t.AddStep(privcmd.NewPrivilegedCommandStep(name, description, args...))
	return t
}

// NewWifiScanTask rescans and lists the wireless networks in range.
func NewWifiScanTask() *NetworkTask {
	return newQueryTask("wifi-scan", "Scan wireless networks",
		"nmcli", "device", "wifi", "list", "--rescan", "yes")
}

// NewSavedConnectionsTask lists the connection profiles NetworkManager knows.
func NewSavedConnectionsTask() *NetworkTask {
	return newQueryTask("saved-connections", "List saved connections",
		"nmcli", "connection", "show")
}

// NewWifiPasswordTask shows the SSID and secret of the active wireless
// connection.
func NewWifiPasswordTask() *NetworkTask {
	return newQueryTask("wifi-password", "Show the active wireless connection",
		"nmcli", "device", "wifi", "show-password")
}

// NewDeviceStatusTask lists the state of every network device.
func NewDeviceStatusTask() *NetworkTask {
	return newQueryTask("device-status", "Show network device status",
		"nmcli", "device", "status")
}

// NewPingTask sends four echo requests to host, DefaultPingHost when empty.
func NewPingTask(host string) (*NetworkTask, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultPingHost
	}
	if !ip.IsValidIP(host) && (len(host) > 253 || !hostnamePattern.MatchString(host)) {
		return nil, errors.Errorf("invalid host %q", host)
	}
	return newQueryTask("ping", "Test connectivity to "+host, "ping", "-c", "4", host), nil
}

// NewLinkTask brings iface up or down.
func NewLinkTask(iface string, up bool) (*NetworkTask, error) {
	if err := validateInterface(iface); err != nil {
		return nil, err
	}
	state := "down"
	if up {
		state = "up"
	}
	t := newNetworkTask("link-"+state, "Set "+iface+" "+state)
	t.AddStep(privcmd.NewPrivilegedCommandStep("ip-link", "Set link "+iface+" "+state,
		"ip", "link", "set", iface, state))
	return t, nil
}

// NewStaticIPTask assigns address/netmask to iface and, when gateway is
// set, adds a default route through it. netmask may be dotted or a prefix
// length; when empty, address may carry its own mask ("10.0.0.5/24").
func NewStaticIPTask(iface, address, netmask, gateway string) (*NetworkTask, error) {
	if err := validateInterface(iface); err != nil {
		return nil, err
	}
	if netmask == "" {
		address, netmask, _ = strings.Cut(ip.NormalizeCIDR(address), "/")
	}
	cidr, err := ip.InterfaceAddress(address, netmask)
	if err != nil {
		return nil, err
	}
	if gateway != "" && !ip.IsValidIPv4(gateway) {
		return nil, errors.Errorf("invalid gateway address %q", gateway)
	}

	t := newNetworkTask("static-ip", "Configure "+cidr+" on "+iface)
	t.AddStep(privcmd.NewPrivilegedCommandStep("ip-addr-add", "Add address "+cidr+" to "+iface,
		"ip", "addr", "add", cidr, "dev", iface))
	if gateway != "" {
		t.AddStep(privcmd.NewPrivilegedCommandStep("ip-route-default", "Route default traffic via "+gateway,
			"ip", "route", "add", "default", "via", gateway))
	}
	return t, nil
}

// NewDHCPTask releases and renews the DHCP lease of iface.
func NewDHCPTask(iface string) (*NetworkTask, error) {
	if err := validateInterface(iface); err != nil {
		return nil, err
	}
	t := newNetworkTask("dhcp", "Renew DHCP lease on "+iface)
	t.AddStep(privcmd.NewPrivilegedCommandStep("dhclient-release", "Release lease on "+iface,
		"dhclient", "-r", iface))
	t.AddStep(privcmd.NewPrivilegedCommandStep("dhclient-renew", "Request lease on "+iface,
		"dhclient", iface))
	return t, nil
}

// NewDNSTask replaces the resolver configuration with one nameserver line
// per unique server, in the given order.
func NewDNSTask(servers []string) (*NetworkTask, error) {
	servers = util.UniqueStrings(servers)
	if len(servers) == 0 {
		return nil, errors.New("at least one DNS server is required")
	}
	var b strings.Builder
	for _, s := range servers {
		if !ip.IsValidIP(s) {
			return nil, errors.Errorf("invalid DNS server address %q", s)
		}
		b.WriteString("nameserver ")
		b.WriteString(s)
		b.WriteByte('\n')
	}

	t := newNetworkTask("dns", "Set DNS servers to "+strings.Join(servers, ", "))
	t.AddStep(privcmd.NewPrivilegedInputStep("write-resolv-conf", "Write "+common.DefaultResolvConf,
		[]byte(b.String()), false, "tee", common.DefaultResolvConf))
	return t, nil
}

// NewWifiConnectTask joins a wireless network. The passphrase is written to
// nmcli's stdin through --ask and never appears on argv. An empty passphrase
// joins an open network.
func NewWifiConnectTask(ssid string, passphrase []byte) (*NetworkTask, error) {
	if ssid == "" || len(ssid) > maxSSIDLength {
		return nil, errors.Errorf("SSID must be 1 to %d bytes long", maxSSIDLength)
	}
	if strings.ContainsAny(ssid, "\x00\n") {
		return nil, errors.Errorf("SSID %q contains an invalid character", ssid)
	}

	t := newNetworkTask("wifi-connect", "Connect to wireless network "+ssid)
	if len(passphrase) == 0 {
		t.AddStep(privcmd.NewPrivilegedCommandStep("nmcli-connect", "Join open network "+ssid,
			"nmcli", "device", "wifi", "connect", ssid))
		return t, nil
	}

	if len(passphrase) < minPassphraseLength || len(passphrase) > maxPassphraseLength {
		return nil, errors.Errorf("passphrase must be %d to %d characters long", minPassphraseLength, maxPassphraseLength)
	}
	if strings.ContainsAny(string(passphrase), "\r\n") {
		return nil, errors.New("passphrase cannot contain line breaks")
	}
	input := append(append([]byte(nil), passphrase...), '\n')
	t.AddStep(privcmd.NewPrivilegedInputStep("nmcli-connect", "Join network "+ssid,
		input, true, "nmcli", "--ask", "device", "wifi", "connect", ssid))
	return t, nil
}

// NewWifiDisconnectTask disconnects iface.
func NewWifiDisconnectTask(iface string) (*NetworkTask, error) {
	if err := validateInterface(iface); err != nil {
		return nil, err
	}
	t := newNetworkTask("wifi-disconnect", "Disconnect "+iface)
	t.AddStep(privcmd.NewPrivilegedCommandStep("nmcli-disconnect", "Disconnect device "+iface,
		"nmcli", "device", "disconnect", iface))
	return t, nil
}
