package ip

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IsValidIP reports whether s parses as an IPv4 or IPv6 address.
func IsValidIP(s string) bool {
	return net.ParseIP(strings.TrimSpace(s)) != nil
}

// IsValidIPv4 reports whether s is a dotted-quad IPv4 address.
func IsValidIPv4(s string) bool {
	ip := net.ParseIP(strings.TrimSpace(s))
	return ip != nil && ip.To4() != nil && !strings.Contains(s, ":")
}

// NetmaskToPrefix converts a netmask to a prefix length.
// It accepts either a dotted decimal mask ("255.255.255.0") or a
// bare prefix length ("24"). Non-contiguous masks are rejected.
func NetmaskToPrefix(mask string) (int, error) {
	mask = strings.TrimSpace(mask)
	mask = strings.TrimPrefix(mask, "/")
	if mask == "" {
		return 0, errors.New("netmask is empty")
	}

	if n, err := strconv.Atoi(mask); err == nil {
		if n < 0 || n > 32 {
			return 0, errors.Errorf("prefix length %d out of range 0-32", n)
		}
		return n, nil
	}

	maskIP := net.ParseIP(mask)
	if maskIP == nil || maskIP.To4() == nil {
		return 0, errors.Errorf("invalid netmask %q", mask)
	}
	ones, bits := net.IPMask(maskIP.To4()).Size()
	if bits == 0 {
		return 0, errors.Errorf("netmask %q is not contiguous", mask)
	}
	return ones, nil
}

// InterfaceAddress builds the "address/prefix" form accepted by "ip addr add".
func InterfaceAddress(address, netmask string) (string, error) {
	address = strings.TrimSpace(address)
	if !IsValidIPv4(address) {
		return "", errors.Errorf("invalid IPv4 address %q", address)
	}
	prefix, err := NetmaskToPrefix(netmask)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d", address, prefix), nil
}

// NormalizeCIDR ensures a CIDR string is in "ip/prefixlen" format.
// It converts "ip/netmask" to "ip/prefixlen".
// If input is a plain IP, it appends /32 for IPv4 or /128 for IPv6.
func NormalizeCIDR(ipAddressOrCIDR string) string {
	ipAddressOrCIDR = strings.TrimSpace(ipAddressOrCIDR)
	ipPart, maskPart, found := strings.Cut(ipAddressOrCIDR, "/")
	if !found {
		ip := net.ParseIP(ipAddressOrCIDR)
		if ip == nil {
			return ipAddressOrCIDR
		}
		if ip.To4() != nil {
			return ipAddressOrCIDR + "/32"
		}
		return ipAddressOrCIDR + "/128"
	}

	ipPart, maskPart = strings.TrimSpace(ipPart), strings.TrimSpace(maskPart)
	if _, err := strconv.Atoi(maskPart); err == nil {
		return ipPart + "/" + maskPart
	}
	if strings.Contains(maskPart, ".") {
		if prefix, err := NetmaskToPrefix(maskPart); err == nil {
			return fmt.Sprintf("%s/%d", ipPart, prefix)
		}
	}
	return ipAddressOrCIDR
}
