package ssrf

import "net"

// Range names the address-range taxonomy spec.md §4.4 requires: the same
// categories a standard ipaddr library classifies into. Only Unicast
// passes validation; everything else is rejected.
type Range string

const (
	Unicast     Range = "unicast"
	Private     Range = "private"
	LinkLocal   Range = "linkLocal"
	Loopback    Range = "loopback"
	Multicast   Range = "multicast"
	Reserved    Range = "reserved"
	Broadcast   Range = "broadcast"
	Unspecified Range = "unspecified"
)

func ipv4Net(a, b, c, d byte, prefixLen int) *net.IPNet {
	return &net.IPNet{IP: net.IPv4(a, b, c, d).To4(), Mask: net.CIDRMask(prefixLen, 32)}
}

// privateIPv4Nets are RFC1918 + carrier-grade NAT (RFC6598) private space.
var privateIPv4Nets = []*net.IPNet{
	ipv4Net(10, 0, 0, 0, 8),
	ipv4Net(172, 16, 0, 0, 12),
	ipv4Net(192, 168, 0, 0, 16),
	ipv4Net(100, 64, 0, 0, 10),
}

// reservedIPv4Nets are documentation/test/benchmark/"current network"
// ranges that are never publicly routable but aren't private in the
// RFC1918 sense either.
var reservedIPv4Nets = []*net.IPNet{
	ipv4Net(0, 0, 0, 0, 8),
	ipv4Net(192, 0, 0, 0, 24),
	ipv4Net(192, 0, 2, 0, 24),
	ipv4Net(192, 88, 99, 0, 24),
	ipv4Net(198, 18, 0, 0, 15),
	ipv4Net(198, 51, 100, 0, 24),
	ipv4Net(203, 0, 113, 0, 24),
	ipv4Net(240, 0, 0, 0, 4),
}

var linkLocalIPv4Net = ipv4Net(169, 254, 0, 0, 16)
var loopbackIPv4Net = ipv4Net(127, 0, 0, 0, 8)
var multicastIPv4Net = ipv4Net(224, 0, 0, 0, 4)
var broadcastIPv4 = net.IPv4(255, 255, 255, 255).To4()

// globalUnicastIPv6Net is 2000::/3, the IANA global unicast allocation.
var globalUnicastIPv6Net = net.IPNet{
	IP:   net.IP{0x20, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	Mask: net.CIDRMask(3, 128),
}

var uniqueLocalIPv6Net = &net.IPNet{
	IP:   net.ParseIP("fc00::"),
	Mask: net.CIDRMask(7, 128),
}

// Classify returns the taxonomy range ip belongs to.
func Classify(ip net.IP) Range {
	if v4 := ip.To4(); v4 != nil {
		return classifyIPv4(v4)
	}
	return classifyIPv6(ip)
}

func classifyIPv4(ip net.IP) Range {
	switch {
	case ip.Equal(broadcastIPv4):
		return Broadcast
	case loopbackIPv4Net.Contains(ip):
		return Loopback
	case linkLocalIPv4Net.Contains(ip):
		return LinkLocal
	case multicastIPv4Net.Contains(ip):
		return Multicast
	case ip.IsUnspecified():
		return Unspecified
	}
	for _, n := range privateIPv4Nets {
		if n.Contains(ip) {
			return Private
		}
	}
	for _, n := range reservedIPv4Nets {
		if n.Contains(ip) {
			return Reserved
		}
	}
	return Unicast
}

func classifyIPv6(ip net.IP) Range {
	switch {
	case ip.IsUnspecified():
		return Unspecified
	case ip.IsLoopback():
		return Loopback
	case ip.IsLinkLocalUnicast():
		return LinkLocal
	case ip.IsMulticast():
		return Multicast
	case uniqueLocalIPv6Net.Contains(ip):
		return Private
	case globalUnicastIPv6Net.Contains(ip):
		return Unicast
	default:
		return Reserved
	}
}
