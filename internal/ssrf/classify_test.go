package ssrf

import (
	"net"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		ip   string
		want Range
	}{
		{"8.8.8.8", Unicast},
		{"1.1.1.1", Unicast},
		{"10.0.0.1", Private},
		{"172.16.0.1", Private},
		{"172.31.255.255", Private},
		{"192.168.1.1", Private},
		{"100.64.0.1", Private},
		{"127.0.0.1", Loopback},
		{"169.254.169.254", LinkLocal},
		{"224.0.0.1", Multicast},
		{"255.255.255.255", Broadcast},
		{"0.0.0.0", Unspecified},
		{"192.0.2.1", Reserved},
		{"198.51.100.1", Reserved},
		{"203.0.113.1", Reserved},
		{"240.0.0.1", Reserved},
		{"::1", Loopback},
		{"fe80::1", LinkLocal},
		{"ff02::1", Multicast},
		{"fc00::1", Private},
		{"2001:4860:4860::8888", Unicast}, // google dns, global unicast
	}

	for _, c := range cases {
		ip := net.ParseIP(c.ip)
		if ip == nil {
			t.Fatalf("net.ParseIP(%q) = nil", c.ip)
		}
		if got := Classify(ip); got != c.want {
			t.Errorf("Classify(%q) = %q, want %q", c.ip, got, c.want)
		}
	}
}

func TestClassify_OctalDecimalNormalization(t *testing.T) {
	// 0300.0250.0.01 is the octal-notation equivalent of 192.168.0.1, but
	// net.ParseIP does not accept octal/leading-zero notation at all —
	// it returns nil, so the caller (Validate) hands the host to the
	// resolver, which either yields an address that is then classified or
	// fails the lookup; either way the request is rejected.
	// This documents that Classify itself never sees non-normalized
	// input: normalization happens (or fails closed) upstream.
	if ip := net.ParseIP("0300.0250.0.01"); ip != nil {
		t.Fatalf("net.ParseIP unexpectedly accepted octal notation: %v", ip)
	}
}
