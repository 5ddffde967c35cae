package security

import (
	"net"
	"testing"
)

func TestCheckIP(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		wantDeny bool
	}{
		// Loopback
		{name: "IPv4 loopback", ip: "127.0.0.1", wantDeny: true},
		{name: "IPv4 loopback high", ip: "127.255.255.254", wantDeny: true},
		{name: "IPv6 loopback", ip: "::1", wantDeny: true},

		// Unspecified
		{name: "IPv4 unspecified", ip: "0.0.0.0", wantDeny: true},
		{name: "IPv6 unspecified", ip: "::", wantDeny: true},

		// Private (RFC 1918 / RFC 4193)
		{name: "10/8", ip: "10.0.0.1", wantDeny: true},
		{name: "172.16/12", ip: "172.16.0.1", wantDeny: true},
		{name: "172.31 upper edge", ip: "172.31.255.254", wantDeny: true},
		{name: "192.168/16", ip: "192.168.1.1", wantDeny: true},
		{name: "IPv6 ULA fc00::/7", ip: "fc00::1", wantDeny: true},
		{name: "IPv6 ULA fd", ip: "fd12:3456:789a::1", wantDeny: true},

		// Link-local
		{name: "IPv4 link-local", ip: "169.254.0.1", wantDeny: true},
		{name: "cloud metadata", ip: "169.254.169.254", wantDeny: true},
		{name: "IPv6 link-local", ip: "fe80::1", wantDeny: true},

		// IPv4-mapped IPv6 equivalents
		{name: "mapped loopback", ip: "::ffff:127.0.0.1", wantDeny: true},
		{name: "mapped private", ip: "::ffff:192.168.0.1", wantDeny: true},
		{name: "mapped metadata", ip: "::ffff:169.254.169.254", wantDeny: true},

		// Reserved / benchmarking
		{name: "CGNAT", ip: "100.64.0.1", wantDeny: true},
		{name: "TEST-NET-1", ip: "192.0.2.1", wantDeny: true},
		{name: "TEST-NET-2", ip: "198.51.100.1", wantDeny: true},
		{name: "TEST-NET-3", ip: "203.0.113.1", wantDeny: true},
		{name: "benchmarking", ip: "198.18.0.1", wantDeny: true},
		{name: "multicast", ip: "224.0.0.1", wantDeny: true},
		{name: "class E", ip: "240.0.0.1", wantDeny: true},
		{name: "IPv6 multicast", ip: "ff02::1", wantDeny: true},

		// Public
		{name: "public DNS", ip: "8.8.8.8", wantDeny: false},
		{name: "public cloudflare", ip: "1.1.1.1", wantDeny: false},
		{name: "public IPv6", ip: "2606:4700:4700::1111", wantDeny: false},
		{name: "mapped public", ip: "::ffff:8.8.8.8", wantDeny: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("test bug: %q did not parse", tt.ip)
			}
			err := CheckIP(ip)
			if tt.wantDeny && err == nil {
				t.Errorf("CheckIP(%s) = nil, want error", tt.ip)
			}
			if !tt.wantDeny && err != nil {
				t.Errorf("CheckIP(%s) = %v, want nil", tt.ip, err)
			}
			if got := IsDisallowedIP(ip); got != tt.wantDeny {
				t.Errorf("IsDisallowedIP(%s) = %v, want %v", tt.ip, got, tt.wantDeny)
			}
		})
	}
}

func TestCheckIPNil(t *testing.T) {
	if err := CheckIP(nil); err == nil {
		t.Error("CheckIP(nil) = nil, want error")
	}
}

func TestParseIPLiteral(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string // "" means not a literal
	}{
		{name: "IPv4", host: "127.0.0.1", want: "127.0.0.1"},
		{name: "IPv6", host: "::1", want: "::1"},
		{name: "bracketed IPv6", host: "[::1]", want: "::1"},
		{name: "bracketed mapped", host: "[::ffff:127.0.0.1]", want: "127.0.0.1"},
		{name: "hostname", host: "example.com", want: ""},
		{name: "empty", host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIPLiteral(tt.host)
			if tt.want == "" {
				if got != nil {
					t.Errorf("ParseIPLiteral(%q) = %v, want nil", tt.host, got)
				}
				return
			}
			if got == nil || got.String() != tt.want {
				t.Errorf("ParseIPLiteral(%q) = %v, want %s", tt.host, got, tt.want)
			}
		})
	}
}
