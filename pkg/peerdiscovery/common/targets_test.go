package common

import (
	"errors"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	psnet "github.com/shirou/gopsutil/v3/net"
)

func ipStrings(ips []net.IP) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		spec     TargetSpec
		want     []string
		wantErr  error
		validate func(t *testing.T, ips []net.IP)
	}{
		{
			name: "slash 30 yields usable hosts",
			spec: TargetSpec{Subnet: "192.168.1.0/30"},
			want: []string{"192.168.1.1", "192.168.1.2"},
		},
		{
			name: "slash 24 excludes network and broadcast",
			spec: TargetSpec{Subnet: "10.1.2.0/24"},
			validate: func(t *testing.T, ips []net.IP) {
				if len(ips) != 254 {
					t.Fatalf("got %d addresses, want 254", len(ips))
				}
				if ips[0].String() != "10.1.2.1" || ips[253].String() != "10.1.2.254" {
					t.Errorf("unexpected bounds %s..%s", ips[0], ips[253])
				}
			},
		},
		{
			name: "host bits in subnet are masked",
			spec: TargetSpec{Subnet: "192.168.1.77/30"},
			want: []string{"192.168.1.77", "192.168.1.78"},
		},
		{
			name: "slash 32",
			spec: TargetSpec{Subnet: "172.16.0.9/32"},
			want: []string{"172.16.0.9"},
		},
		{
			name: "slash 31",
			spec: TargetSpec{Subnet: "172.16.0.8/31"},
			want: []string{"172.16.0.8", "172.16.0.9"},
		},
		{
			name:    "unparsable subnet",
			spec:    TargetSpec{Subnet: "192.168.1.0/33"},
			wantErr: ErrInvalidSubnet,
		},
		{
			name:    "ipv6 subnet",
			spec:    TargetSpec{Subnet: "fd00::/120"},
			wantErr: ErrInvalidSubnet,
		},
		{
			name: "range inclusive",
			spec: TargetSpec{StartIP: "10.0.0.5", EndIP: "10.0.0.8"},
			want: []string{"10.0.0.5", "10.0.0.6", "10.0.0.7", "10.0.0.8"},
		},
		{
			name:    "range across third octet",
			spec:    TargetSpec{StartIP: "10.0.0.5", EndIP: "10.0.1.5"},
			wantErr: ErrUnsupportedRange,
		},
		{
			name:    "reversed range",
			spec:    TargetSpec{StartIP: "10.0.0.9", EndIP: "10.0.0.1"},
			wantErr: ErrUnsupportedRange,
		},
		{
			name:    "range missing end",
			spec:    TargetSpec{StartIP: "10.0.0.9"},
			wantErr: ErrInvalidAddress,
		},
		{
			name: "single",
			spec: TargetSpec{SingleIP: "192.168.50.4"},
			want: []string{"192.168.50.4"},
		},
		{
			name:    "single invalid",
			spec:    TargetSpec{SingleIP: "192.168.50"},
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "no mode",
			spec:    TargetSpec{},
			wantErr: ErrNoTargets,
		},
		{
			name:    "two modes",
			spec:    TargetSpec{Subnet: "10.0.0.0/30", SingleIP: "10.0.0.1"},
			wantErr: ErrMultipleTargets,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ips, err := Expand(tt.spec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if len(ips) != 0 {
					t.Errorf("got %d addresses alongside error", len(ips))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil {
				if diff := cmp.Diff(tt.want, ipStrings(ips)); diff != "" {
					t.Errorf("addresses mismatch (-want +got):\n%s", diff)
				}
			}
			if tt.validate != nil {
				tt.validate(t, ips)
			}
		})
	}
}

func TestExpandLocal(t *testing.T) {
	orig := interfaces
	defer func() { interfaces = orig }()

	interfaces = func() (psnet.InterfaceStatList, error) {
		return psnet.InterfaceStatList{
			{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
			{Name: "eth0", Flags: []string{"up", "broadcast"}, Addrs: psnet.InterfaceAddrList{
				{Addr: "192.168.10.23/24"},
				{Addr: "fe80::1/64"},
			}},
			{Name: "eth1", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "192.168.10.99/16"}}},
			{Name: "eth2", Flags: []string{"broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "10.9.9.9/24"}}},
			{Name: "wan", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "8.8.4.4/24"}}},
		}, nil
	}

	ips, err := Expand(TargetSpec{Local: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ips) != 254 {
		t.Fatalf("got %d addresses, want 254", len(ips))
	}
	if ips[0].String() != "192.168.10.1" {
		t.Errorf("first = %s", ips[0])
	}
}

func TestSortIPs(t *testing.T) {
	ips := []net.IP{
		net.ParseIP("10.0.0.20"),
		net.ParseIP("10.0.0.3"),
		net.ParseIP("9.255.255.255"),
		net.ParseIP("10.0.0.100"),
	}
	SortIPs(ips)
	want := []string{"9.255.255.255", "10.0.0.3", "10.0.0.20", "10.0.0.100"}
	if diff := cmp.Diff(want, ipStrings(ips)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
