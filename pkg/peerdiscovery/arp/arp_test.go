package arp

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF", true},
		{"AA-BB-CC-DD-EE-FF", "AA:BB:CC:DD:EE:FF", true},
		{"0:1b:44:a:b:c", "00:1B:44:0A:0B:0C", true},
		{" 00:50:56:c0:00:08 ", "00:50:56:C0:00:08", true},
		{"00:00:00:00:00:00", "", false},
		{"00-00-00-00-00-00", "", false},
		{"aa:bb:cc:dd:ee", "", false},
		{"aa:bb:cc:dd:ee:ff:00", "", false},
		{"gg:bb:cc:dd:ee:ff", "", false},
		{"aaa:bb:cc:dd:ee:ff", "", false},
		{"aa:bb-cc:dd:ee:ff", "", false},
		{"aa::cc:dd:ee:ff", "", false},
		{"<incomplete>", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeMAC(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeMAC(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
			if ok {
				if _, err := net.ParseMAC(got); err != nil || len(got) != 17 {
					t.Errorf("NormalizeMAC(%q) produced malformed %q", tt.in, got)
				}
			}
		})
	}
}

func TestParsers(t *testing.T) {
	ip := net.ParseIP("192.168.1.1")

	tests := []struct {
		name   string
		parse  func(string, net.IP) string
		output string
		want   string
	}{
		{
			name:   "ip neighbor",
			parse:  parseIPNeighbor,
			output: "192.168.1.1 dev eth0 lladdr b8:27:eb:12:34:56 REACHABLE\n",
			want:   "B8:27:EB:12:34:56",
		},
		{
			name:   "ip neighbor failed entry",
			parse:  parseIPNeighbor,
			output: "192.168.1.1 dev eth0 FAILED\n",
			want:   "",
		},
		{
			name:   "linux arp -n",
			parse:  parseARPCommand,
			output: "Address                  HWtype  HWaddress           Flags Mask            Iface\n192.168.1.1              ether   00:1b:44:11:3a:b7   C                     eth0\n",
			want:   "00:1B:44:11:3A:B7",
		},
		{
			name:   "darwin arp -n",
			parse:  parseARPCommand,
			output: "? (192.168.1.1) at 0:1b:44:11:3a:b7 on en0 ifscope [ethernet]\n",
			want:   "00:1B:44:11:3A:B7",
		},
		{
			name:   "arp -n incomplete",
			parse:  parseARPCommand,
			output: "192.168.1.1                      (incomplete)                              eth0\n",
			want:   "",
		},
		{
			name:  "proc net arp",
			parse: parseProcARP,
			output: "IP address       HW type     Flags       HW address            Mask     Device\n" +
				"192.168.1.10     0x1         0x2         aa:aa:aa:aa:aa:aa     *        eth0\n" +
				"192.168.1.1      0x1         0x2         00:15:5d:01:02:03     *        eth0\n",
			want: "00:15:5D:01:02:03",
		},
		{
			name:  "proc net arp zero entry",
			parse: parseProcARP,
			output: "IP address       HW type     Flags       HW address            Mask     Device\n" +
				"192.168.1.1      0x1         0x0         00:00:00:00:00:00     *        eth0\n",
			want: "",
		},
		{
			name:  "windows arp -a",
			parse: parseWindowsARP,
			output: "\r\nInterface: 192.168.1.100 --- 0xa\r\n" +
				"  Internet Address      Physical Address      Type\r\n" +
				"  192.168.1.1           00-50-56-c0-00-08     dynamic\r\n",
			want: "00:50:56:C0:00:08",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.parse(tt.output, ip); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeStrategy struct {
	name  string
	mac   string
	err   error
	calls *int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Lookup(context.Context, net.IP) (string, error) {
	*f.calls++
	return f.mac, f.err
}

func TestResolverStopsAtFirstValid(t *testing.T) {
	var calls int
	r := NewResolverWithStrategies(
		&fakeStrategy{name: "broken", err: errors.New("exit status 1"), calls: &calls},
		&fakeStrategy{name: "zero", mac: "00:00:00:00:00:00", calls: &calls},
		&fakeStrategy{name: "good", mac: "dc-a6-32-01-02-03", calls: &calls},
		&fakeStrategy{name: "unused", mac: "aa:aa:aa:aa:aa:aa", calls: &calls},
	)

	got := r.Resolve(context.Background(), net.ParseIP("10.0.0.7"))
	if got != "DC:A6:32:01:02:03" {
		t.Errorf("Resolve = %q", got)
	}
	if calls != 3 {
		t.Errorf("strategies called %d times, want 3", calls)
	}
}

func TestResolverExhausted(t *testing.T) {
	var calls int
	r := NewResolverWithStrategies(
		&fakeStrategy{name: "a", err: ErrNotFound, calls: &calls},
		&fakeStrategy{name: "b", mac: "garbage", calls: &calls},
	)
	if got := r.Resolve(context.Background(), net.ParseIP("10.0.0.7")); got != "" {
		t.Errorf("Resolve = %q, want empty", got)
	}
}

func TestCommandStrategy(t *testing.T) {
	var gotArgs []string
	s := &commandStrategy{
		name:  "ip neighbor",
		args:  func(ip net.IP) []string { return []string{"ip", "neighbor", "show", ip.String()} },
		parse: parseIPNeighbor,
		run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotArgs = append([]string{name}, args...)
			return []byte("10.0.0.7 dev eth0 lladdr 08:00:27:aa:bb:cc STALE\n"), nil
		},
	}

	mac, err := s.Lookup(context.Background(), net.ParseIP("10.0.0.7"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if mac != "08:00:27:AA:BB:CC" {
		t.Errorf("mac = %q", mac)
	}
	if len(gotArgs) != 4 || gotArgs[3] != "10.0.0.7" {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestTableFileStrategy(t *testing.T) {
	s := &tableFileStrategy{
		path: "/proc/net/arp",
		readFile: func(string) ([]byte, error) {
			return []byte("IP address HW type Flags HW address Mask Device\n10.0.0.7 0x1 0x2 08:00:27:aa:bb:cc * eth0\n"), nil
		},
	}
	if _, err := s.Lookup(context.Background(), net.ParseIP("10.0.0.8")); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	mac, err := s.Lookup(context.Background(), net.ParseIP("10.0.0.7"))
	if err != nil || mac != "08:00:27:AA:BB:CC" {
		t.Errorf("Lookup = %q, %v", mac, err)
	}
}
