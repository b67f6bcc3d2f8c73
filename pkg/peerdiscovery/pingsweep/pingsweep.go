package pingsweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/projectdiscovery/gologger"
	osutils "github.com/projectdiscovery/utils/os"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// DefaultTimeout is the time a probe waits for an echo reply
const DefaultTimeout = 2 * time.Second

const protocolICMP = 1

var (
	errNoSocket = errors.New("no icmp socket available")

	seqCounter atomic.Uint32
)

// Result is the outcome of one probe
type Result struct {
	Alive bool
	RTT   time.Duration
	// Measured is false when liveness came from the ping utility
	Measured bool
}

// RTTMillis returns the round trip time in milliseconds, or nil when it was
// not measured
func (r Result) RTTMillis() *float64 {
	if !r.Alive || !r.Measured {
		return nil
	}
	ms := float64(r.RTT.Microseconds()) / 1000
	return &ms
}

type listenFunc func(network, address string) (net.PacketConn, error)

type execFunc func(ctx context.Context, name string, args ...string) error

// Prober sends ICMP echo requests
type Prober struct {
	timeout    time.Duration
	privileged bool
	listen     listenFunc
	exec       execFunc
}

// Option configures a Prober
type Option func(*Prober)

// WithTimeout sets the reply timeout
func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithPrivileged overrides the raw socket decision
func WithPrivileged(privileged bool) Option {
	return func(p *Prober) {
		p.privileged = privileged
	}
}

// New returns a prober
func New(opts ...Option) *Prober {
	p := &Prober{
		timeout:    DefaultTimeout,
		privileged: IsPrivileged(),
		listen:     listenICMP,
		exec:       runPing,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe reports whether ip answers. It never returns an error: any failure
// means the host is treated as down.
func (p *Prober) Probe(ctx context.Context, ip net.IP) Result {
	result, err := p.echo(ctx, ip)
	if err == nil {
		return result
	}
	if !errors.Is(err, errNoSocket) {
		gologger.Debug().Msgf("%s: icmp probe failed: %s", ip, err)
		return Result{}
	}

	gologger.Debug().Msgf("%s: %s, falling back to ping utility", ip, err)
	return p.pingUtility(ctx, ip)
}

func (p *Prober) echo(ctx context.Context, ip net.IP) (Result, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return Result{}, fmt.Errorf("not an IPv4 address: %s", ip)
	}

	network := "udp4"
	if p.privileged {
		network = "ip4:icmp"
	}
	conn, err := p.listen(network, "0.0.0.0")
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", errNoSocket, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	id := os.Getpid() & 0xffff
	seq := int(seqCounter.Add(1) & 0xffff)

	msg := &icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte("HELLO-R-U-THERE"),
		},
	}
	msgBytes, err := msg.Marshal(nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal ICMP message: %w", err)
	}

	var dst net.Addr = &net.IPAddr{IP: ip4}
	if !p.privileged {
		dst = &net.UDPAddr{IP: ip4}
	}

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if _, err := conn.WriteTo(msgBytes, dst); err != nil {
		return Result{}, fmt.Errorf("failed to send echo: %w", err)
	}

	reply := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			return Result{}, nil
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return Result{}, err
		}
		n, peer, err := conn.ReadFrom(reply)
		if err != nil {
			// deadline reached without a matching reply
			return Result{}, nil
		}

		rm, err := icmp.ParseMessage(protocolICMP, reply[:n])
		if err != nil || rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// unprivileged sockets get their ID rewritten by the kernel
		if p.privileged && echo.ID != id {
			continue
		}
		if !peerIP(peer).Equal(ip4) {
			continue
		}
		return Result{Alive: true, RTT: time.Since(start), Measured: true}, nil
	}
}

func (p *Prober) pingUtility(ctx context.Context, ip net.IP) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout+time.Second)
	defer cancel()

	args := pingArgs(ip, p.timeout, osutils.IsWindows())
	if err := p.exec(ctx, args[0], args[1:]...); err != nil {
		return Result{}
	}
	return Result{Alive: true}
}

// pingArgs builds a single echo invocation of the system ping utility
func pingArgs(ip net.IP, timeout time.Duration, windows bool) []string {
	if windows {
		return []string{"ping", "-n", "1", "-w", strconv.FormatInt(timeout.Milliseconds(), 10), ip.String()}
	}
	seconds := int(math.Ceil(timeout.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return []string{"ping", "-c", "1", "-W", strconv.Itoa(seconds), ip.String()}
}

func peerIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	default:
		return nil
	}
}

func listenICMP(network, address string) (net.PacketConn, error) {
	return icmp.ListenPacket(network, address)
}

func runPing(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
