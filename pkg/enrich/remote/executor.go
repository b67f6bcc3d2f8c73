package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/masterzen/winrm"
	"golang.org/x/crypto/ssh"
)

// executor runs commands on a connected host
type executor interface {
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

type connectFunc func(ctx context.Context, host Host, cfg Config) (executor, error)

func connect(ctx context.Context, host Host, cfg Config) (executor, error) {
	switch host.Authentication.Protocol {
	case ProtocolSSH:
		return dialSSH(ctx, host, cfg.Timeout)
	case ProtocolWinRM:
		return newWinRM(host, cfg)
	default:
		return nil, fmt.Errorf("unsupported protocol: %v", host.Authentication.Protocol)
	}
}

type sshExecutor struct {
	client *ssh.Client
}

func dialSSH(ctx context.Context, host Host, timeout time.Duration) (executor, error) {
	auth := []ssh.AuthMethod{}
	if host.Authentication.PrivateKeyFile != "" {
		key, err := os.ReadFile(host.Authentication.PrivateKeyFile)
		if err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("could not parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if host.Authentication.Password != "" {
		auth = append(auth, ssh.Password(host.Authentication.Password))
	}

	hostPort := net.JoinHostPort(host.Address, strconv.Itoa(host.Port))
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return nil, err
	}

	// The handshake must not outlive the timeout or the context
	if deadline, ok := handshakeDeadline(ctx, timeout); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	config := &ssh.ClientConfig{
		User:            host.Authentication.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, hostPort, config)
	if err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ssh handshake: %w", ctxErr)
		}
		return nil, err
	}
	if !stop() {
		// Context ended right after the handshake and conn is already closed
		_ = c.Close()
		return nil, fmt.Errorf("ssh handshake: %w", ctx.Err())
	}
	_ = conn.SetDeadline(time.Time{})
	return &sshExecutor{client: ssh.NewClient(c, chans, reqs)}, nil
}

// handshakeDeadline returns the earlier of now+timeout and the context deadline
func handshakeDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	return deadline, !deadline.IsZero()
}

func (e *sshExecutor) Run(ctx context.Context, command string) (string, error) {
	session, err := e.client.NewSession()
	if err != nil {
		return "", err
	}
	defer func() {
		_ = session.Close()
	}()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-done:
		}
	}()

	if err := session.Run(command); err != nil {
		return "", commandError(err, stderr.String())
	}
	return stdout.String(), nil
}

func (e *sshExecutor) Close() error {
	return e.client.Close()
}

type winrmExecutor struct {
	client *winrm.Client
}

func newWinRM(host Host, cfg Config) (executor, error) {
	endpoint := winrm.NewEndpoint(host.Address, host.Port, cfg.HTTPS, cfg.Insecure, nil, nil, nil, cfg.Timeout)

	params := winrm.NewParameters("PT60S", "en-US", 153600)
	params.TransportDecorator = func() winrm.Transporter {
		return &winrm.ClientNTLM{}
	}

	client, err := winrm.NewClientWithParameters(endpoint, host.Authentication.Username, host.Authentication.Password, params)
	if err != nil {
		return nil, err
	}
	return &winrmExecutor{client: client}, nil
}

// Run executes a PowerShell script
func (e *winrmExecutor) Run(ctx context.Context, script string) (string, error) {
	var stdout, stderr bytes.Buffer

	exitCode, err := e.client.RunWithContext(ctx, winrm.Powershell(script), &stdout, &stderr)
	if err != nil {
		return "", err
	}
	if exitCode != 0 {
		return "", commandError(fmt.Errorf("exit code %d", exitCode), stderr.String())
	}
	return stdout.String(), nil
}

func (e *winrmExecutor) Close() error {
	return nil
}

func commandError(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err
	}
	if len(stderr) > 200 {
		stderr = stderr[:200]
	}
	return fmt.Errorf("%w: %s", err, stderr)
}
