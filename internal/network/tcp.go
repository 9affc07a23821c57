package network

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

const ConnectTimeout = 3 * time.Second

type Listener struct {
	ln       net.Listener
	onAccept Handler
	logger   *slog.Logger
	closed   atomic.Bool
	done     chan struct{}
}

// StartListening opens a TCP listener on port and hands every accepted
// connection to onAccept. When accepting fails the loop stops and onAccept
// receives one connection with its error flag set.
func StartListening(port int, onAccept Handler, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	l := &Listener{
		ln:       ln,
		onAccept: onAccept,
		logger:   logger,
		done:     make(chan struct{}),
	}

	logger.Info("tcp listener started", "address", ln.Addr().String())
	go l.acceptLoop()

	return l, nil
}

func (l *Listener) acceptLoop() {
	defer close(l.done)

	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if l.closed.Load() {
				err = fmt.Errorf("%w: %v", ErrListenerClosed, err)
			}
			l.logger.Debug("accept loop stopped", "error", err)
			l.onAccept(newErrorConn("tcp", fmt.Errorf("failed to accept: %w", err)))
			return
		}

		if tcp, ok := nc.(*net.TCPConn); ok {
			tcp.SetNoDelay(true)
		}

		l.logger.Debug("accepted connection", "remote", nc.RemoteAddr().String())
		l.onAccept(NewConn(nc, "tcp"))
	}
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *Listener) Port() int {
	if addr, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Close stops accepting and waits for the accept loop to report.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := l.ln.Close()
	<-l.done
	return err
}

// Dial resolves host, preferring IPv4, and connects with ConnectTimeout
// unless ctx has an earlier deadline.
func Dial(ctx context.Context, host string, port int) (*Conn, error) {
	ip, err := resolve(ctx, host)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: ConnectTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}

	if tcp, ok := nc.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	return NewConn(nc, "tcp"), nil
}

// Connect dials in the background and reports the result to onConnect. On
// failure the connection passed to onConnect has its error flag set.
func Connect(ctx context.Context, host string, port int, onConnect Handler) {
	go func() {
		c, err := Dial(ctx, host, port)
		if err != nil {
			c = newErrorConn("tcp", err)
		}
		onConnect(c)
	}()
}

func resolve(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("failed to resolve %q: no addresses", host)
	}

	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}
