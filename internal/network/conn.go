package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	readBufferSize = 4096
	sendQueueSize  = 256
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrZeroRead       = errors.New("connection closed by peer")
	ErrSendQueueFull  = errors.New("send queue full")
	ErrNoTransport    = errors.New("no transport")
	ErrListenerClosed = errors.New("listener closed")
)

// Handler is invoked when a connection is established or has new data.
type Handler func(c *Conn)

// Transport is a byte stream that a Conn reads from and writes to.
type Transport interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

var nextConnID atomic.Uint64

// Conn is a text connection with a locked inbound buffer, an error flag that
// is set at most once, and an asynchronous FIFO writer.
type Conn struct {
	id        uint64
	kind      string
	transport Transport
	reader    io.Reader
	readBuf   []byte

	handlerMu sync.Mutex
	handler   Handler

	inMu    sync.Mutex
	inbound []byte

	errOnce sync.Once
	errMu   sync.RWMutex
	err     error

	outbound  chan outMessage
	closing   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

type outMessage struct {
	data  []byte
	close bool
}

func NewConn(t Transport, kind string) *Conn {
	c := &Conn{
		id:        nextConnID.Add(1),
		kind:      kind,
		transport: t,
		reader:    transform.NewReader(t, unicode.UTF8.NewDecoder()),
		readBuf:   make([]byte, readBufferSize),
		outbound:  make(chan outMessage, sendQueueSize),
		done:      make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// newErrorConn returns a connection that only carries an error, used to
// report connect and accept failures through a Handler.
func newErrorConn(kind string, err error) *Conn {
	c := &Conn{
		id:   nextConnID.Add(1),
		kind: kind,
		done: make(chan struct{}),
	}
	c.setError(err)
	c.closed.Store(true)
	close(c.done)
	return c
}

func (c *Conn) ID() uint64 { return c.id }

func (c *Conn) Kind() string { return c.kind }

func (c *Conn) RemoteAddr() string {
	if c.transport == nil || c.transport.RemoteAddr() == nil {
		return ""
	}
	return c.transport.RemoteAddr().String()
}

// RemoteHost is RemoteAddr without the port.
func (c *Conn) RemoteHost() string {
	addr := c.RemoteAddr()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (c *Conn) SetHandler(h Handler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

func (c *Conn) currentHandler() Handler {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	return c.handler
}

func (c *Conn) setError(err error) {
	c.errOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
	})
}

func (c *Conn) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

func (c *Conn) ErrorOccurred() bool {
	return c.Err() != nil
}

func (c *Conn) ErrorMessage() string {
	if err := c.Err(); err != nil {
		return err.Error()
	}
	return ""
}

func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// Snapshot returns the buffered inbound text.
func (c *Conn) Snapshot() string {
	c.inMu.Lock()
	defer c.inMu.Unlock()
	return string(c.inbound)
}

// Consume drops the first n bytes of the inbound buffer.
func (c *Conn) Consume(n int) {
	c.inMu.Lock()
	defer c.inMu.Unlock()
	if n >= len(c.inbound) {
		c.inbound = c.inbound[:0]
		return
	}
	if n > 0 {
		c.inbound = append(c.inbound[:0], c.inbound[n:]...)
	}
}

func (c *Conn) appendInbound(data []byte) {
	c.inMu.Lock()
	c.inbound = append(c.inbound, data...)
	c.inMu.Unlock()
}

// Close shuts the transport down. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.done != nil {
			select {
			case <-c.done:
			default:
				close(c.done)
			}
		}
		if c.transport != nil {
			err = c.transport.Close()
		}
	})
	return err
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.outbound:
			if len(msg.data) > 0 {
				if _, err := c.transport.Write(msg.data); err != nil {
					c.setError(fmt.Errorf("failed to send: %w", err))
					c.Close()
					return
				}
			}
			if msg.close {
				c.Close()
				return
			}
		}
	}
}

// Receive starts one asynchronous read. When it completes the data is
// appended to the inbound buffer and the handler runs once. Call Receive
// again from the handler to keep reading.
func Receive(c *Conn) {
	if c.transport == nil {
		c.setError(ErrNoTransport)
		go c.dispatch()
		return
	}
	go c.readOnce()
}

func (c *Conn) readOnce() {
	n, err := c.reader.Read(c.readBuf)
	if n > 0 {
		c.appendInbound(c.readBuf[:n])
	} else {
		if err == nil {
			err = ErrZeroRead
		}
		c.setError(fmt.Errorf("failed to receive: %w", err))
	}
	c.dispatch()
}

func (c *Conn) dispatch() {
	if h := c.currentHandler(); h != nil {
		h(c)
	}
}

// Send queues text for writing. It returns false if the connection is closed
// or the text could not be queued, in which case the connection is closed.
func Send(c *Conn, text string) bool {
	return enqueue(c, outMessage{data: []byte(text)})
}

// SendAndClose queues text and closes the connection once it is written.
func SendAndClose(c *Conn, text string) bool {
	if !enqueue(c, outMessage{data: []byte(text), close: true}) {
		return false
	}
	c.closing.Store(true)
	return true
}

func enqueue(c *Conn, msg outMessage) bool {
	if c.closed.Load() || c.closing.Load() || c.transport == nil {
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.outbound <- msg:
		return true
	default:
		c.setError(fmt.Errorf("failed to send: %w", ErrSendQueueFull))
		c.Close()
		return false
	}
}
