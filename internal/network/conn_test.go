package network

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

// collect re-arms the read loop and forwards every complete line.
func collect(lines chan<- string, errs chan<- error) Handler {
	return func(c *Conn) {
		if c.ErrorOccurred() {
			errs <- c.Err()
			return
		}

		buf := c.Snapshot()
		consumed := 0
		for {
			i := strings.IndexByte(buf[consumed:], '\n')
			if i < 0 {
				break
			}
			lines <- buf[consumed : consumed+i]
			consumed += i + 1
		}
		c.Consume(consumed)
		Receive(c)
	}
}

func expectLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	select {
	case got := <-lines:
		if got != want {
			t.Fatalf("line = %q, want %q", got, want)
		}
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectError(t *testing.T, errs <-chan error) error {
	t.Helper()
	select {
	case err := <-errs:
		return err
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for error")
	}
	return nil
}

func startTestListener(t *testing.T) (*Listener, <-chan *Conn) {
	t.Helper()
	accepted := make(chan *Conn, 4)
	l, err := StartListening(0, func(c *Conn) { accepted <- c }, nil)
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, accepted
}

func acceptOne(t *testing.T, accepted <-chan *Conn) *Conn {
	t.Helper()
	select {
	case c := <-accepted:
		if c.ErrorOccurred() {
			t.Fatalf("accepted connection carries error: %v", c.Err())
		}
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for accept")
	}
	return nil
}

func TestTCPLineExchange(t *testing.T) {
	l, accepted := startTestListener(t)

	client, err := Dial(context.Background(), "127.0.0.1", l.Port())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	server := acceptOne(t, accepted)
	if server.ID() == client.ID() {
		t.Error("connections share an id")
	}

	lines := make(chan string, 8)
	errs := make(chan error, 1)
	server.SetHandler(collect(lines, errs))
	Receive(server)

	if !Send(client, "hello\nwor") {
		t.Fatal("Send failed")
	}
	expectLine(t, lines, "hello")

	if !Send(client, "ld\n") {
		t.Fatal("Send failed")
	}
	expectLine(t, lines, "world")

	client.Close()
	err = expectError(t, errs)
	if err == nil {
		t.Fatal("expected an error after peer close")
	}
	if !server.ErrorOccurred() || server.ErrorMessage() == "" {
		t.Error("error flag not set on server connection")
	}
}

func TestSendAndClose(t *testing.T) {
	l, accepted := startTestListener(t)

	client, err := Dial(context.Background(), "127.0.0.1", l.Port())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()
	server := acceptOne(t, accepted)

	lines := make(chan string, 8)
	errs := make(chan error, 1)
	client.SetHandler(collect(lines, errs))
	Receive(client)

	if !SendAndClose(server, "bye\n") {
		t.Fatal("SendAndClose failed")
	}
	if Send(server, "late\n") {
		t.Error("Send after SendAndClose should fail")
	}

	expectLine(t, lines, "bye")
	expectError(t, errs)

	deadline := time.Now().Add(testTimeout)
	for !server.Closed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !server.Closed() {
		t.Error("server connection not closed after SendAndClose")
	}
	if Send(server, "x\n") {
		t.Error("Send on closed connection should fail")
	}
}

func TestListenerCloseReportsOnce(t *testing.T) {
	accepted := make(chan *Conn, 4)
	l, err := StartListening(0, func(c *Conn) { accepted <- c }, nil)
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}

	l.Close()

	select {
	case c := <-accepted:
		if !c.ErrorOccurred() {
			t.Error("expected error connection from closed listener")
		}
		if !errors.Is(c.Err(), ErrListenerClosed) {
			t.Errorf("error = %v, want ErrListenerClosed", c.Err())
		}
		if Send(c, "x") {
			t.Error("error connection accepted a send")
		}
	case <-time.After(testTimeout):
		t.Fatal("accept failure was not reported")
	}

	select {
	case c := <-accepted:
		t.Errorf("unexpected second report: %v", c.Err())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectReportsFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	result := make(chan *Conn, 1)
	Connect(context.Background(), "127.0.0.1", port, func(c *Conn) { result <- c })

	select {
	case c := <-result:
		if !c.ErrorOccurred() {
			t.Error("expected connect error")
		}
	case <-time.After(testTimeout):
		t.Fatal("Connect never reported")
	}
}

func TestConnectSucceeds(t *testing.T) {
	l, accepted := startTestListener(t)

	result := make(chan *Conn, 1)
	Connect(context.Background(), "localhost", l.Port(), func(c *Conn) { result <- c })

	select {
	case c := <-result:
		if c.ErrorOccurred() {
			t.Fatalf("connect failed: %v", c.Err())
		}
		c.Close()
	case <-time.After(testTimeout):
		t.Fatal("Connect never reported")
	}
	acceptOne(t, accepted)
}

func TestUTF8SplitAcrossReads(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	c := NewConn(a, "pipe")
	defer c.Close()

	lines := make(chan string, 2)
	errs := make(chan error, 1)
	c.SetHandler(collect(lines, errs))
	Receive(c)

	go func() {
		b.Write([]byte{0xC3})
		b.Write([]byte{0xA9, '\n'})
	}()

	expectLine(t, lines, "é")
}

func TestSnapshotConsume(t *testing.T) {
	c := &Conn{}
	c.appendInbound([]byte("abc\ndef"))

	if got := c.Snapshot(); got != "abc\ndef" {
		t.Fatalf("Snapshot = %q", got)
	}
	c.Consume(4)
	if got := c.Snapshot(); got != "def" {
		t.Errorf("after Consume(4) = %q", got)
	}
	c.Consume(100)
	if got := c.Snapshot(); got != "" {
		t.Errorf("after Consume(100) = %q", got)
	}
}

func TestErrorSetOnce(t *testing.T) {
	c := &Conn{}
	first := errors.New("first")
	c.setError(first)
	c.setError(errors.New("second"))
	if c.Err() != first {
		t.Errorf("Err = %v, want first", c.Err())
	}
}

func TestWebSocketTransport(t *testing.T) {
	accepted := make(chan *Conn, 1)
	srv := httptest.NewServer(WebSocketHandler(func(c *Conn) { accepted <- c }, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := DialWebSocket(context.Background(), url)
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer client.Close()

	server := acceptOne(t, accepted)
	if server.Kind() != "websocket" {
		t.Errorf("kind = %q", server.Kind())
	}

	serverLines := make(chan string, 4)
	serverErrs := make(chan error, 1)
	server.SetHandler(collect(serverLines, serverErrs))
	Receive(server)

	clientLines := make(chan string, 4)
	clientErrs := make(chan error, 1)
	client.SetHandler(collect(clientLines, clientErrs))
	Receive(client)

	Send(client, "na")
	Send(client, "me\n")
	expectLine(t, serverLines, "name")

	Send(server, "0\n2000\n")
	expectLine(t, clientLines, "0")
	expectLine(t, clientLines, "2000")

	client.Close()
	expectError(t, serverErrs)
}

func TestENetTransportStream(t *testing.T) {
	s := &ENetServer{
		outbox: make(chan enetOp, 4),
		stop:   make(chan struct{}),
	}
	tr := newENetTransport(s, nil)

	tr.push([]byte("hel"))
	tr.push([]byte("lo\n"))

	buf := make([]byte, 2)
	var got []byte
	for len(got) < 6 {
		n, err := tr.Read(buf)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "hello\n" {
		t.Errorf("read %q", got)
	}

	if n, err := tr.Write([]byte("out")); err != nil || n != 3 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	op := <-s.outbox
	if string(op.data) != "out" || op.t != tr || op.disconnect {
		t.Errorf("queued op = %+v", op)
	}

	tr.Close()
	op = <-s.outbox
	if !op.disconnect {
		t.Error("Close did not queue a disconnect")
	}
	if _, err := tr.Read(buf); err == nil {
		t.Error("Read after close should fail")
	}
	if _, err := tr.Write([]byte("x")); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Write after close = %v", err)
	}
}
