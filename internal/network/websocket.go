package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  readBufferSize,
	WriteBufferSize: readBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsTransport presents a websocket as a byte stream. Every write becomes one
// text message; reads concatenate incoming messages.
type wsTransport struct {
	conn   *websocket.Conn
	reader io.Reader
}

func (t *wsTransport) Read(p []byte) (int, error) {
	for {
		if t.reader == nil {
			_, r, err := t.conn.NextReader()
			if err != nil {
				return 0, err
			}
			t.reader = r
		}

		n, err := t.reader.Read(p)
		if errors.Is(err, io.EOF) {
			t.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (t *wsTransport) Write(p []byte) (int, error) {
	t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// WebSocketHandler upgrades requests and hands each socket to onAccept.
func WebSocketHandler(onAccept Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		logger.Debug("accepted websocket", "remote", ws.RemoteAddr().String())
		onAccept(NewConn(&wsTransport{conn: ws}, "websocket"))
	})
}

type WebSocketServer struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

func StartWebSocket(addr, path string, onAccept Handler, logger *slog.Logger) (*WebSocketServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, WebSocketHandler(onAccept, logger))

	s := &WebSocketServer{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		logger: logger,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server stopped", "error", err)
		}
	}()

	logger.Info("websocket listener started", "address", ln.Addr().String(), "path", path)
	return s, nil
}

func (s *WebSocketServer) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *WebSocketServer) Close() error {
	return s.srv.Close()
}

// DialWebSocket connects to a ws:// or wss:// URL.
func DialWebSocket(ctx context.Context, url string) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewConn(&wsTransport{conn: ws}, "websocket"), nil
}
