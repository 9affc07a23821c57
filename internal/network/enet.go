package network

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/codecat/go-enet"
)

const (
	enetServiceTimeoutMs = 10
	enetInboxSize        = 256
	enetOutboxSize       = 1024
)

// ENetServer runs an ENet host and exposes every peer as a Conn. All host
// calls happen on the service goroutine; transports talk to it through
// channels.
type ENetServer struct {
	host     enet.Host
	port     uint16
	maxPeers int
	onAccept Handler
	logger   *slog.Logger

	peers  map[enet.Peer]*enetTransport
	outbox chan enetOp
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

type enetOp struct {
	t          *enetTransport
	data       []byte
	disconnect bool
}

func StartENet(port, maxPeers int, onAccept Handler, logger *slog.Logger) (*ENetServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &ENetServer{
		port:     uint16(port),
		maxPeers: maxPeers,
		onAccept: onAccept,
		logger:   logger,
		peers:    make(map[enet.Peer]*enetTransport),
		outbox:   make(chan enetOp, enetOutboxSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	address := enet.NewListenAddress(s.port)

	var err error
	s.host, err = enet.NewHost(address, uint64(s.maxPeers), 1, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create ENet host: %w", err)
	}

	if err := s.host.CompressWithRangeCoder(); err != nil {
		s.host.Destroy()
		return nil, fmt.Errorf("failed to setup range coder compression: %w", err)
	}

	s.logger.Info("enet listener started", "port", s.port, "max_peers", s.maxPeers)
	go s.service()

	return s, nil
}

func (s *ENetServer) Stop() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		s.logger.Info("enet listener stopped")
	})
}

func (s *ENetServer) service() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			for peer, t := range s.peers {
				t.shutdown()
				peer.DisconnectNow(0)
			}
			s.host.Destroy()
			return
		default:
		}

		s.flush()

		event := s.host.Service(enetServiceTimeoutMs)
		if event == nil {
			continue
		}

		switch event.GetType() {
		case enet.EventConnect:
			peer := event.GetPeer()
			t := newENetTransport(s, peer)
			s.peers[peer] = t
			s.logger.Debug("peer connected", "peer", t.addr.String())
			s.onAccept(NewConn(t, "enet"))

		case enet.EventDisconnect:
			peer := event.GetPeer()
			if t, ok := s.peers[peer]; ok {
				s.logger.Debug("peer disconnected", "peer", t.addr.String())
				t.shutdown()
				delete(s.peers, peer)
			}

		case enet.EventReceive:
			packet := event.GetPacket()
			if packet == nil {
				continue
			}
			data := append([]byte(nil), packet.GetData()...)
			packet.Destroy()

			if t, ok := s.peers[event.GetPeer()]; ok && !t.push(data) {
				s.logger.Warn("peer inbox full, disconnecting", "peer", t.addr.String())
				t.shutdown()
				event.GetPeer().Disconnect(0)
			}
		}
	}
}

func (s *ENetServer) flush() {
	for {
		select {
		case op := <-s.outbox:
			// the peer slot may already belong to a newer connection
			if s.peers[op.t.peer] != op.t {
				continue
			}
			if op.disconnect {
				op.t.peer.Disconnect(0)
				continue
			}
			packet, err := enet.NewPacket(op.data, enet.PacketFlagReliable)
			if err != nil {
				s.logger.Error("failed to create packet", "error", err)
				continue
			}
			if err := op.t.peer.SendPacket(packet, 0); err != nil {
				s.logger.Error("failed to send packet", "error", err)
			}
		default:
			return
		}
	}
}

func (s *ENetServer) queue(op enetOp) bool {
	select {
	case s.outbox <- op:
		return true
	case <-s.stop:
		return false
	}
}

type enetAddr string

func (a enetAddr) Network() string { return "enet" }
func (a enetAddr) String() string  { return string(a) }

type enetTransport struct {
	server  *ENetServer
	peer    enet.Peer
	addr    enetAddr
	inbox   chan []byte
	pending []byte
	closed  chan struct{}
	once    sync.Once
}

func newENetTransport(s *ENetServer, peer enet.Peer) *enetTransport {
	t := &enetTransport{
		server: s,
		peer:   peer,
		inbox:  make(chan []byte, enetInboxSize),
		closed: make(chan struct{}),
	}
	if peer != nil {
		t.addr = enetAddr(peer.GetAddress().String())
	}
	return t
}

// push is called from the service goroutine and never blocks.
func (t *enetTransport) push(data []byte) bool {
	select {
	case t.inbox <- data:
		return true
	default:
		return false
	}
}

func (t *enetTransport) shutdown() {
	t.once.Do(func() { close(t.closed) })
}

func (t *enetTransport) Read(p []byte) (int, error) {
	if len(t.pending) == 0 {
		select {
		case data := <-t.inbox:
			t.pending = data
		default:
			select {
			case data := <-t.inbox:
				t.pending = data
			case <-t.closed:
				return 0, io.EOF
			}
		}
	}

	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *enetTransport) Write(p []byte) (int, error) {
	select {
	case <-t.closed:
		return 0, ErrConnClosed
	default:
	}

	data := append([]byte(nil), p...)
	if !t.server.queue(enetOp{t: t, data: data}) {
		return 0, ErrConnClosed
	}
	return len(p), nil
}

func (t *enetTransport) Close() error {
	select {
	case <-t.closed:
		return nil
	default:
	}
	t.shutdown()
	t.server.queue(enetOp{t: t, disconnect: true})
	return nil
}

func (t *enetTransport) RemoteAddr() net.Addr {
	return t.addr
}
