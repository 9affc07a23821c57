package ping

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

const GameVersion = "1.0"

// Handler answers LAN discovery probes over UDP: "HELLO" gets "HI" and
// "HELLOLAN" gets the current ServerInfo as JSON.
type Handler struct {
	conn          *net.UDPConn
	logger        *slog.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	listenAddress string

	mu         sync.RWMutex
	serverInfo ServerInfo
}

type ServerInfo struct {
	Name           string `json:"name"`
	PlayersCurrent int    `json:"players_current"`
	PlayersMax     int    `json:"players_max"`
	Mode           string `json:"mode"`
	UniverseSize   int    `json:"universe_size"`
	GameVersion    string `json:"game_version"`
}

func NewHandler(address string, info ServerInfo, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if info.GameVersion == "" {
		info.GameVersion = GameVersion
	}
	return &Handler{
		serverInfo:    info,
		logger:        logger,
		stopChan:      make(chan struct{}),
		listenAddress: address,
	}
}

func (h *Handler) Start() error {
	addr, err := net.ResolveUDPAddr("udp", h.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	h.conn = conn
	h.logger.Info("ping handler started", "address", conn.LocalAddr().String())

	go h.handlePackets()

	return nil
}

func (h *Handler) Addr() net.Addr {
	if h.conn == nil {
		return nil
	}
	return h.conn.LocalAddr()
}

func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		if h.conn != nil {
			h.conn.Close()
		}
		h.logger.Info("ping handler stopped")
	})
}

func (h *Handler) UpdateServerInfo(info ServerInfo) {
	if info.GameVersion == "" {
		info.GameVersion = GameVersion
	}
	h.mu.Lock()
	h.serverInfo = info
	h.mu.Unlock()
}

func (h *Handler) ServerInfo() ServerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.serverInfo
}

func (h *Handler) handlePackets() {
	buffer := make([]byte, 1024)

	for {
		n, addr, err := h.conn.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-h.stopChan:
				return
			default:
				h.logger.Error("failed to read UDP packet", "error", err)
				continue
			}
		}

		if n > 0 {
			h.handlePacket(buffer[:n], addr)
		}
	}
}

func (h *Handler) handlePacket(data []byte, addr *net.UDPAddr) {
	switch string(data) {
	case "HELLO":
		h.reply(addr, []byte("HI"))
	case "HELLOLAN":
		jsonData, err := json.Marshal(h.ServerInfo())
		if err != nil {
			h.logger.Error("failed to marshal server info", "error", err)
			return
		}
		h.reply(addr, jsonData)
	}
}

func (h *Handler) reply(addr *net.UDPAddr, data []byte) {
	if _, err := h.conn.WriteToUDP(data, addr); err != nil {
		h.logger.Error("failed to send ping response", "error", err, "addr", addr)
		return
	}
	h.logger.Debug("sent ping response", "addr", addr, "bytes", len(data))
}
