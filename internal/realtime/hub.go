package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/pkg/logger"
)

// Participant identifies the user behind a hub connection.
type Participant struct {
	UserID string
	Role   string
	Name   string
}

// FrameHandler handles a frame read from a peer. It runs on the peer's read goroutine.
type FrameHandler func(peer *Peer, frame Frame)

// Hub fans chat frames out to every socket joined to a chat room.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Peer]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
	dropped  atomic.Uint64
}

// NewHub constructs a chat hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Peer]struct{}),
		log:   logger.WithModule("realtime.hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Allow same-origin requests and explicit localhost development.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the request and joins the socket to room until it disconnects.
// Inbound frames are passed to onFrame; application pings are answered here.
func (h *Hub) Serve(room string, who Participant, w http.ResponseWriter, r *http.Request, onFrame FrameHandler) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("room", room), zap.Error(err))
		return
	}

	peer := &Peer{
		hub:         h,
		socket:      socket,
		room:        room,
		Participant: who,
		send:        make(chan any, defaultBufferSize),
		closed:      make(chan struct{}),
	}
	h.join(peer)
	peer.Send(map[string]any{"type": FrameConnected, "chat_id": room})

	go peer.writeLoop()
	peer.readLoop(onFrame)
}

// Broadcast delivers payload to every peer in room.
func (h *Hub) Broadcast(room string, payload any) {
	h.BroadcastExcept(room, nil, payload)
}

// BroadcastExcept delivers payload to every peer in room but skip.
func (h *Hub) BroadcastExcept(room string, skip *Peer, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for peer := range h.rooms[room] {
		if peer == skip {
			continue
		}
		h.enqueue(peer, payload)
	}
}

// HubStats is a point-in-time view of the hub.
type HubStats struct {
	Rooms   int    `json:"rooms"`
	Peers   int    `json:"peers"`
	Dropped uint64 `json:"dropped"`
}

// Stats reports the joined rooms and peers and how many peers were dropped for backpressure.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := HubStats{Rooms: len(h.rooms), Dropped: h.dropped.Load()}
	for _, peers := range h.rooms {
		stats.Peers += len(peers)
	}
	return stats
}

// Peers returns the number of sockets joined to room.
func (h *Hub) Peers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) join(peer *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[peer.room] == nil {
		h.rooms[peer.room] = make(map[*Peer]struct{})
	}
	h.rooms[peer.room][peer] = struct{}{}
}

func (h *Hub) leave(peer *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if peers := h.rooms[peer.room]; peers != nil {
		delete(peers, peer)
		if len(peers) == 0 {
			delete(h.rooms, peer.room)
		}
	}
}

func (h *Hub) enqueue(peer *Peer, payload any) {
	select {
	case <-peer.closed:
	case peer.send <- payload:
	default:
		h.dropped.Add(1)
		h.log.Warn("dropping backpressure peer", zap.String("room", peer.room), zap.String("user_id", peer.UserID))
		go peer.close()
	}
}

// Peer is one socket joined to a room.
type Peer struct {
	Participant

	hub    *Hub
	socket *websocket.Conn
	room   string
	send   chan any
	closed chan struct{}
	once   sync.Once
}

// Room returns the room the peer joined.
func (p *Peer) Room() string {
	return p.room
}

// Send queues payload for this peer only.
func (p *Peer) Send(payload any) {
	p.hub.enqueue(p, payload)
}

func (p *Peer) readLoop(onFrame FrameHandler) {
	defer p.close()

	p.socket.SetReadLimit(maxMessageSize)
	_ = p.socket.SetReadDeadline(time.Now().Add(pongWait))
	p.socket.SetPongHandler(func(string) error {
		_ = p.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := p.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.hub.log.Info("unexpected close", zap.String("room", p.room), zap.String("user_id", p.UserID), zap.Error(err))
			}
			return
		}
		if len(payload) == 0 {
			continue
		}
		_ = p.socket.SetReadDeadline(time.Now().Add(pongWait))

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			p.Send(map[string]any{"type": FrameError, "message": "invalid JSON frame"})
			continue
		}

		if frame.Type() == FramePing {
			p.Send(map[string]any{"type": FramePong})
			continue
		}
		if onFrame != nil {
			onFrame(p, frame)
		}
	}
}

func (p *Peer) writeLoop() {
	defer p.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.closed:
			return
		case payload := <-p.send:
			_ = p.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.socket.WriteJSON(payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *Peer) close() {
	p.once.Do(func() {
		p.hub.leave(p)
		close(p.closed)
		_ = p.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
