// Package realtime carries chat frames over WebSockets: a client per open chat on
// the consumer side and a room hub on the serving side.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/internal/auth"
	"github.com/charlesng35/tidylink/internal/chat"
	"github.com/charlesng35/tidylink/pkg/logger"
	"github.com/charlesng35/tidylink/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB

	defaultBufferSize       = 64
	defaultHandshakeTimeout = 10 * time.Second
	closeGrace              = 2 * time.Second

	closeReason = "Client closing"
)

var (
	ErrMissingToken   = errors.New("realtime: auth token is required")
	ErrMissingChat    = errors.New("realtime: chat id is required")
	ErrTokenExpired   = errors.New("realtime: auth token has expired")
	ErrNotConnected   = errors.New("realtime: socket is not open")
	ErrEmptyMessage   = errors.New("realtime: message content is empty")
	ErrSendBufferFull = errors.New("realtime: send buffer is full")
)

// State is the lifecycle position of a Client.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	}
	return "closed"
}

// Sink receives normalised inbound traffic. *store.Store satisfies it.
type Sink interface {
	InsertMessage(msg chat.Message) bool
	MarkMessagesReadUpTo(chatID, lastReadID string) bool
}

// Handlers are optional callbacks for frames that do not touch the store. They
// run on the socket goroutine; only OnClosed may call Disconnect.
type Handlers struct {
	OnConnected func(chatID string)
	OnTyping    func(chatID string, frame Frame)
	OnStatus    func(chatID string, frame Frame)
	OnError     func(chatID string, frame Frame)
	// OnClosed fires once, after Done is closed, when the client stops for good.
	// err is nil after Disconnect. chatID is empty for the notification socket.
	OnClosed func(chatID string, err error)
}

// Config holds settings shared by every chat connection.
type Config struct {
	BaseURL          string
	HandshakeTimeout time.Duration
	Reconnect        *ReconnectPolicy
	Handlers         Handlers
	Clock            func() time.Time
}

type conn struct {
	socket *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.socket.Close()
	})
}

// Client owns one socket: a single chat, or the session's notification feed.
type Client struct {
	chatID string
	label  string
	url    string
	cfg    Config
	sink   Sink
	route  func(Frame)
	dialer *websocket.Dialer
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	state   State
	conn    *conn
	closing bool
}

// Connect opens the socket of chatID authenticated by token. A missing token is a
// caller error: it is logged and reported as ErrMissingToken, and no socket is
// opened. Inbound messages and read receipts go to sink.
func Connect(ctx context.Context, cfg Config, sink Sink, chatID, token string) (*Client, error) {
	log := logger.WithChat("realtime", chatID)

	token = strings.TrimSpace(token)
	if token == "" {
		log.Warn("chat socket not opened: missing auth token")
		metrics.RealtimeConnections.WithLabelValues("skipped").Inc()
		return nil, ErrMissingToken
	}
	if strings.TrimSpace(chatID) == "" {
		log.Warn("chat socket not opened: missing chat id")
		metrics.RealtimeConnections.WithLabelValues("skipped").Inc()
		return nil, ErrMissingChat
	}
	if sink == nil {
		return nil, errors.New("realtime: sink is required")
	}
	if err := checkExpiry(cfg, token, "chat socket", log); err != nil {
		return nil, err
	}

	target, err := ChatURL(cfg.BaseURL, chatID, token)
	if err != nil {
		return nil, err
	}

	c := newClient(cfg, target, "chat socket", log)
	c.chatID = chatID
	c.sink = sink
	c.route = c.routeChatFrame
	if err := c.start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func checkExpiry(cfg Config, token, label string, log *zap.Logger) error {
	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}
	if info, ok := auth.Inspect(token); ok && info.Expired(now()) {
		log.Warn(label+" not opened: auth token expired", zap.Time("expired_at", info.ExpiresAt))
		metrics.RealtimeConnections.WithLabelValues("skipped").Inc()
		return ErrTokenExpired
	}
	return nil
}

func newClient(cfg Config, target, label string, log *zap.Logger) *Client {
	handshake := cfg.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Client{
		label: label,
		url:   target,
		cfg:   cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshake,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		log:    log,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateConnecting,
	}
}

func (c *Client) start(ctx context.Context) error {
	cn, err := c.dial(ctx)
	if err != nil {
		c.cancel()
		return err
	}
	c.attach(cn)

	go c.run(cn)
	return nil
}

// ChatID returns the chat this client is bound to.
func (c *Client) ChatID() string {
	if c == nil {
		return ""
	}
	return c.chatID
}

// State reports the current lifecycle state.
func (c *Client) State() State {
	if c == nil {
		return StateClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the client has stopped for good.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send posts a chat message. It never waits for delivery; when the socket is not
// open the call is logged and ErrNotConnected is returned.
func (c *Client) Send(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	return c.sendFrame(MessageFrame{Type: FrameMessage, Message: content})
}

// SendTyping toggles the typing indicator for the other participant.
func (c *Client) SendTyping(typing bool) error {
	return c.sendFrame(TypingFrame{Type: FrameTyping, IsTyping: typing})
}

// SendRead acknowledges every message up to lastReadID.
func (c *Client) SendRead(lastReadID string) error {
	if lastReadID == "" {
		return nil
	}
	return c.sendFrame(ReadFrame{Type: FrameRead, LastReadMessageID: lastReadID})
}

func (c *Client) sendFrame(frame any) error {
	if c == nil {
		logger.WithModule("realtime").Warn("send skipped: no chat socket")
		return ErrNotConnected
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("realtime: encode frame: %w", err)
	}

	c.mu.Lock()
	cn := c.conn
	open := c.state == StateOpen && cn != nil && !c.closing
	c.mu.Unlock()

	if !open {
		c.log.Warn("send skipped: " + c.label + " is not open")
		return ErrNotConnected
	}

	select {
	case <-cn.closed:
		c.log.Warn("send skipped: " + c.label + " is closing")
		return ErrNotConnected
	default:
	}

	select {
	case cn.send <- payload:
		return nil
	default:
		c.log.Warn("send dropped: outbound buffer full")
		return ErrSendBufferFull
	}
}

// Disconnect closes the socket with a normal closure and stops reconnecting. It is
// safe to call more than once and on a nil client.
func (c *Client) Disconnect() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closing = true
	cn := c.conn
	c.mu.Unlock()
	c.cancel()

	var err error
	if cn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeReason)
		werr := cn.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		select {
		case <-cn.closed:
			// already torn down by the read side
		default:
			if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
				err = fmt.Errorf("realtime: close %s: %w", c.target(), werr)
			}
		}

		select {
		case <-c.done:
		case <-time.After(closeGrace):
			cn.close()
			<-c.done
		}
	} else {
		<-c.done
	}

	c.log.Info(c.label + " disconnected")
	return err
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Client) dial(ctx context.Context) (*conn, error) {
	socket, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		metrics.RealtimeConnections.WithLabelValues("failed").Inc()
		fields := []zap.Field{zap.Error(err)}
		if resp != nil {
			fields = append(fields, zap.Int("status", resp.StatusCode))
		}
		c.log.Warn(c.label+" dial failed", fields...)
		return nil, fmt.Errorf("realtime: dial %s: %w", c.target(), err)
	}

	metrics.RealtimeConnections.WithLabelValues("open").Inc()
	socket.SetReadLimit(maxMessageSize)
	c.log.Info(c.label + " connected")

	return &conn{
		socket: socket,
		send:   make(chan []byte, defaultBufferSize),
		closed: make(chan struct{}),
	}, nil
}

func (c *Client) attach(cn *conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return false
	}
	c.conn = cn
	c.state = StateOpen
	return true
}

func (c *Client) detach(state State) {
	c.mu.Lock()
	c.conn = nil
	c.state = state
	c.mu.Unlock()
}

func (c *Client) run(cn *conn) {
	err := c.serve(cn)

	c.detach(StateClosed)
	c.cancel()
	if err != nil {
		c.log.Warn(c.label+" stopped", zap.Error(err))
	}
	close(c.done)

	if h := c.cfg.Handlers.OnClosed; h != nil {
		h(c.chatID, err)
	}
}

// serve pumps frames across reconnects. It returns nil after Disconnect and the
// last failure when the reconnect policy gives up.
func (c *Client) serve(cn *conn) error {
	attempt := 0
	for {
		if h := c.cfg.Handlers.OnConnected; h != nil {
			h(c.chatID)
		}

		go c.writeLoop(cn)
		err := c.readLoop(cn)
		cn.close()

		if c.isClosing() {
			return nil
		}
		c.detach(StateReconnecting)

		next, err := c.redial(&attempt, err)
		if next == nil {
			return err
		}
		cn = next
		attempt = 0
	}
}

// redial waits out the reconnect policy until a dial succeeds. A nil conn means
// the client stopped, with the error to report.
func (c *Client) redial(attempt *int, lastErr error) (*conn, error) {
	for {
		delay, ok := c.cfg.Reconnect.Delay(*attempt)
		if !ok {
			return nil, lastErr
		}
		*attempt++

		metrics.RealtimeReconnects.Inc()
		c.log.Info("reconnecting "+c.label,
			zap.Int("attempt", *attempt),
			zap.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return nil, nil
		case <-timer.C:
		}

		cn, err := c.dial(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return nil, nil
			}
			lastErr = err
			continue
		}
		if !c.attach(cn) {
			cn.close()
			return nil, nil
		}
		return cn, nil
	}
}

func (c *Client) target() string {
	if c.chatID == "" {
		return c.label
	}
	return "chat " + c.chatID
}

func (c *Client) readLoop(cn *conn) error {
	socket := cn.socket
	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.isClosing() {
				c.log.Warn(c.label+" closed unexpectedly", zap.Error(err))
			} else {
				c.log.Debug(c.label+" closed", zap.Error(err))
			}
			return err
		}

		_ = socket.SetReadDeadline(time.Now().Add(pongWait))
		c.handleFrame(payload)
	}
}

func (c *Client) writeLoop(cn *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cn.closed:
			return
		case payload := <-cn.send:
			_ = cn.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.socket.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn(c.label+" write failed", zap.Error(err))
				cn.close()
				return
			}
		case <-ticker.C:
			_ = cn.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				cn.close()
				return
			}
		}
	}
}

func (c *Client) handleFrame(payload []byte) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return
	}

	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		metrics.RealtimeFrames.WithLabelValues("invalid").Inc()
		c.log.Warn("invalid frame on "+c.label, zap.Error(err))
		return
	}
	c.route(frame)
}

func (c *Client) routeChatFrame(frame Frame) {
	h := c.cfg.Handlers
	switch kind := frame.Type(); kind {
	case FrameConnected, FrameConnection, FramePing, FramePong:
		metrics.RealtimeFrames.WithLabelValues("ignored").Inc()
	case FrameError:
		c.errorFrame(frame)
	case FrameTyping:
		metrics.RealtimeFrames.WithLabelValues("typing").Inc()
		if h.OnTyping != nil {
			h.OnTyping(c.chatID, frame)
		}
	case FrameStatus:
		metrics.RealtimeFrames.WithLabelValues("status").Inc()
		if h.OnStatus != nil {
			h.OnStatus(c.chatID, frame)
		}
	case FrameRead:
		metrics.RealtimeFrames.WithLabelValues("read").Inc()
		if lastRead := frame.LastReadID(); lastRead != "" {
			c.sink.MarkMessagesReadUpTo(c.chatID, lastRead)
		}
	case FrameMessage, FrameChatMessage, FrameNewMessage, "":
		msg, ok := chat.Normalize(c.chatID, frame)
		if !ok {
			metrics.RealtimeFrames.WithLabelValues("invalid").Inc()
			c.log.Debug("chat frame without content skipped")
			return
		}
		metrics.RealtimeFrames.WithLabelValues("message").Inc()
		c.sink.InsertMessage(msg)
	default:
		metrics.RealtimeFrames.WithLabelValues("ignored").Inc()
		c.log.Debug("unhandled chat frame type", zap.String("type", kind))
	}
}

func (c *Client) errorFrame(frame Frame) {
	metrics.RealtimeFrames.WithLabelValues("error").Inc()
	c.log.Warn(c.label+" error frame", zap.String("detail", frame.String("message", "detail", "error")))
	if h := c.cfg.Handlers.OnError; h != nil {
		h(c.chatID, frame)
	}
}
