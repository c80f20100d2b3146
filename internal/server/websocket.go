package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/areumknits/patternview/internal/catalog"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

func deadline() time.Time {
	return time.Now().Add(writeWait)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts requests without an Origin header (non-browser clients)
// and browser requests whose Origin host matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// liveConn is one open viewer socket. mu serializes actions, re-renders and
// writes on the connection.
type liveConn struct {
	conn    *websocket.Conn
	ip      string
	slug    string
	browser string

	mu     sync.Mutex
	viewer *viewer
}

func (c *liveConn) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(deadline())
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) register(c *liveConn) {
	s.connMu.Lock()
	s.connections[c] = true
	s.connMu.Unlock()
}

func (s *Server) unregister(c *liveConn) {
	s.connMu.Lock()
	delete(s.connections, c)
	s.connMu.Unlock()
}

// ConnectionCount reports the open viewer sockets.
func (s *Server) ConnectionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.connections)
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	p, ok := s.catalog.Get(r.URL.Query().Get("pattern"))
	if !ok || p.IsStub() {
		http.NotFound(w, r)
		return
	}

	browser, ok := requestBrowserID(r)
	header := http.Header{}
	if !ok {
		browser = newBrowserID()
		header.Add("Set-Cookie", newBrowserCookie(browser, r.TLS != nil).String())
	}

	v, err := s.openViewer(r.Context(), p, browser)
	if err != nil {
		s.log.Error("failed to open session", zap.String("pattern", p.Slug), zap.Error(err))
		http.Error(w, "failed to load pattern state", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &liveConn{conn: conn, ip: getClientIP(r), slug: p.Slug, browser: browser, viewer: v}
	s.register(c)
	defer func() {
		s.unregister(c)
		_ = conn.Close()
	}()

	log := s.log.With(zap.String("pattern", p.Slug), zap.String("remote", c.ip))
	log.Debug("viewer connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("unexpected close", zap.Error(err))
			}
			break
		}
		s.handleMessage(c, data)
	}
	log.Debug("viewer disconnected")
}

func (s *Server) handleMessage(c *liveConn, data []byte) {
	var act Action
	reply := Message{}
	if err := json.Unmarshal(data, &act); err != nil {
		reply = errorMessage("Malformed message.")
	} else if act.Action == "export" && !s.limiter.Allow(c.ip) {
		reply = errorMessage("Too many downloads. Please wait a moment and try again.")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if reply.Type == "" {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		reply = s.apply(ctx, c.viewer, act)
		cancel()
	}
	if err := c.send(reply); err != nil {
		s.log.Debug("write failed", zap.String("pattern", c.slug), zap.Error(err))
	}
}

// onCatalogChange pushes the edited pattern to every socket viewing it.
func (s *Server) onCatalogChange(ch catalog.Change) {
	s.connMu.RLock()
	var targets []*liveConn
	for c := range s.connections {
		if c.slug == ch.Slug {
			targets = append(targets, c)
		}
	}
	s.connMu.RUnlock()

	for _, c := range targets {
		s.refresh(c, ch)
	}
}

func (s *Server) refresh(c *liveConn, ch catalog.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch.Pattern == nil || ch.Pattern.IsStub() {
		_ = c.send(errorMessage("This pattern is no longer available."))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	v, err := s.openViewer(ctx, ch.Pattern, c.browser)
	if err != nil {
		s.log.Error("failed to reload session", zap.String("pattern", c.slug), zap.Error(err))
		return
	}
	c.viewer = v
	if err := c.send(s.renderMessage(v)); err != nil {
		s.log.Debug("write failed", zap.String("pattern", c.slug), zap.Error(err))
	}
}
