package server

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areumknits/patternview/internal/config"
)

// updateGolden is a flag to update golden files
var updateGolden = flag.Bool("update-golden", false, "update golden files")

func newJar(t *testing.T) http.CookieJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return jar
}

// wsTestClient is a helper for websocket protocol testing
type wsTestClient struct {
	conn    *websocket.Conn
	t       *testing.T
	timeout time.Duration
}

// newWSTestClient opens a viewer socket on slug, sharing the cookies of jar.
func newWSTestClient(t *testing.T, server *httptest.Server, slug string, jar http.CookieJar) *wsTestClient {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?pattern=" + slug
	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	c := &wsTestClient{conn: conn, t: t, timeout: 2 * time.Second}
	t.Cleanup(c.close)
	return c
}

func (c *wsTestClient) send(act Action) {
	c.t.Helper()
	data, err := json.Marshal(act)
	require.NoError(c.t, err)
	c.sendJSON(string(data))
}

func (c *wsTestClient) sendJSON(msg string) {
	c.t.Helper()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		c.t.Fatalf("Failed to send message: %v", err)
	}
}

func (c *wsTestClient) receive() Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var msg Message
	require.NoError(c.t, json.Unmarshal(data, &msg))
	return msg
}

func (c *wsTestClient) close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

const goldenDir = "testdata/ws_golden"

func loadGolden(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join(goldenDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("Failed to read golden file %s: %v", path, err)
	}
	return data
}

func saveGolden(t *testing.T, name string, data []byte) {
	t.Helper()
	path := filepath.Join(goldenDir, name+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write golden file: %v", err)
	}
}

// compareGolden compares a reply against a golden file
func compareGolden(t *testing.T, name string, got Message) {
	t.Helper()

	gotJSON, err := json.MarshalIndent(got, "", "  ")
	require.NoError(t, err)

	if *updateGolden {
		saveGolden(t, name, gotJSON)
		return
	}

	wantJSON := loadGolden(t, name)
	if wantJSON == nil {
		t.Fatalf("Golden file %s does not exist. Run with -update-golden to create it.", name)
	}
	assert.JSONEq(t, string(wantJSON), string(gotJSON))
}

func TestWebSocketActions(t *testing.T) {
	h := newTestServer(t)
	ws := newWSTestClient(t, h.http, "aurora-ribbed-beanie", newJar(t))

	ws.send(Action{Action: "setSize", Data: json.RawMessage(`{"size":"M"}`)})
	msg := ws.receive()
	require.Equal(t, MessageRender, msg.Type)
	assert.Equal(t, "Pattern size changed to Medium (M).", msg.Status)
	assert.Equal(t, "M", msg.State.Size)
	assert.Contains(t, msg.HTML, `data-pattern-slug="aurora-ribbed-beanie"`)

	ws.send(Action{Action: "toggleStep", Data: json.RawMessage(`{"stepKey":"p1-brim_2"}`)})
	msg = ws.receive()
	assert.Equal(t, "Steps 1 through 2 in this section marked complete.", msg.Status)
	assert.Equal(t, map[string]bool{"p1-brim_1": true, "p1-brim_2": true}, msg.State.Completed)

	ws.send(Action{Action: "toggleStep", Data: json.RawMessage(`{"stepKey":"p1-brim_1"}`)})
	msg = ws.receive()
	assert.Equal(t, "Steps 1 through 4 in this section marked incomplete.", msg.Status)
	assert.Empty(t, msg.State.Completed)
}

func TestWebSocketSharesBrowserState(t *testing.T) {
	h := newTestServer(t)
	jar := newJar(t)

	// The page visit issues the browser cookie the socket reuses.
	h.client.Jar = jar
	resp, _ := h.get(t, "/patterns/aurora-ribbed-beanie")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ws := newWSTestClient(t, h.http, "aurora-ribbed-beanie", jar)
	ws.send(Action{Action: "toggleTheme"})
	msg := ws.receive()
	assert.Equal(t, "Theme changed to dark mode.", msg.Status)

	_, body := h.get(t, "/api/patterns/aurora-ribbed-beanie/state")
	var got StateResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "dark", string(got.State.Theme))
}

func TestWebSocketErrors(t *testing.T) {
	h := newTestServer(t)
	ws := newWSTestClient(t, h.http, "aurora-ribbed-beanie", newJar(t))

	tests := []struct {
		golden string
		raw    string
	}{
		{"malformed", `{not json`},
		{"unknown_action", `{"action":"knit"}`},
		{"hidden_step", `{"action":"toggleStep","data":{"stepKey":"p2-body_3"}}`},
		{"bad_data", `{"action":"setSize","data":"M"}`},
	}
	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			ws.sendJSON(tt.raw)
			compareGolden(t, tt.golden, ws.receive())
		})
	}
}

func TestWebSocketExport(t *testing.T) {
	h := newTestServer(t)
	ws := newWSTestClient(t, h.http, "aurora-ribbed-beanie", newJar(t))

	ws.send(Action{Action: "export"})
	msg := ws.receive()
	assert.Equal(t, MessageExport, msg.Type)
	assert.Equal(t, "aurora-ribbed-beanie_interactive.html", msg.Filename)
	assert.Contains(t, msg.HTML, `id="pv-state"`)
}

func TestWebSocketExportRateLimited(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.Export.RateLimit = &config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	})
	ws := newWSTestClient(t, h.http, "aurora-ribbed-beanie", newJar(t))

	ws.send(Action{Action: "export"})
	assert.Equal(t, MessageExport, ws.receive().Type)

	ws.send(Action{Action: "export"})
	msg := ws.receive()
	assert.Equal(t, MessageError, msg.Type)
	assert.Contains(t, msg.Message, "Too many downloads")

	// Other actions are not limited.
	ws.send(Action{Action: "toggleUnit"})
	assert.Equal(t, MessageRender, ws.receive().Type)
}

func TestWebSocketRejects(t *testing.T) {
	h := newTestServer(t)
	base := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws?pattern="

	for _, slug := range []string{"", "nope", "olsen-cardigan"} {
		_, resp, err := websocket.DefaultDialer.Dial(base+slug, nil)
		require.Error(t, err, slug)
		require.NotNil(t, resp, slug)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, slug)
	}

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(base+"aurora-ribbed-beanie", header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"http://EXAMPLE.com", true},
		{"http://other.com", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "http://example.com/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, sameOrigin(r), tt.origin)
	}
}

func TestWebSocketConcurrentClients(t *testing.T) {
	h := newTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		ws := newWSTestClient(t, h.http, "aurora-ribbed-beanie", newJar(t))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = ws.conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"toggleUnit"}`))
				_ = ws.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				if _, _, err := ws.conn.ReadMessage(); err != nil {
					t.Errorf("read: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Eventually(t, func() bool { return h.srv.ConnectionCount() == 8 }, time.Second, 10*time.Millisecond)
}

func TestCloseDisconnectsViewers(t *testing.T) {
	h := newTestServer(t)
	ws := newWSTestClient(t, h.http, "aurora-ribbed-beanie", newJar(t))
	require.Eventually(t, func() bool { return h.srv.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, h.srv.Close())
	_ = ws.conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := ws.conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, h.srv.ConnectionCount())
}
