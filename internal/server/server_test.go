package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/areumknits/patternview/internal/catalog"
	"github.com/areumknits/patternview/internal/config"
	"github.com/areumknits/patternview/internal/export"
	"github.com/areumknits/patternview/internal/render"
	"github.com/areumknits/patternview/internal/storage"
)

const patternsDir = "../../examples/patterns"

type harness struct {
	srv     *Server
	backend *storage.Memory
	http    *httptest.Server
	client  *http.Client
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	return newTestServerAt(t, patternsDir, mutate...)
}

func newTestServerAt(t *testing.T, dir string, mutate ...func(*config.Config)) *harness {
	t.Helper()
	// Socket handlers can outlive the test, so they must not log through t.
	logger := zap.NewNop()

	cfg := config.DefaultConfig()
	for _, m := range mutate {
		m(cfg)
	}

	cat := catalog.New(dir, logger)
	require.NoError(t, cat.Discover())

	r, err := render.New(render.Options{SiteTitle: cfg.Title, Live: true})
	require.NoError(t, err)
	e, err := export.New(export.Options{Minify: cfg.Export.Minify, Logger: logger})
	require.NoError(t, err)

	backend := storage.NewMemory(0)
	srv, err := New(Options{
		Config:   cfg,
		Catalog:  cat,
		Backend:  backend,
		Renderer: r,
		Exporter: e,
		Logger:   logger,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	jar := newJar(t)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
		_ = backend.Close()
	})
	return &harness{srv: srv, backend: backend, http: ts, client: &http.Client{Jar: jar}}
}

func (h *harness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.Get(h.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var b strings.Builder
	_, err = b.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, b.String()
}

func (h *harness) post(t *testing.T, path, body string) (*http.Response, Message) {
	t.Helper()
	resp, err := h.client.Post(h.http.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var msg Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	return resp, msg
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorContains(t, err, "config is required")

	_, err = New(Options{Config: config.DefaultConfig()})
	assert.ErrorContains(t, err, "catalog is required")
}

func TestServeIndex(t *testing.T) {
	h := newTestServer(t)
	resp, body := h.get(t, "/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "The Aurora Ribbed Beanie")
	assert.Contains(t, body, "Olsen Cardigan")
	assert.Contains(t, body, "/patterns/aurora-ribbed-beanie")
}

func TestServePattern(t *testing.T) {
	h := newTestServer(t)
	resp, body := h.get(t, "/patterns/aurora-ribbed-beanie")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, body, `data-pattern-slug="aurora-ribbed-beanie"`)
	assert.Contains(t, body, "live.js")

	u, _ := url.Parse(h.http.URL)
	cookies := h.client.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, browserCookie, cookies[0].Name)
}

func TestServePatternNotFound(t *testing.T) {
	h := newTestServer(t)

	resp, _ := h.get(t, "/patterns/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := h.get(t, "/patterns/olsen-cardigan")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Olsen Cardigan")
}

func TestServeState(t *testing.T) {
	h := newTestServer(t)
	resp, body := h.get(t, "/api/patterns/aurora-ribbed-beanie/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got StateResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "aurora-ribbed-beanie", got.State.PatternID)
	assert.Equal(t, "S", got.State.Size)
	assert.Equal(t, 16, got.State.FontSize)
	assert.Equal(t, "S", got.Defaults.Size)
	assert.Equal(t, []string{"S", "M", "L", "XL"}, got.Defaults.SizeKeys)
	assert.Equal(t, "areumPattern_v2_aurora-ribbed-beanie_", got.Defaults.KeyBase)
}

func TestServeStateStub(t *testing.T) {
	h := newTestServer(t)
	resp, body := h.get(t, "/api/patterns/olsen-cardigan/state")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "error")
}

func TestServeActionPersistsAcrossRequests(t *testing.T) {
	h := newTestServer(t)
	path := "/api/patterns/aurora-ribbed-beanie/actions"

	resp, msg := h.post(t, path, `{"action":"setSize","data":{"size":"XL"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, MessageRender, msg.Type)
	assert.Equal(t, "Pattern size changed to Extra Large (XL).", msg.Status)
	require.NotNil(t, msg.State)
	assert.Equal(t, "XL", msg.State.Size)
	assert.Contains(t, msg.HTML, `id="pv-root"`)

	_, msg = h.post(t, path, `{"action":"toggleStep","data":{"stepKey":"p1-brim_3"}}`)
	require.Equal(t, MessageRender, msg.Type)
	assert.Equal(t, map[string]bool{"p1-brim_1": true, "p1-brim_2": true, "p1-brim_3": true}, msg.State.Completed)

	_, body := h.get(t, "/api/patterns/aurora-ribbed-beanie/state")
	var got StateResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "XL", got.State.Size)
	assert.Len(t, got.State.Completed, 3)

	_, msg = h.post(t, path, `{"action":"reset"}`)
	assert.Equal(t, "All pattern-specific settings and progress reset to defaults.", msg.Status)
	assert.Equal(t, "S", msg.State.Size)
	assert.Empty(t, msg.State.Completed)
}

func TestServeActionErrors(t *testing.T) {
	h := newTestServer(t)
	path := "/api/patterns/aurora-ribbed-beanie/actions"

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing action", `{}`, http.StatusBadRequest},
		{"unknown action", `{"action":"knit"}`, http.StatusUnprocessableEntity},
		{"bad size", `{"action":"setSize","data":{"size":"XXL"}}`, http.StatusUnprocessableEntity},
		{"bad unit", `{"action":"setUnit","data":{"unit":"furlong"}}`, http.StatusUnprocessableEntity},
		{"bad theme", `{"action":"setTheme","data":{"theme":"sepia"}}`, http.StatusUnprocessableEntity},
		{"hidden step", `{"action":"toggleStep","data":{"stepKey":"p2-body_3"}}`, http.StatusUnprocessableEntity},
		{"unknown section", `{"action":"toggleSection","data":{"id":"nope"}}`, http.StatusUnprocessableEntity},
		{"image without flag", `{"action":"setImageVisible","data":{}}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.client.Post(h.http.URL+path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestServeActionAnnouncements(t *testing.T) {
	h := newTestServer(t)
	path := "/api/patterns/aurora-ribbed-beanie/actions"

	tests := []struct {
		body   string
		status string
	}{
		{`{"action":"toggleUnit"}`, "Units changed to centimeters."},
		{`{"action":"setUnit","data":{"unit":"in"}}`, "Units changed to inches."},
		{`{"action":"stepFontSize","data":{"delta":1}}`, "Font size set to 17px."},
		{`{"action":"setFontSize","data":{"fontSize":40}}`, "Font size set to 20px."},
		{`{"action":"toggleTheme"}`, "Theme changed to dark mode."},
		{`{"action":"setTheme","data":{"theme":"light"}}`, "Theme changed to light mode."},
		{`{"action":"toggleImage"}`, "Pattern image hidden."},
		{`{"action":"setImageVisible","data":{"visible":true}}`, "Pattern image shown."},
		{`{"action":"toggleSection","data":{"id":"aurora-ribbed-beanie_materials"}}`, "Materials collapsed."},
	}
	for _, tt := range tests {
		_, msg := h.post(t, path, tt.body)
		assert.Equal(t, MessageRender, msg.Type, tt.body)
		assert.Equal(t, tt.status, msg.Status, tt.body)
	}
}

func TestServeActionExport(t *testing.T) {
	h := newTestServer(t)
	_, msg := h.post(t, "/api/patterns/aurora-ribbed-beanie/actions", `{"action":"export"}`)

	assert.Equal(t, MessageExport, msg.Type)
	assert.Equal(t, "aurora-ribbed-beanie_interactive.html", msg.Filename)
	assert.Equal(t, "Interactive pattern downloaded.", msg.Status)
	assert.True(t, strings.HasPrefix(msg.HTML, "<!DOCTYPE html>"))
}

func TestServeDownload(t *testing.T) {
	h := newTestServer(t)
	resp, body := h.get(t, "/patterns/aurora-ribbed-beanie/download")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="aurora-ribbed-beanie_interactive.html"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, `id="pv-state"`)
	assert.NotContains(t, body, "live.js")
}

func TestServeDownloadRateLimited(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.Export.RateLimit = &config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	})

	resp, _ := h.get(t, "/patterns/aurora-ribbed-beanie/download")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.get(t, "/patterns/aurora-ribbed-beanie/download")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestServeAssets(t *testing.T) {
	h := newTestServer(t)

	resp, body := h.get(t, "/assets/live.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
	assert.Contains(t, body, "data-pv-action")

	resp, _ = h.get(t, "/assets/viewer.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBrowsersAreIsolated(t *testing.T) {
	h := newTestServer(t)
	path := "/api/patterns/aurora-ribbed-beanie/actions"
	h.post(t, path, `{"action":"setSize","data":{"size":"L"}}`)

	other := &http.Client{Jar: newJar(t)}
	resp, err := other.Get(h.http.URL + "/api/patterns/aurora-ribbed-beanie/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "S", got.State.Size)
}
