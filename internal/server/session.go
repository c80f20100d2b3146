package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/areumknits/patternview"
	"github.com/areumknits/patternview/internal/state"
	"github.com/areumknits/patternview/internal/storage"
	"github.com/areumknits/patternview/internal/units"
)

// browserCookie identifies a browser the way its local storage would: all
// of a browser's tabs share one namespace in the storage backend.
const browserCookie = "pv_browser"

const browserCookieMaxAge = 400 * 24 * time.Hour

// browserID returns the request's browser id, issuing a new one as a cookie
// when the request has none.
func (s *Server) browserID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := requestBrowserID(r); ok {
		return id
	}
	id := newBrowserID()
	http.SetCookie(w, newBrowserCookie(id, r.TLS != nil))
	return id
}

func newBrowserID() string {
	return uuid.NewString()
}

func requestBrowserID(r *http.Request) (string, bool) {
	c, err := r.Cookie(browserCookie)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func newBrowserCookie(id string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     browserCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(browserCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// viewer is one browser's session on one pattern. status holds the last
// announcement the session made.
type viewer struct {
	pattern *patternview.Pattern
	browser string
	session *state.Session
	status  string
}

func (s *Server) openViewer(ctx context.Context, p *patternview.Pattern, browser string) (*viewer, error) {
	v := &viewer{pattern: p, browser: browser}
	sess, err := state.New(ctx, p, s.sessionOptions(browser, state.AnnouncerFunc(func(msg string) {
		v.status = msg
	})))
	if err != nil {
		return nil, err
	}
	v.session = sess
	return v, nil
}

func (s *Server) sessionOptions(browser string, announce state.Announcer) state.Options {
	vc := s.cfg.Viewer
	unit, ok := units.ParseUnit(vc.DefaultUnit)
	if !ok {
		unit = units.Inches
	}
	theme, _ := state.ParseTheme(s.cfg.Site.GetTheme())
	return state.Options{
		Store:    storage.Scope(s.backend, browser),
		Theme:    state.StaticTheme(theme),
		Announce: announce,
		Logger:   s.log.With(zap.String("browser", browser)),
		Font: state.Font{
			Min:     vc.Font.Min,
			Max:     vc.Font.Max,
			Step:    vc.Font.Step,
			Default: vc.Font.Default,
		},
		DefaultUnit:   unit,
		DefaultSize:   vc.DefaultSize,
		KeyPrefix:     vc.KeyPrefix,
		SchemaVersion: vc.SchemaVersion,
	}
}
