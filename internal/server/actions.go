package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/areumknits/patternview/internal/render"
	"github.com/areumknits/patternview/internal/state"
	"github.com/areumknits/patternview/internal/units"
)

// Action is a client request, sent over the websocket or POSTed.
//
//	{"action":"setSize","data":{"size":"S"}}
type Action struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type actionData struct {
	Size     string `json:"size"`
	Unit     string `json:"unit"`
	FontSize int    `json:"fontSize"`
	Delta    int    `json:"delta"`
	Theme    string `json:"theme"`
	Visible  *bool  `json:"visible"`
	StepKey  string `json:"stepKey"`
	ID       string `json:"id"`
}

// Message types sent to clients.
const (
	MessageRender = "render"
	MessageExport = "export"
	MessageError  = "error"
)

// Message is the server's reply to an action.
type Message struct {
	Type     string          `json:"type"`
	HTML     string          `json:"html,omitempty"`
	Status   string          `json:"status,omitempty"`
	State    *state.Snapshot `json:"state,omitempty"`
	Filename string          `json:"filename,omitempty"`
	Message  string          `json:"message,omitempty"`
}

func errorMessage(format string, args ...any) Message {
	return Message{Type: MessageError, Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownAction is returned for an action name the viewer does not have.
var ErrUnknownAction = errors.New("unknown action")

// apply runs one action against v and answers with either a fresh render,
// an export or an error. The caller serializes calls per viewer.
func (s *Server) apply(ctx context.Context, v *viewer, act Action) Message {
	var d actionData
	if len(act.Data) > 0 && string(act.Data) != "null" {
		if err := json.Unmarshal(act.Data, &d); err != nil {
			return errorMessage("Malformed data for %s.", act.Action)
		}
	}

	v.status = ""
	sess := v.session
	switch act.Action {
	case "setSize":
		if err := sess.SetSize(ctx, d.Size); err != nil {
			return errorMessage("Size %s is not available.", d.Size)
		}
	case "setUnit":
		u, ok := units.ParseUnit(d.Unit)
		if !ok {
			return errorMessage("Unknown unit %q.", d.Unit)
		}
		_ = sess.SetUnit(ctx, u)
	case "toggleUnit":
		sess.ToggleUnit(ctx)
	case "setFontSize":
		sess.SetFontSize(ctx, d.FontSize)
	case "stepFontSize":
		sess.StepFontSize(ctx, d.Delta)
	case "setTheme":
		t, ok := state.ParseTheme(d.Theme)
		if !ok {
			return errorMessage("Unknown theme %q.", d.Theme)
		}
		_ = sess.SetTheme(ctx, t)
	case "toggleTheme":
		sess.ToggleTheme(ctx)
	case "setImageVisible":
		if d.Visible == nil {
			return errorMessage("setImageVisible needs a visible flag.")
		}
		sess.SetImageVisible(ctx, *d.Visible)
	case "toggleImage":
		sess.ToggleImage(ctx)
	case "toggleStep":
		order, ok := render.StepOrder(v.pattern, sess.Snapshot().Size, d.StepKey)
		if !ok {
			return errorMessage("Step %s is not shown for this size.", d.StepKey)
		}
		if err := sess.ToggleStep(ctx, d.StepKey, order); err != nil {
			return errorMessage("Step %s is not shown for this size.", d.StepKey)
		}
	case "toggleSection":
		sec, ok := render.FindSection(v.pattern, d.ID)
		if !ok {
			return errorMessage("Unknown section %q.", d.ID)
		}
		sess.ToggleSection(ctx, sec.ID, sec.Title)
	case "reset":
		sess.Reset(ctx)
	case "export":
		return s.exportMessage(v)
	default:
		s.log.Debug("unknown action", zap.String("action", act.Action))
		return errorMessage("%v: %s", ErrUnknownAction, act.Action)
	}

	return s.renderMessage(v)
}

func (s *Server) renderMessage(v *viewer) Message {
	snap := v.session.Snapshot()
	html, err := s.renderer.BodyString(v.pattern, snap)
	if err != nil {
		return errorMessage("The pattern could not be displayed.")
	}
	return Message{Type: MessageRender, HTML: html, Status: v.status, State: &snap}
}

func (s *Server) exportMessage(v *viewer) Message {
	doc, err := s.exporter.Pattern(s.renderer, v.pattern, v.session.Snapshot(), v.session.Defaults())
	if err != nil {
		return errorMessage("The interactive pattern could not be exported.")
	}
	return Message{
		Type:     MessageExport,
		Filename: doc.Filename,
		HTML:     string(doc.HTML),
		Status:   "Interactive pattern downloaded.",
	}
}
