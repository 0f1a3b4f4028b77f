package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/elicit-dev/elicit/internal/domain"
	"github.com/elicit-dev/elicit/internal/interview"
	"github.com/elicit-dev/elicit/internal/llm"
	"github.com/elicit-dev/elicit/internal/scenario"
)

// liveSession is the server-side state of one WebSocket interview. The
// session and hint engine live for the duration of the connection; the
// transcript is additionally checkpointed to the saved-session store after
// every settled turn so a dropped connection can resume.
type liveSession struct {
	session        *interview.Session
	engine         *interview.Engine
	prevCompletion interview.CompletionStatus
	saveKey        string
}

// sessionStartParams starts (or resumes) an interview over the socket.
type sessionStartParams struct {
	ScenarioID string `json:"scenarioId"`
	Resume     bool   `json:"resume,omitempty"`
}

type userMessageParams struct {
	Content string `json:"content"`
}

type hintDismissParams struct {
	HintID string `json:"hintId"`
}

// sessionSnapshot is the response payload for session.start and the state
// block attached to settled turns.
type sessionSnapshot struct {
	Scenario        domain.Scenario            `json:"scenario"`
	Messages        []domain.Message           `json:"messages"`
	State           interview.SessionState     `json:"state"`
	Completion      interview.CompletionStatus `json:"completion"`
	ActiveHints     []interview.ActiveHint     `json:"activeHints"`
	RemainingManual int                        `json:"remainingManual"`
	Resumed         bool                       `json:"resumed,omitempty"`
}

// turnResult is the response payload for a settled user.message turn.
type turnResult struct {
	MessageID      string                     `json:"messageId"`
	DisplayContent string                     `json:"displayContent"`
	MeetingEnded   bool                       `json:"meetingEnded"`
	FinalMessage   string                     `json:"finalMessage,omitempty"`
	Completion     interview.CompletionStatus `json:"completion"`
	NewlyObtained  []domain.RequiredDetail    `json:"newlyObtained,omitempty"`
	State          interview.SessionState     `json:"state"`
}

// handleWebSocket upgrades the connection and runs the live-session loop.
// One connection carries at most one interview at a time.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newWSClient(conn, s.log.Sub("ws"))
	saveKey := sessionKey(r)
	s.log.Debug().Str("conn", client.ConnID).Msg("websocket connected")

	var live *liveSession
	defer func() {
		if live != nil && live.engine != nil {
			live.engine.Close()
		}
		client.Close()
		s.log.Debug().Str("conn", client.ConnID).Msg("websocket disconnected")
	}()

	ctx := r.Context()
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Str("conn", client.ConnID).Msg("websocket read ended")
			}
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}

		switch frame.Method {
		case "session.start":
			live = s.wsSessionStart(ctx, client, frame, live, saveKey)
		case "user.message":
			s.wsUserMessage(ctx, client, frame, live)
		case "hint.request":
			s.wsHintRequest(client, frame, live)
		case "hint.dismiss":
			s.wsHintDismiss(client, frame, live)
		default:
			client.RespondError(frame.ID, ErrorShape{
				Code:    "unknown_method",
				Message: fmt.Sprintf("unknown method %q", frame.Method),
			})
		}
	}
}

func (s *Server) wsSessionStart(ctx context.Context, client *wsClient, frame Frame, prev *liveSession, saveKey string) *liveSession {
	var params sessionStartParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		client.RespondError(frame.ID, ErrorShape{Code: "bad_params", Message: "invalid session.start params"})
		return prev
	}

	sc, err := s.deps.Scenarios.GetByID(ctx, params.ScenarioID)
	if err != nil {
		if errors.Is(err, scenario.ErrNotFound) {
			client.RespondError(frame.ID, ErrorShape{Code: "not_found", Message: "scenario not found"})
		} else {
			s.log.Error().Err(err).Msg("failed to load scenario for live session")
			client.RespondError(frame.ID, ErrorShape{Code: "internal", Message: "failed to load scenario"})
		}
		return prev
	}

	// Replacing a running session tears down its hint timers first.
	if prev != nil && prev.engine != nil {
		prev.engine.Close()
	}

	var sess *interview.Session
	resumed := false
	if params.Resume {
		if saved, err := s.deps.Sessions.Get(ctx, saveKey); err == nil && saved != nil && saved.ScenarioID == sc.ID {
			sess = interview.ResumeSession(*sc, saved.Messages)
			resumed = true
		}
	}
	if sess == nil {
		sess = interview.NewSession(*sc, uuid.NewString())
	}

	engine := interview.NewEngine(sc.Hints, interview.WithActivateFunc(func(h domain.Hint) {
		client.SendEvent(EventHintActivate, map[string]any{"hint": h}, s.eventSeq.Add(1))
	}))
	// A resumed transcript re-seeds keyword triggers and retires hints the
	// trainee already saw.
	if resumed {
		engine.ObserveAssistant(sess.Messages())
	}

	live := &liveSession{
		session:        sess,
		engine:         engine,
		prevCompletion: sess.Completion(),
		saveKey:        saveKey,
	}

	client.Respond(frame.ID, sessionSnapshot{
		Scenario:        *sc,
		Messages:        sess.Messages(),
		State:           sess.State(),
		Completion:      live.prevCompletion,
		ActiveHints:     engine.Active(),
		RemainingManual: engine.RemainingManual(),
		Resumed:         resumed,
	})
	return live
}

func (s *Server) wsUserMessage(ctx context.Context, client *wsClient, frame Frame, live *liveSession) {
	if live == nil {
		client.RespondError(frame.ID, ErrorShape{Code: "no_session", Message: "no active session"})
		return
	}

	var params userMessageParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		client.RespondError(frame.ID, ErrorShape{Code: "bad_params", Message: "invalid user.message params"})
		return
	}
	if strings.TrimSpace(params.Content) == "" {
		client.RespondError(frame.ID, ErrorShape{Code: "bad_params", Message: "message must not be blank"})
		return
	}
	if len(params.Content) > maxUserMessageChars {
		client.RespondError(frame.ID, ErrorShape{
			Code:    "bad_params",
			Message: fmt.Sprintf("message exceeds %d characters", maxUserMessageChars),
		})
		return
	}
	if !live.session.AcceptingInput() {
		client.RespondError(frame.ID, ErrorShape{Code: "session_ended", Message: "session has ended"})
		return
	}

	live.prevCompletion = live.session.Completion()
	live.session.Append(domain.Message{
		ID:      uuid.NewString(),
		Role:    domain.RoleUser,
		Content: params.Content,
	})
	live.engine.UserTurn()

	sc := live.session.Scenario()
	stream, err := s.deps.AI.Stream(ctx, s.completionRequest(&sc, live.session.Messages()))
	if err != nil {
		s.log.Error().Err(err).Str("scenario", sc.ID).Msg("completion stream failed to start")
		client.RespondError(frame.ID, ErrorShape{Code: "ai_unavailable", Message: "AI service unavailable", Retryable: true})
		return
	}

	if s.thinkingDelay > 0 {
		select {
		case <-time.After(s.thinkingDelay):
		case <-ctx.Done():
			return
		}
	}

	var content strings.Builder
	for ev := range stream {
		switch ev.Type {
		case llm.EventDelta:
			content.WriteString(ev.Content)
			client.SendEvent(EventChatDelta, chatDelta{Type: "delta", Content: ev.Content}, s.eventSeq.Add(1))
		case llm.EventError:
			s.log.Error().Str("error", ev.Error).Str("scenario", sc.ID).Msg("completion stream failed")
			client.RespondError(frame.ID, ErrorShape{Code: "ai_unavailable", Message: "AI service unavailable", Retryable: true})
			return
		case llm.EventDone:
			if ev.Response != nil && ev.Response.Content != "" {
				content.Reset()
				content.WriteString(ev.Response.Content)
			}
		}
	}

	result := interview.ParseEndMeeting(content.String())
	msg := domain.Message{
		ID:      uuid.NewString(),
		Role:    domain.RoleAssistant,
		Content: content.String(),
	}
	live.session.Append(msg)
	live.engine.ObserveAssistant(live.session.Messages())

	completion := live.session.Completion()
	newly := interview.NewlyObtainedDetails(&live.prevCompletion, completion)
	if len(newly) > 0 {
		client.SendEvent(EventDetailUpdate, map[string]any{
			"completion":    completion,
			"newlyObtained": newly,
		}, s.eventSeq.Add(1))
	}

	state := live.session.State()
	s.checkpoint(ctx, live, state)
	if state.IsEnded {
		client.SendEvent(EventSessionEnd, map[string]any{
			"state":        state,
			"completion":   completion,
			"meetingEnded": result.MeetingEnded,
			"finalMessage": result.FinalMessage,
		}, s.eventSeq.Add(1))
	}

	client.Respond(frame.ID, turnResult{
		MessageID:      msg.ID,
		DisplayContent: result.DisplayContent,
		MeetingEnded:   result.MeetingEnded,
		FinalMessage:   result.FinalMessage,
		Completion:     completion,
		NewlyObtained:  newly,
		State:          state,
	})
}

// checkpoint persists the transcript after a settled turn, or clears the
// slot once the session has ended. Failures are logged, never surfaced; the
// in-memory session stays authoritative.
func (s *Server) checkpoint(ctx context.Context, live *liveSession, state interview.SessionState) {
	if s.deps.Sessions == nil || live.saveKey == "" {
		return
	}
	if state.IsEnded {
		if err := s.deps.Sessions.Delete(ctx, live.saveKey); err != nil {
			s.log.Warn().Err(err).Msg("failed to clear saved session")
		}
		return
	}
	sess := domain.SavedSession{
		ScenarioID: live.session.Scenario().ID,
		Messages:   live.session.Messages(),
		SavedAt:    time.Now(),
	}
	if err := s.deps.Sessions.Put(ctx, live.saveKey, sess); err != nil {
		s.log.Warn().Err(err).Msg("failed to checkpoint session")
	}
}

func (s *Server) wsHintRequest(client *wsClient, frame Frame, live *liveSession) {
	if live == nil {
		client.RespondError(frame.ID, ErrorShape{Code: "no_session", Message: "no active session"})
		return
	}
	hint, ok := live.engine.RequestManual()
	if !ok {
		client.RespondError(frame.ID, ErrorShape{Code: "no_hints", Message: "no manual hints remaining"})
		return
	}
	client.Respond(frame.ID, map[string]any{
		"hint":            hint,
		"remainingManual": live.engine.RemainingManual(),
	})
}

func (s *Server) wsHintDismiss(client *wsClient, frame Frame, live *liveSession) {
	if live == nil {
		client.RespondError(frame.ID, ErrorShape{Code: "no_session", Message: "no active session"})
		return
	}
	var params hintDismissParams
	if err := json.Unmarshal(frame.Params, &params); err != nil || params.HintID == "" {
		client.RespondError(frame.ID, ErrorShape{Code: "bad_params", Message: "invalid hint.dismiss params"})
		return
	}
	live.engine.Dismiss(params.HintID)
	client.Respond(frame.ID, map[string]any{"dismissed": params.HintID})
}
