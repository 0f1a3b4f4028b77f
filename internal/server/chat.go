package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elicit-dev/elicit/internal/domain"
	"github.com/elicit-dev/elicit/internal/interview"
	"github.com/elicit-dev/elicit/internal/llm"
	"github.com/elicit-dev/elicit/internal/scenario"
)

// Request validation limits for chat turns.
const (
	maxRequestMessages  = 50
	maxUserMessageChars = 500
)

// chatRequest is the POST /api/chat body: the scenario plus the full
// transcript so far, ending with the trainee's newest message.
type chatRequest struct {
	ScenarioID string           `json:"scenarioId"`
	Messages   []domain.Message `json:"messages"`
}

// chatDelta is one streamed chunk of the persona's reply.
type chatDelta struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// chatDone is the terminal payload of a chat stream, carrying everything the
// client needs to update the transcript and the progress panel.
type chatDone struct {
	Type           string                      `json:"type"`
	MessageID      string                      `json:"messageId"`
	DisplayContent string                      `json:"displayContent"`
	MeetingEnded   bool                        `json:"meetingEnded"`
	FinalMessage   string                      `json:"finalMessage,omitempty"`
	Completion     interview.CompletionStatus  `json:"completion"`
	NewlyObtained  []domain.RequiredDetail     `json:"newlyObtained,omitempty"`
	State          interview.SessionState      `json:"state"`
}

func validateChatRequest(req chatRequest) error {
	if !scenario.ValidID(req.ScenarioID) {
		return errors.New("invalid scenario id")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	if len(req.Messages) > maxRequestMessages {
		return fmt.Errorf("too many messages (max %d)", maxRequestMessages)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != domain.RoleUser {
		return errors.New("last message must be a user message")
	}
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant:
		default:
			return fmt.Errorf("unsupported message role %q", m.Role)
		}
		if m.Role == domain.RoleUser {
			if strings.TrimSpace(m.Content) == "" {
				return errors.New("user messages must not be blank")
			}
			if len(m.Content) > maxUserMessageChars {
				return fmt.Errorf("user message exceeds %d characters", maxUserMessageChars)
			}
		}
	}
	return nil
}

// handleChat streams a persona reply over Server-Sent Events. The stream
// carries delta chunks followed by a single done payload with the settled
// message, completion status and session state.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateChatRequest(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc, err := s.deps.Scenarios.GetByID(ctx, req.ScenarioID)
	if err != nil {
		if errors.Is(err, scenario.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "scenario not found")
			return
		}
		s.log.Error().Err(err).Msg("failed to load scenario for chat")
		writeJSONError(w, http.StatusInternalServerError, "failed to load scenario")
		return
	}

	// Rebuild the session from everything before the newest user message.
	// If that prior state is already ended the new turn is rejected, so an
	// ended session cannot be extended by replaying the transcript.
	prior := req.Messages[:len(req.Messages)-1]
	sess := interview.ResumeSession(*sc, prior)
	if !sess.AcceptingInput() {
		writeJSONError(w, http.StatusConflict, "session has ended")
		return
	}
	prevCompletion := sess.Completion()
	sess.Append(req.Messages[len(req.Messages)-1])

	stream, err := s.deps.AI.Stream(ctx, s.completionRequest(sc, sess.Messages()))
	if err != nil {
		s.log.Error().Err(err).Str("scenario", sc.ID).Msg("completion stream failed to start")
		writeJSONError(w, http.StatusServiceUnavailable, "AI service unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	send := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	// The persona "thinks" briefly before the first visible output.
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
			send(chatDelta{Type: "delta", Content: ev.Content})
		case llm.EventError:
			s.log.Error().Str("error", ev.Error).Str("scenario", sc.ID).Msg("completion stream failed")
			send(map[string]string{"type": "error", "error": "AI service unavailable"})
			fmt.Fprint(w, "data: [DONE]\n\n")
			if flusher != nil {
				flusher.Flush()
			}
			return
		case llm.EventDone:
			if ev.Response != nil && ev.Response.Content != "" {
				content.Reset()
				content.WriteString(ev.Response.Content)
			}
		}
	}

	// Settle the reply: extract the end marker, append to the session, and
	// diff completion against the pre-turn snapshot.
	result := interview.ParseEndMeeting(content.String())
	msg := domain.Message{
		ID:      uuid.NewString(),
		Role:    domain.RoleAssistant,
		Content: content.String(),
	}
	sess.Append(msg)

	completion := sess.Completion()
	send(chatDone{
		Type:           "done",
		MessageID:      msg.ID,
		DisplayContent: result.DisplayContent,
		MeetingEnded:   result.MeetingEnded,
		FinalMessage:   result.FinalMessage,
		Completion:     completion,
		NewlyObtained:  interview.NewlyObtainedDetails(&prevCompletion, completion),
		State:          sess.State(),
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// completionRequest maps a transcript onto a provider request with the
// scenario's persona instructions as the system prompt.
func (s *Server) completionRequest(sc *domain.Scenario, messages []domain.Message) llm.CompletionRequest {
	req := llm.CompletionRequest{
		System:      sc.SystemPrompt,
		Messages:    make([]llm.Message, 0, len(messages)),
		MaxTokens:   s.cfg.AI.MaxTokens,
		Temperature: s.cfg.AI.Temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, llm.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return req
}
