package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elicit-dev/elicit/internal/domain"
)

type wsTestConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, env *testEnv) *wsTestConn {
	t.Helper()
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)
	return dialWSServer(t, srv, "test-client")
}

func dialWSServer(t *testing.T, srv *httptest.Server, clientID string) *wsTestConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Client-ID": {clientID}})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsTestConn{t: t, conn: conn}
}

func (c *wsTestConn) send(id, method string, params any) {
	c.t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(Frame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	}))
}

// await reads frames until the response for id arrives, collecting any
// events seen on the way.
func (c *wsTestConn) await(id string) (Frame, []Frame) {
	c.t.Helper()
	var events []Frame
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		var f Frame
		require.NoError(c.t, c.conn.ReadJSON(&f))
		switch f.Type {
		case FrameTypeEvent:
			events = append(events, f)
		case FrameTypeResponse:
			if f.ID == id {
				return f, events
			}
		}
	}
}

func decodePayload[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	return v
}

func TestWS_SessionStart(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ws := dialWS(t, env)

	ws.send("1", "session.start", sessionStartParams{ScenarioID: "acme"})
	res, _ := ws.await("1")
	require.NotNil(t, res.OK)
	require.True(t, *res.OK)

	snap := decodePayload[sessionSnapshot](t, res)
	assert.Equal(t, "acme", snap.Scenario.ID)
	assert.Empty(t, snap.Scenario.SystemPrompt)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, snap.Messages[0].Role)
	assert.Equal(t, 0, snap.State.UserTurnCount)
	assert.Equal(t, 3, snap.State.MaxTurns)
	assert.Equal(t, 1, snap.RemainingManual)
	assert.False(t, snap.Resumed)
}

func TestWS_SessionStart_UnknownScenario(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ws := dialWS(t, env)

	ws.send("1", "session.start", sessionStartParams{ScenarioID: "missing"})
	res, _ := ws.await("1")
	require.NotNil(t, res.OK)
	assert.False(t, *res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, "not_found", res.Error.Code)
}

func TestWS_UserMessageTurn(t *testing.T) {
	env := newTestEnv(t, streamOf("We spend about ", "50k a year."), nil)
	ws := dialWS(t, env)

	ws.send("1", "session.start", sessionStartParams{ScenarioID: "acme"})
	ws.await("1")

	ws.send("2", "user.message", userMessageParams{Content: "What do you spend today?"})
	res, events := ws.await("2")
	require.NotNil(t, res.OK)
	require.True(t, *res.OK)

	turn := decodePayload[turnResult](t, res)
	assert.Equal(t, "We spend about 50k a year.", turn.DisplayContent)
	assert.False(t, turn.MeetingEnded)
	assert.Equal(t, 1, turn.State.UserTurnCount)
	require.Len(t, turn.NewlyObtained, 1)
	assert.Equal(t, "budget", turn.NewlyObtained[0].ID)

	var deltas []string
	sawDetailUpdate := false
	for _, ev := range events {
		switch ev.Event {
		case EventChatDelta:
			d := decodePayload[chatDelta](t, ev)
			deltas = append(deltas, d.Content)
		case EventDetailUpdate:
			sawDetailUpdate = true
		}
	}
	assert.Equal(t, []string{"We spend about ", "50k a year."}, deltas)
	assert.True(t, sawDetailUpdate, "expected a details.update event")
}

func TestWS_UserMessageWithoutSession(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ws := dialWS(t, env)

	ws.send("1", "user.message", userMessageParams{Content: "hello?"})
	res, _ := ws.await("1")
	require.NotNil(t, res.Error)
	assert.Equal(t, "no_session", res.Error.Code)
}

func TestWS_EndMarkerEmitsSessionEnd(t *testing.T) {
	env := newTestEnv(t, streamOf("[END_MEETING]This meeting is over.[/END_MEETING]"), nil)
	ws := dialWS(t, env)

	ws.send("1", "session.start", sessionStartParams{ScenarioID: "acme"})
	ws.await("1")

	ws.send("2", "user.message", userMessageParams{Content: "Sign here or else."})
	res, events := ws.await("2")

	turn := decodePayload[turnResult](t, res)
	assert.True(t, turn.MeetingEnded)
	assert.Equal(t, "This meeting is over.", turn.FinalMessage)
	assert.True(t, turn.State.IsEnded)

	sawEnd := false
	for _, ev := range events {
		if ev.Event == EventSessionEnd {
			sawEnd = true
		}
	}
	assert.True(t, sawEnd, "expected a session.end event")

	// Further turns are rejected.
	ws.send("3", "user.message", userMessageParams{Content: "wait"})
	res, _ = ws.await("3")
	require.NotNil(t, res.Error)
	assert.Equal(t, "session_ended", res.Error.Code)
}

func TestWS_TurnCheckpointsSavedSession(t *testing.T) {
	env := newTestEnv(t, streamOf("Sure."), nil)
	ws := dialWS(t, env)

	ws.send("1", "session.start", sessionStartParams{ScenarioID: "acme"})
	ws.await("1")
	ws.send("2", "user.message", userMessageParams{Content: "Tell me more."})
	ws.await("2")

	assert.Equal(t, 1, env.sessions.Len(), "turn should checkpoint the transcript")
}

func TestWS_HintRequestAndDismiss(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ws := dialWS(t, env)

	ws.send("1", "session.start", sessionStartParams{ScenarioID: "acme"})
	ws.await("1")

	ws.send("2", "hint.request", struct{}{})
	res, _ := ws.await("2")
	require.NotNil(t, res.OK)
	require.True(t, *res.OK)

	payload := decodePayload[struct {
		Hint            domain.Hint `json:"hint"`
		RemainingManual int         `json:"remainingManual"`
	}](t, res)
	assert.Equal(t, "ask-budget", payload.Hint.ID)
	assert.Equal(t, 0, payload.RemainingManual)

	ws.send("3", "hint.dismiss", hintDismissParams{HintID: payload.Hint.ID})
	res, _ = ws.await("3")
	require.NotNil(t, res.OK)
	assert.True(t, *res.OK)

	// The only manual hint is spent.
	ws.send("4", "hint.request", struct{}{})
	res, _ = ws.await("4")
	require.NotNil(t, res.Error)
	assert.Equal(t, "no_hints", res.Error.Code)
}

func TestWS_UnknownMethod(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ws := dialWS(t, env)

	ws.send("1", "bogus.method", struct{}{})
	res, _ := ws.await("1")
	require.NotNil(t, res.Error)
	assert.Equal(t, "unknown_method", res.Error.Code)
}

func TestWS_MessageValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ws := dialWS(t, env)

	ws.send("1", "session.start", sessionStartParams{ScenarioID: "acme"})
	ws.await("1")

	ws.send("2", "user.message", userMessageParams{Content: "   "})
	res, _ := ws.await("2")
	require.NotNil(t, res.Error)
	assert.Equal(t, "bad_params", res.Error.Code)

	ws.send("3", "user.message", userMessageParams{Content: strings.Repeat("x", maxUserMessageChars+1)})
	res, _ = ws.await("3")
	require.NotNil(t, res.Error)
	assert.Equal(t, "bad_params", res.Error.Code)
}

func TestWS_ResumeSavedSession(t *testing.T) {
	env := newTestEnv(t, streamOf("Welcome back."), nil)

	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	ws := dialWSServer(t, srv, "resume-client")
	ws.send("1", "session.start", sessionStartParams{ScenarioID: "acme"})
	ws.await("1")
	ws.send("2", "user.message", userMessageParams{Content: "When would you roll out?"})
	ws.await("2")

	// A second connection with the same client id resumes the transcript.
	ws2 := dialWSServer(t, srv, "resume-client")

	ws2.send("1", "session.start", sessionStartParams{ScenarioID: "acme", Resume: true})
	res, _ := ws2.await("1")
	require.NotNil(t, res.OK)
	require.True(t, *res.OK)

	snap := decodePayload[sessionSnapshot](t, res)
	assert.True(t, snap.Resumed)
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, 1, snap.State.UserTurnCount)
	assert.Contains(t, snap.Completion.Obtained, "timeline")
}
