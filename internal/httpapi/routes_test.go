package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
	"github.com/DoyleJ11/santa-draw-backend/internal/roster"
	"github.com/DoyleJ11/santa-draw-backend/internal/session"
	"github.com/DoyleJ11/santa-draw-backend/internal/types"
)

const adminCode = "north-pole"

func testRoster(t *testing.T) *roster.Roster {
	t.Helper()
	r, err := roster.New(
		[]roster.Participant{
			{ID: "A", Name: "Ana", GroupID: "g1"},
			{ID: "B", Name: "Beto", GroupID: "g1"},
			{ID: "C", Name: "Cris", GroupID: "g2"},
			{ID: "D", Name: "Dani", GroupID: "g2"},
		},
		[]roster.Group{
			{ID: "g1", MemberIDs: []string{"A", "B"}},
			{ID: "g2", MemberIDs: []string{"C", "D"}},
		},
		[]string{"A", "B", "C", "D"},
	)
	require.NoError(t, err)
	return r
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lb := lobby.NewLobby(ctx, testRoster(t))
	return SetupRoutes(Deps{
		Lobby:    lb,
		Sessions: session.NewManager("test-secret", time.Hour, adminCode),
		Logger:   zap.NewNop(),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response (status %d)", rec.Code)
	return nil
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func loginAdmin(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/session/admin", `{"code":"`+adminCode+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func loginPlayer(t *testing.T, h http.Handler, id string) *http.Cookie {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/session/identify", `{"participantId":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func TestHealthzAndRoster(t *testing.T) {
	h := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)

	rec := do(t, h, http.MethodGet, "/roster", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[rosterResponse](t, rec)
	assert.Len(t, body.Participants, 4)
	assert.Equal(t, []string{"A", "B", "C", "D"}, body.DrawOrder)
}

func TestGetState_NotCreatedYet(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[types.StateResponse](t, rec)
	assert.False(t, body.Exists)
	assert.Nil(t, body.State)
}

func TestSessionEndpoints(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/session/identify", `{"participantId":"Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody[types.ErrorResponse](t, rec).Code)

	rec = do(t, h, http.MethodPost, "/session/identify", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/session/admin", `{"code":"wrong"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/session/admin", `{"code":"`+adminCode+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[sessionResponse](t, rec).AdminID)

	cookie := loginPlayer(t, h, "C")
	status := decodeBody[sessionResponse](t, do(t, h, http.MethodGet, "/session/status", "", cookie))
	assert.True(t, status.Authenticated)
	assert.Equal(t, engine.RolePlayer, status.Role)
	assert.Equal(t, "Cris", status.Name)

	anon := decodeBody[sessionResponse](t, do(t, h, http.MethodGet, "/session/status", ""))
	assert.False(t, anon.Authenticated)

	rec = do(t, h, http.MethodPost, "/session/heartbeat", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/session/logout", "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	st := decodeBody[types.StateResponse](t, do(t, h, http.MethodGet, "/state", ""))
	require.True(t, st.Exists)
	assert.False(t, st.State.Sessions["C"].IsOnline)
}

func TestDrawFlow(t *testing.T) {
	h := newTestServer(t)
	admin := loginAdmin(t, h)
	playerA := loginPlayer(t, h, "A")
	playerC := loginPlayer(t, h, "C")

	// no session at all
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/admin/start", "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/admin/start", "", playerA).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/draw/options", "", playerA).Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/admin/start", "", admin).Code)

	// only the active drawer may prepare
	rec := do(t, h, http.MethodPost, "/draw/options", "", playerC)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/draw/options", "", playerA)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	opts := decodeBody[engine.DrawOptions](t, rec)
	assert.Equal(t, "A", opts.DrawerID)
	assert.ElementsMatch(t, []string{"C", "D"}, opts.ViableIDs)

	rec = do(t, h, http.MethodPost, "/draw/options", "", playerA)
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "concurrency", decodeBody[types.ErrorResponse](t, rec).Code)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/admin/override", `{"gifteeId":"C"}`, admin).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/draw/select", `{}`, playerA).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/draw/select", `{"choiceIndex":7}`, playerA).Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/draw/select", `{"choiceIndex":0}`, playerC).Code)

	rec = do(t, h, http.MethodPost, "/draw/select", `{"choiceIndex":0}`, playerA)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[engine.DrawResult](t, rec)
	assert.Equal(t, "A", res.DrawerID)
	assert.Equal(t, opts.ViableIDs[0], res.GifteeID)

	// admin sets B's result directly
	rec = do(t, h, http.MethodPost, "/admin/override", `{"gifteeId":"A"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "same group")

	other := "C"
	if res.GifteeID == "C" {
		other = "D"
	}
	rec = do(t, h, http.MethodPost, "/admin/override", `{"gifteeId":"`+other+`"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	st := decodeBody[types.StateResponse](t, do(t, h, http.MethodGet, "/state", ""))
	require.True(t, st.Exists)
	assert.Equal(t, 2, st.State.CurrentDrawerIndex)
	require.Len(t, st.Board, 4)
	assert.Equal(t, engine.SeatDrawing, st.Board[2].Status)

	// lock, then release it as admin
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/draw/options", "", admin).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/admin/unlock", "", admin).Code)
	assert.Equal(t, http.StatusLocked, do(t, h, http.MethodPost, "/admin/unlock", "", admin).Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/admin/skip", "", admin).Code)

	// the last drawer is drawn in one step
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/admin/draw", "", playerA).Code)
	rec = do(t, h, http.MethodPost, "/admin/draw", "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quick := decodeBody[engine.DrawResult](t, rec)
	assert.Equal(t, "D", quick.DrawerID)
	assert.Contains(t, []string{"A", "B"}, quick.GifteeID)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/admin/draw", "", admin).Code)

	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodDelete, "/state", "", playerA).Code)
	rec = do(t, h, http.MethodDelete, "/state", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	reset := decodeBody[commandResponse](t, rec)
	assert.Equal(t, engine.LifecycleNotStarted, reset.State.Lifecycle)
	assert.Empty(t, reset.State.Assignments)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{engine.ErrInvalidChoice, http.StatusBadRequest},
		{engine.ErrWrongPhase, http.StatusConflict},
		{engine.ErrNotYourTurn, http.StatusForbidden},
		{engine.ErrTurnInProgress, http.StatusLocked},
		{engine.ErrInfeasible, http.StatusInternalServerError},
		{session.ErrNoSession, http.StatusUnauthorized},
		{lobby.ErrClosed, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		status, _ := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestWebSocket_SnapshotThenEvents(t *testing.T) {
	h := newTestServer(t)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() types.ServerMessage {
		t.Helper()
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg types.ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	first := read()
	assert.Equal(t, types.MsgStateSnapshot, first.Type)
	assert.Equal(t, 0, first.Version)
	assert.False(t, first.Exists)

	admin := loginAdmin(t, h)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/admin/start", "", admin).Code)

	// admin-identified, then state-updated
	assert.Equal(t, string(engine.EvtAdminIdentified), read().Type)
	started := read()
	assert.Equal(t, string(engine.EvtStateUpdated), started.Type)
	assert.Equal(t, 2, started.Version)
	require.NotNil(t, started.State)
	assert.Equal(t, engine.LifecycleInProgress, started.State.Lifecycle)

	// anonymous subscribers may watch but not act
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"PrepareOptions"}`)))
	errMsg := read()
	assert.Equal(t, types.MsgError, errMsg.Type)
	assert.Equal(t, "authorization", errMsg.Code)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Dance"}`)))
	assert.Equal(t, "validation", read().Code)
}
