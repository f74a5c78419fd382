package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/wire"
)

type testClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ws.Close()
	})
	return &testClient{t: t, ws: ws}
}

func (c *testClient) send(kind string, data any) {
	c.t.Helper()
	raw, err := wire.Message(kind, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, raw))
}

func (c *testClient) sendRaw(raw string) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (c *testClient) expect(kind string) wire.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	env, err := wire.DecodeEnvelope(raw)
	require.NoError(c.t, err)
	require.Equal(c.t, kind, env.Type, string(raw))
	return env
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	engine := canvas.NewEngine(canvas.NewRegistry("", canvas.DefaultRoomOptions()))
	s := NewServer(engine, Options{})
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv
}

func TestServer_RoundTrip(t *testing.T) {
	_, srv := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	a.send(canvas.KindJoin, canvas.JoinRequest{RoomID: "r1", DisplayName: "a"})
	var snap canvas.Snapshot
	require.NoError(t, a.expect(canvas.KindSnapshot).Into(&snap))
	assert.Equal(t, "r1", snap.RoomID)
	assert.NotEmpty(t, snap.SelfID)
	a.expect(canvas.KindParticipantsUpdate)

	b.send(canvas.KindJoin, canvas.JoinRequest{RoomID: "r1", DisplayName: "b"})
	b.expect(canvas.KindSnapshot)
	b.expect(canvas.KindParticipantsUpdate)
	var update canvas.ParticipantsUpdateEvent
	require.NoError(t, a.expect(canvas.KindParticipantsUpdate).Into(&update))
	assert.Len(t, update.Participants, 2)

	// garbage is dropped without closing the connection
	a.sendRaw(`{"type":"stroke-end","data":{"strokeId":"s0","color":12}}`)
	a.sendRaw(`{"type":"teleport"}`)

	raw, err := wire.StrokeMessage(canvas.KindStrokeEnd, canvas.StrokeCandidate{
		ID: "s1", Type: canvas.Brush, Color: "#000", Width: 3, Points: []canvas.Point{{X: 1, Y: 1}, {X: 2, Y: 2}},
	})
	require.NoError(t, err)
	require.NoError(t, a.ws.WriteMessage(websocket.TextMessage, raw))

	for _, c := range []*testClient{a, b} {
		var op canvas.Operation
		require.NoError(t, c.expect(canvas.KindStrokeCreated).Into(&op))
		assert.Equal(t, "s1", op.ID)
		assert.Equal(t, snap.SelfID, op.AuthorID)
		c.expect(canvas.KindStrokeLiveEnd)
	}

	a.send(canvas.KindUndo, nil)
	for _, c := range []*testClient{a, b} {
		var after canvas.Snapshot
		require.NoError(t, c.expect(canvas.KindSnapshot).Into(&after))
		assert.Empty(t, after.Operations)
	}
}

func TestServer_DisconnectNotifiesRoom(t *testing.T) {
	_, srv := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	a.send(canvas.KindJoin, canvas.JoinRequest{RoomID: "r1"})
	a.expect(canvas.KindSnapshot)
	a.expect(canvas.KindParticipantsUpdate)
	b.send(canvas.KindJoin, canvas.JoinRequest{RoomID: "r1"})
	b.expect(canvas.KindSnapshot)
	b.expect(canvas.KindParticipantsUpdate)
	a.expect(canvas.KindParticipantsUpdate)

	require.NoError(t, b.ws.Close())

	var update canvas.ParticipantsUpdateEvent
	require.NoError(t, a.expect(canvas.KindParticipantsUpdate).Into(&update))
	assert.Len(t, update.Participants, 1)
	var end canvas.StrokeLiveEndEvent
	require.NoError(t, a.expect(canvas.KindStrokeLiveEnd).Into(&end))
	assert.Equal(t, canvas.AllStrokes, end.StrokeID)
}

func TestServer_Shutdown(t *testing.T) {
	s, srv := newTestServer(t)
	a := dial(t, srv)
	a.send(canvas.KindJoin, canvas.JoinRequest{})
	a.expect(canvas.KindSnapshot)
	a.expect(canvas.KindParticipantsUpdate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, 0, s.Hub().Len())

	require.NoError(t, a.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := a.ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "%v", err)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	assert.True(t, originChecker(nil)(req("https://anywhere.example")))

	check := originChecker([]string{"https://canvas.example/"})
	assert.True(t, check(req("https://CANVAS.example")))
	assert.True(t, check(req("")))
	assert.False(t, check(req("https://evil.example")))
	assert.False(t, check(req("http://canvas.example")))
}
