package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanekb/lanekb/internal/chat"
	"github.com/lanekb/lanekb/internal/kb"
)

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestStream_Session(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	record := createKB(t, ts, "ops")
	require.Equal(t, http.StatusCreated, uploadDocument(t, ts, record.ID, "lanes.csv", laneCSV).StatusCode)
	processKB(t, ts, record.ID)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/kb/"+record.ID+"/stream"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	// Several questions over one session; each gets its own event.
	for _, question := range []string{"redlands to shelby performance", "fresno to dallas"} {
		require.NoError(t, conn.WriteJSON(chat.Query{Question: question, K: 3}))
		var event chat.Event
		require.NoError(t, conn.ReadJSON(&event))
		require.Nil(t, event.Error)
		require.NotNil(t, event.Answer)
		assert.Equal(t, question, event.Answer.Question)
		assert.NotEmpty(t, event.Answer.Chunks)
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestStream_EmptyQuestionFault(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	record := createKB(t, ts, "ops")
	require.Equal(t, http.StatusCreated, uploadDocument(t, ts, record.ID, "lanes.csv", laneCSV).StatusCode)
	processKB(t, ts, record.ID)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/kb/"+record.ID+"/stream"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, resp.Body.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	require.NoError(t, conn.WriteJSON(chat.Query{Question: "   "}))

	var fault chat.Event
	require.NoError(t, conn.ReadJSON(&fault))
	require.NotNil(t, fault.Error)
	assert.Nil(t, fault.Answer)
	assert.Equal(t, kb.KindInvalidRequest, fault.Error.Kind)

	// The session survives a bad question.
	require.NoError(t, conn.WriteJSON(chat.Query{Question: "fresno to dallas"}))
	var answered chat.Event
	require.NoError(t, conn.ReadJSON(&answered))
	assert.Nil(t, answered.Error)
	require.NotNil(t, answered.Answer)
}

func TestStream_RejectsUnreadyKB(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	record := createKB(t, ts, "ops")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/kb/"+record.ID+"/stream"), nil)
	require.Error(t, err, "dial must fail before the upgrade")
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStream_RejectsMissingKB(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/kb/no-such-kb/stream"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
