package frontdoor_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arthurzam/securevote/pkg/clique"
	"github.com/arthurzam/securevote/pkg/frontdoor"
	"github.com/arthurzam/securevote/pkg/orchestrator"
	"github.com/arthurzam/securevote/pkg/store"
	"github.com/arthurzam/securevote/pkg/voting"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestHandleVoteRejectsMissingFields exercises only the adapter's own
// validation path (no clique needed): a message missing required fields
// never reaches the orchestrator.
func TestHandleVoteRejectsMissingFields(t *testing.T) {
	election := voting.Election{ID: uuid.New(), Type: voting.Approval, Candidates: []string{"a", "b"}, WinnerCount: 1, P: 2147483647}
	mem := store.NewMemory()
	mem.PutElection(election, []string{"voter@example.com"})

	// No clique manager is exercised by this test path (validation fails
	// before SubmitBallot would ever dial peers), so a nil *clique.Manager
	// is safe here.
	var cq *clique.Manager
	orch, err := orchestrator.New(context.Background(), mem, cq, nil, 0, nil)
	require.NoError(t, err)

	srv := frontdoor.New(orch, nil)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/elections/vote"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"election_id":"`+election.ID.String()+`","ballot":[]}`)))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), "missing fields")
}
