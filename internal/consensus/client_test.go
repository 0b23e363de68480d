package consensus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peerServer(t *testing.T, status string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, statusPath, r.URL.Path)
		require.Equal(t, "42", r.URL.Query().Get("blocknumber"))
		require.Equal(t, "hash42", r.URL.Query().Get("blockhash"))
		require.Equal(t, "0xtx", r.URL.Query().Get("txhash"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":"` + status + `"}`))
	}))
}

func check(t *testing.T, c *Client) (bool, error) {
	t.Helper()
	return c.CheckTransaction(context.Background(), 42, "hash42", "0xtx")
}

func TestCheckTransactionQuorumReached(t *testing.T) {
	var peers []string
	for i := 0; i < 4; i++ {
		ts := peerServer(t, StatusFailed)
		defer ts.Close()
		peers = append(peers, ts.URL)
	}
	passed := peerServer(t, StatusPassed)
	defer passed.Close()
	peers = append(peers, passed.URL)

	// 4 of 5 failed meets the default 0.8 quorum exactly.
	confirmed, err := check(t, NewClient(peers, 0, time.Second))
	require.NoError(t, err)
	assert.True(t, confirmed)
}

func TestCheckTransactionQuorumMissed(t *testing.T) {
	failed := peerServer(t, StatusFailed)
	defer failed.Close()
	passed := peerServer(t, StatusPassed)
	defer passed.Close()

	confirmed, err := check(t, NewClient([]string{failed.URL, passed.URL}, 0, time.Second))
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestCheckTransactionIgnoresUnreachablePeers(t *testing.T) {
	failed := peerServer(t, StatusFailed)
	defer failed.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	// The unreachable peer drops out of the denominator, leaving a
	// unanimous verdict from the one reachable peer.
	confirmed, err := check(t, NewClient([]string{failed.URL, dead.URL}, 0, time.Second))
	require.NoError(t, err)
	assert.True(t, confirmed)
}

func TestCheckTransactionNoReachablePeers(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	_, err := check(t, NewClient([]string{dead.URL}, 0, time.Second))
	assert.Error(t, err)
}

func TestCheckTransactionNoPeersConfigured(t *testing.T) {
	_, err := check(t, NewClient(nil, 0, time.Second))
	assert.Error(t, err)
}

func TestCheckTransactionCustomQuorum(t *testing.T) {
	failed := peerServer(t, StatusFailed)
	defer failed.Close()
	passed := peerServer(t, StatusPassed)
	defer passed.Close()

	confirmed, err := check(t, NewClient([]string{failed.URL, passed.URL}, 0.5, time.Second))
	require.NoError(t, err)
	assert.True(t, confirmed)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil, 0, 0)
	assert.Equal(t, DefaultQuorum, c.quorum)
	assert.Equal(t, 10*time.Second, c.Timeout())

	c = NewClient(nil, 1.5, 0)
	assert.Equal(t, DefaultQuorum, c.quorum)
}
