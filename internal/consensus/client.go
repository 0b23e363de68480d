// Package consensus implements the peer cross-check for skipped
// transactions. A node that fails a transaction for a reason other than
// a protocol rejection asks its peers whether they failed the same one;
// a quorum of matching failures confirms the skip as a network-level
// problem rather than a local bug.
package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Transaction status values peers report.
const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
)

const statusPath = "/indexing/transaction_status"

// DefaultQuorum is the fraction of reachable peers that must report
// FAILED for a skip to be confirmed.
const DefaultQuorum = 0.8

type statusResponse struct {
	Data string `json:"data"`
}

// Client queries peer discovery nodes for their verdict on a
// transaction.
type Client struct {
	peers   []string
	quorum  float64
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a consensus client. Zero quorum and timeout fall
// back to the defaults.
func NewClient(peers []string, quorum float64, timeout time.Duration) *Client {
	if quorum <= 0 || quorum > 1 {
		quorum = DefaultQuorum
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		peers:   peers,
		quorum:  quorum,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// Timeout returns the per-check deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

// CheckTransaction asks every peer for its verdict and reports whether
// a quorum of the reachable ones failed the transaction too.
// Unreachable peers do not count either way; with no reachable peers
// there is no consensus and the skip stays unconfirmed.
func (c *Client) CheckTransaction(ctx context.Context, blocknumber uint64, blockhash, txhash string) (bool, error) {
	if len(c.peers) == 0 {
		return false, fmt.Errorf("no peers configured")
	}

	var mu sync.Mutex
	reachable, failed := 0, 0

	var wg sync.WaitGroup
	for _, peer := range c.peers {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()
			status, err := c.queryPeer(ctx, peer, blocknumber, blockhash, txhash)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			reachable++
			if status == StatusFailed {
				failed++
			}
		}(peer)
	}
	wg.Wait()

	if reachable == 0 {
		return false, fmt.Errorf("no peers reachable")
	}
	return float64(failed)/float64(reachable) >= c.quorum, nil
}

func (c *Client) queryPeer(ctx context.Context, peer string, blocknumber uint64, blockhash, txhash string) (string, error) {
	q := url.Values{}
	q.Set("blocknumber", strconv.FormatUint(blocknumber, 10))
	q.Set("blockhash", blockhash)
	q.Set("txhash", txhash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer+statusPath+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build peer request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query peer %s: %w", peer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("peer %s returned status %d", peer, resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode peer response: %w", err)
	}
	return body.Data, nil
}
