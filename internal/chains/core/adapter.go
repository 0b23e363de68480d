// Package core reads manage-entity transactions from the network's own
// consensus chain, which serves decoded blocks over a plain HTTP API.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openaudio/discovery-indexer/internal/chains"
	"github.com/openaudio/discovery-indexer/internal/domain"
)

type blockResponse struct {
	Height       uint64                  `json:"height"`
	Hash         string                  `json:"hash"`
	Timestamp    time.Time               `json:"timestamp"`
	Transactions []domain.ManageEntityTx `json:"transactions"`
}

type latestResponse struct {
	Height uint64 `json:"height"`
}

// Adapter reads blocks from a core node's block API.
type Adapter struct {
	endpoint string
	cutover  chains.Cutover
	http     *http.Client
}

// New creates a core chain adapter.
func New(endpoint string, cutover chains.Cutover, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{
		endpoint: endpoint,
		cutover:  cutover,
		http:     &http.Client{Timeout: timeout},
	}
}

func (a *Adapter) Name() string { return "core" }

func (a *Adapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call core node: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("core node returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode core response: %w", err)
	}
	return nil
}

// GetBatchForBlock fetches one block at an adjusted height. The core
// node already serves decoded manage-entity transactions, so nothing to
// unpack here beyond wallet normalization.
func (a *Adapter) GetBatchForBlock(ctx context.Context, height uint64) (*domain.BlockBatch, error) {
	raw := a.cutover.Raw(height)

	var block blockResponse
	if err := a.get(ctx, fmt.Sprintf("/core/blocks/%d", raw), &block); err != nil {
		return nil, fmt.Errorf("failed to fetch core block %d: %w", raw, err)
	}

	batch := &domain.BlockBatch{
		Height:    height,
		Slot:      raw,
		Hash:      block.Hash,
		Timestamp: block.Timestamp.UTC(),
		Txs:       block.Transactions,
	}
	for i := range batch.Txs {
		batch.Txs[i].Signer = domain.NormalizeWallet(batch.Txs[i].Signer)
	}
	return batch, nil
}

// GetLatestAvailableHeight returns the core chain tip as an adjusted
// height.
func (a *Adapter) GetLatestAvailableHeight(ctx context.Context) (uint64, error) {
	var latest latestResponse
	if err := a.get(ctx, "/core/blocks/latest", &latest); err != nil {
		return 0, fmt.Errorf("failed to fetch core tip: %w", err)
	}
	return a.cutover.Adjust(latest.Height), nil
}
