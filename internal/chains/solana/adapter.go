// Package solana reads manage-entity transactions from the Solana
// chain era. The entity manager program emits its payload as a JSON
// program log, which this adapter extracts per confirmed transaction.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openaudio/discovery-indexer/internal/chains"
	"github.com/openaudio/discovery-indexer/internal/domain"
)

// logPrefix marks the program log line carrying a manage-entity payload.
const logPrefix = "Program log: ManageEntity: "

// Slot-skipped error codes from the Solana JSON-RPC spec.
const (
	codeSlotSkipped       = -32007
	codeLongTermSkipped   = -32009
	codeBlockNotAvailable = -32004
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcBlock struct {
	Blockhash    string  `json:"blockhash"`
	BlockTime    *int64  `json:"blockTime"`
	Transactions []rpcTx `json:"transactions"`
}

type rpcTx struct {
	Meta struct {
		Err         any      `json:"err"`
		LogMessages []string `json:"logMessages"`
	} `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
	} `json:"transaction"`
}

// logPayload is the manage-entity program log body. It deliberately has
// no tx_hash or tx_index fields: the chain position comes from the
// enclosing transaction, and a crafted payload must not override it.
type logPayload struct {
	UserID     int32             `json:"user_id"`
	EntityID   int32             `json:"entity_id"`
	EntityType domain.EntityType `json:"entity_type"`
	Action     domain.Action     `json:"action"`
	Metadata   string            `json:"metadata"`
	Signer     string            `json:"signer"`
}

// Adapter reads blocks from a Solana RPC node.
type Adapter struct {
	endpoint string
	cutover  chains.Cutover
	http     *http.Client
}

// New creates a Solana adapter.
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

func (a *Adapter) Name() string { return "solana" }

func (a *Adapter) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var body rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if body.Error != nil {
		return &rpcCallError{method: method, code: body.Error.Code, message: body.Error.Message}
	}
	return json.Unmarshal(body.Result, out)
}

type rpcCallError struct {
	method  string
	code    int
	message string
}

func (e *rpcCallError) Error() string {
	return fmt.Sprintf("%s failed with code %d: %s", e.method, e.code, e.message)
}

func (e *rpcCallError) slotSkipped() bool {
	return e.code == codeSlotSkipped || e.code == codeLongTermSkipped || e.code == codeBlockNotAvailable
}

// GetBatchForBlock fetches the block at an adjusted height. Solana
// skips slots, so a missing slot yields an empty batch the worker can
// checkpoint past.
func (a *Adapter) GetBatchForBlock(ctx context.Context, height uint64) (*domain.BlockBatch, error) {
	slot := a.cutover.Raw(height)

	var block rpcBlock
	err := a.call(ctx, "getBlock", []any{slot, map[string]any{
		"encoding":                       "json",
		"transactionDetails":             "full",
		"rewards":                        false,
		"maxSupportedTransactionVersion": 0,
	}}, &block)
	if err != nil {
		var callErr *rpcCallError
		if errors.As(err, &callErr) && callErr.slotSkipped() {
			return &domain.BlockBatch{
				Height:    height,
				Slot:      slot,
				Hash:      fmt.Sprintf("skipped-slot-%d", slot),
				Timestamp: time.Time{},
			}, nil
		}
		return nil, fmt.Errorf("failed to fetch slot %d: %w", slot, err)
	}

	batch := &domain.BlockBatch{
		Height: height,
		Slot:   slot,
		Hash:   block.Blockhash,
	}
	if block.BlockTime != nil {
		batch.Timestamp = time.Unix(*block.BlockTime, 0).UTC()
	}

	for i, tx := range block.Transactions {
		if tx.Meta.Err != nil || len(tx.Transaction.Signatures) == 0 {
			continue
		}
		payload, found := manageEntityPayload(tx.Meta.LogMessages)
		if !found {
			continue
		}
		// A payload that will not parse still enters the batch so the
		// replay layer records the skip.
		var body logPayload
		_ = json.Unmarshal([]byte(payload), &body)
		batch.Txs = append(batch.Txs, domain.ManageEntityTx{
			UserID:     body.UserID,
			EntityID:   body.EntityID,
			EntityType: body.EntityType,
			Action:     body.Action,
			Metadata:   body.Metadata,
			Signer:     domain.NormalizeWallet(body.Signer),
			TxHash:     tx.Transaction.Signatures[0],
			TxIndex:    uint(i),
		})
	}
	return batch, nil
}

// manageEntityPayload finds the manage-entity program log in a
// transaction, if any.
func manageEntityPayload(logs []string) (string, bool) {
	for _, line := range logs {
		if strings.HasPrefix(line, logPrefix) {
			return strings.TrimPrefix(line, logPrefix), true
		}
	}
	return "", false
}

// GetLatestAvailableHeight returns the newest finalized slot as an
// adjusted height.
func (a *Adapter) GetLatestAvailableHeight(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := a.call(ctx, "getSlot", []any{map[string]any{"commitment": "finalized"}}, &slot); err != nil {
		return 0, fmt.Errorf("failed to fetch latest slot: %w", err)
	}
	return a.cutover.Adjust(slot), nil
}
