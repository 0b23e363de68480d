// Package poa reads manage-entity events from the legacy
// proof-of-authority EVM chain through the entity manager contract.
package poa

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/openaudio/discovery-indexer/internal/chains"
	"github.com/openaudio/discovery-indexer/internal/domain"
)

const manageEntityABI = `[{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"_userId","type":"uint256"},{"indexed":false,"internalType":"address","name":"_signer","type":"address"},{"indexed":false,"internalType":"string","name":"_entityType","type":"string"},{"indexed":false,"internalType":"uint256","name":"_entityId","type":"uint256"},{"indexed":false,"internalType":"string","name":"_metadata","type":"string"},{"indexed":false,"internalType":"string","name":"_action","type":"string"}],"name":"ManageEntity","type":"event"}]`

// manageEntityEvent mirrors the contract event layout for unpacking.
type manageEntityEvent struct {
	UserId     *big.Int
	Signer     common.Address
	EntityType string
	EntityId   *big.Int
	Metadata   string
	Action     string
}

// Adapter reads blocks from a PoA EVM node.
type Adapter struct {
	client   *ethclient.Client
	contract common.Address
	cutover  chains.Cutover
	abi      abi.ABI
	eventID  common.Hash
}

// New creates a PoA adapter for the entity manager contract.
func New(client *ethclient.Client, contract common.Address, cutover chains.Cutover) (*Adapter, error) {
	parsed, err := abi.JSON(strings.NewReader(manageEntityABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity manager ABI: %w", err)
	}
	return &Adapter{
		client:   client,
		contract: contract,
		cutover:  cutover,
		abi:      parsed,
		eventID:  parsed.Events["ManageEntity"].ID,
	}, nil
}

func (a *Adapter) Name() string { return "poa" }

// GetBatchForBlock fetches and decodes one block's manage-entity
// events. A log that fails decoding becomes an undecoded transaction in
// the batch, so the replay layer records the skip instead of the whole
// block fetch failing forever.
func (a *Adapter) GetBatchForBlock(ctx context.Context, height uint64) (*domain.BlockBatch, error) {
	raw := a.cutover.Raw(height)

	header, err := a.client.HeaderByNumber(ctx, new(big.Int).SetUint64(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch header %d: %w", raw, err)
	}

	logs, err := a.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(raw),
		ToBlock:   new(big.Int).SetUint64(raw),
		Addresses: []common.Address{a.contract},
		Topics:    [][]common.Hash{{a.eventID}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs for block %d: %w", raw, err)
	}

	batch := &domain.BlockBatch{
		Height:    height,
		Slot:      height,
		Hash:      header.Hash().Hex(),
		Timestamp: time.Unix(int64(header.Time), 0).UTC(),
	}
	for _, lg := range logs {
		batch.Txs = append(batch.Txs, a.decodeLog(lg))
	}
	return batch, nil
}

func (a *Adapter) decodeLog(lg types.Log) domain.ManageEntityTx {
	tx := domain.ManageEntityTx{
		TxHash:  lg.TxHash.Hex(),
		TxIndex: lg.TxIndex,
	}

	var ev manageEntityEvent
	if err := a.abi.UnpackIntoInterface(&ev, "ManageEntity", lg.Data); err != nil {
		// Leave EntityType and Action empty so Decoded() is false.
		return tx
	}

	tx.UserID = int32(ev.UserId.Int64())
	tx.EntityID = int32(ev.EntityId.Int64())
	tx.EntityType = domain.EntityType(ev.EntityType)
	tx.Action = domain.Action(ev.Action)
	tx.Metadata = ev.Metadata
	tx.Signer = domain.NormalizeWallet(ev.Signer.Hex())
	return tx
}

// GetLatestAvailableHeight returns the chain tip as an adjusted height.
func (a *Adapter) GetLatestAvailableHeight(ctx context.Context) (uint64, error) {
	tip, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch chain tip: %w", err)
	}
	return a.cutover.Adjust(tip), nil
}
