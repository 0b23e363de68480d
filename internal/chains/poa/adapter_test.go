package poa

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openaudio/discovery-indexer/internal/chains"
	"github.com/openaudio/discovery-indexer/internal/domain"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := New(nil, common.HexToAddress("0x1"), chains.Cutover{})
	require.NoError(t, err)
	return adapter
}

func TestDecodeLog(t *testing.T) {
	adapter := newTestAdapter(t)
	signer := common.HexToAddress("0x00000000000000000000000000000000000000A1")

	data, err := adapter.abi.Events["ManageEntity"].Inputs.Pack(
		big.NewInt(3_000_001),
		signer,
		"Track",
		big.NewInt(2_000_001),
		`{"title":"song"}`,
		"Create",
	)
	require.NoError(t, err)

	tx := adapter.decodeLog(types.Log{
		Data:    data,
		TxHash:  common.HexToHash("0xabc"),
		TxIndex: 3,
	})

	assert.True(t, tx.Decoded())
	assert.Equal(t, int32(3_000_001), tx.UserID)
	assert.Equal(t, int32(2_000_001), tx.EntityID)
	assert.Equal(t, domain.EntityTypeTrack, tx.EntityType)
	assert.Equal(t, domain.ActionCreate, tx.Action)
	assert.Equal(t, `{"title":"song"}`, tx.Metadata)
	assert.Equal(t, domain.NormalizeWallet(signer.Hex()), tx.Signer)
	assert.Equal(t, uint(3), tx.TxIndex)
}

func TestDecodeLogGarbageDataStaysUndecoded(t *testing.T) {
	adapter := newTestAdapter(t)

	tx := adapter.decodeLog(types.Log{
		Data:   []byte{0xde, 0xad, 0xbe, 0xef},
		TxHash: common.HexToHash("0xabc"),
	})

	assert.False(t, tx.Decoded())
	// Chain position is preserved so the skip can be recorded.
	assert.NotEmpty(t, tx.TxHash)
}
