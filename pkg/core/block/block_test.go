package block

import (
	"encoding/json"
	"testing"

	"github.com/nspcc-dev/neo-exex/internal/testserdes"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/core/transaction"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/util"
	"github.com/stretchr/testify/require"
)

var _ primitives.Block = (*Block)(nil)

func newTestBlock(txCount int) *Block {
	b := New()
	b.Version = VersionInitial
	b.PrevHash = util.Uint256{1, 2, 3}
	b.Timestamp = 1700000000000
	b.Nonce = 0xdeadbeef
	b.Index = 10
	b.PrimaryIndex = 2
	b.NextConsensus = util.Uint160{7, 8, 9}
	for i := 0; i < txCount; i++ {
		tx := transaction.New([]byte{0x51, byte(i)}, int64(i+1))
		tx.Nonce = uint32(i)
		b.Transactions = append(b.Transactions, tx)
	}
	b.RebuildMerkleRoot()
	return b
}

func TestEncodeDecodeBinary(t *testing.T) {
	b := newTestBlock(3)
	testserdes.EncodeDecodeBinary(t, b, New())

	empty := newTestBlock(0)
	testserdes.EncodeDecodeBinary(t, empty, New())
}

func TestDecodeMerkleMismatch(t *testing.T) {
	b := newTestBlock(2)
	b.MerkleRoot = util.Uint256{0xff}
	data, err := testserdes.EncodeBinary(b)
	require.NoError(t, err)
	require.ErrorIs(t, testserdes.DecodeBinary(data, New()), ErrMerkleMismatch)
}

func TestDecodeTooManyTransactions(t *testing.T) {
	b := newTestBlock(0)
	w := io.NewBufBinWriter()
	b.Header.EncodeBinary(w.BinWriter)
	w.WriteVarUint(MaxTransactionsPerBlock + 1)
	require.ErrorIs(t, testserdes.DecodeBinary(w.Bytes(), New()), ErrMaxContentsPerBlock)
}

func TestEncodeTooManyTransactions(t *testing.T) {
	b := newTestBlock(1)
	for len(b.Transactions) <= MaxTransactionsPerBlock {
		b.Transactions = append(b.Transactions, b.Transactions[0])
	}
	_, err := testserdes.EncodeBinary(b)
	require.ErrorIs(t, err, ErrMaxContentsPerBlock)
}

func TestHashDependsOnTransactions(t *testing.T) {
	b1 := newTestBlock(1)
	b2 := newTestBlock(2)
	require.NotEqual(t, b1.Hash(), b2.Hash())
	require.Equal(t, b1.Hash(), newTestBlock(1).Hash())
}

func TestGetters(t *testing.T) {
	b := newTestBlock(2)
	require.Equal(t, uint32(10), b.GetIndex())
	require.Equal(t, util.Uint256{1, 2, 3}, b.GetPrevHash())
	txs := b.GetTransactions()
	require.Len(t, txs, 2)
	require.Equal(t, b.Transactions[1].Hash(), txs[1].Hash())
	require.Nil(t, newTestBlock(0).GetTransactions())
}

func TestMarshalUnmarshalJSON(t *testing.T) {
	b := newTestBlock(2)
	testserdes.MarshalUnmarshalJSON(t, b, New())

	data, err := json.Marshal(b)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	require.Equal(t, "0x"+b.Hash().StringLE(), m["hash"])
	require.Len(t, m["tx"], 2)

	m["index"] = 11
	data, err = json.Marshal(m)
	require.NoError(t, err)
	require.Error(t, json.Unmarshal(data, New()))
}
