package primitives

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/util"
	"github.com/stretchr/testify/require"
)

type testReceipt struct {
	gas int64
}

func (r *testReceipt) EncodeBinary(w *io.BinWriter) { w.WriteU64LE(uint64(r.gas)) }
func (r *testReceipt) DecodeBinary(br *io.BinReader) { r.gas = int64(br.ReadU64LE()) }
func (r *testReceipt) TxHash() util.Uint256          { return util.Uint256{} }
func (r *testReceipt) GasUsed() int64                { return r.gas }

func TestGasSpentByTransactions(t *testing.T) {
	require.Empty(t, GasSpentByTransactions(nil))

	receipts := []Receipt{
		&testReceipt{gas: 10},
		&testReceipt{gas: 0},
		&testReceipt{gas: -5},
		&testReceipt{gas: 32},
	}
	res := GasSpentByTransactions(receipts)
	require.Len(t, res, 4)
	for i, expected := range []uint64{10, 10, 10, 42} {
		require.Equal(t, i, res[i].Index)
		require.Equal(t, uint256.NewInt(expected), res[i].Cumulative)
	}
}

func TestGasSpentByTransactionsNoOverflow(t *testing.T) {
	const maxGas = int64(^uint64(0) >> 1)

	res := GasSpentByTransactions([]Receipt{
		&testReceipt{gas: maxGas},
		&testReceipt{gas: maxGas},
		&testReceipt{gas: 2},
	})
	// 2 * (2^63 - 1) + 2 = 2^64.
	expected := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	require.Equal(t, expected, res[2].Cumulative)
	require.False(t, res[2].Cumulative.IsUint64())
}
