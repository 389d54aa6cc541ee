package neo

import (
	"testing"

	"github.com/nspcc-dev/neo-exex/internal/testserdes"
	"github.com/nspcc-dev/neo-exex/pkg/core/block"
	"github.com/nspcc-dev/neo-exex/pkg/core/state"
	"github.com/nspcc-dev/neo-exex/pkg/core/transaction"
	"github.com/nspcc-dev/neo-exex/pkg/util"
	"github.com/stretchr/testify/require"
)

func TestFactories(t *testing.T) {
	var p Primitives

	require.IsType(t, &block.Block{}, p.NewBlock())
	require.IsType(t, &transaction.Transaction{}, p.NewTransaction())
	require.IsType(t, &state.AppExecResult{}, p.NewReceipt())

	// Every call returns a fresh value.
	require.NotSame(t, p.NewBlock(), p.NewBlock())
}

func TestDecodeViaFactory(t *testing.T) {
	var p Primitives

	tx := transaction.New([]byte{0x51}, 1)
	data, err := testserdes.EncodeBinary(tx)
	require.NoError(t, err)
	actualTx := p.NewTransaction()
	require.NoError(t, testserdes.DecodeBinary(data, actualTx))
	require.Equal(t, tx.Hash(), actualTx.Hash())

	aer := &state.AppExecResult{Container: tx.Hash(), VMState: state.VMHalt, GasConsumed: 10}
	data, err = testserdes.EncodeBinary(aer)
	require.NoError(t, err)
	actualAer := p.NewReceipt()
	require.NoError(t, testserdes.DecodeBinary(data, actualAer))
	require.Equal(t, aer, actualAer)

	b := block.New()
	b.Index = 5
	b.PrevHash = util.Uint256{5}
	b.Transactions = []*transaction.Transaction{tx}
	b.RebuildMerkleRoot()
	data, err = testserdes.EncodeBinary(b)
	require.NoError(t, err)
	actualBlock := p.NewBlock()
	require.NoError(t, testserdes.DecodeBinary(data, actualBlock))
	require.Equal(t, b.Hash(), actualBlock.Hash())
	require.Equal(t, uint32(5), actualBlock.GetIndex())
}
