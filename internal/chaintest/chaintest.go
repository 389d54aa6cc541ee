/*
Package chaintest provides linked chain fixtures for tests.
*/
package chaintest

import (
	"testing"

	"github.com/nspcc-dev/neo-exex/internal/random"
	"github.com/nspcc-dev/neo-exex/pkg/core/block"
	"github.com/nspcc-dev/neo-exex/pkg/core/chain"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives/neo"
	"github.com/nspcc-dev/neo-exex/pkg/core/state"
	"github.com/nspcc-dev/neo-exex/pkg/core/transaction"
	"github.com/nspcc-dev/neo-exex/pkg/util"
	"github.com/stretchr/testify/require"
)

// TxPerBlock is the number of transactions in every generated block.
const TxPerBlock = 2

// Chain is a chain of Neo primitives.
type Chain = chain.Chain[neo.Primitives]

// Blocks returns n linked blocks starting with the given index, the first
// one references prev. Every block gets random contents, so two calls with
// the same parameters produce different branches.
func Blocks(start uint32, n int, prev util.Uint256) []*block.Block {
	res := make([]*block.Block, 0, n)
	for i := 0; i < n; i++ {
		b := block.New()
		b.Index = start + uint32(i)
		b.PrevHash = prev
		b.Timestamp = 1700000000000 + uint64(b.Index)*15000
		b.Nonce = uint64(random.Int(1, 1<<30))
		b.NextConsensus = random.Uint160()
		for j := 0; j < TxPerBlock; j++ {
			tx := transaction.New(random.Bytes(4), int64(random.Int(1, 1000)))
			tx.Nonce = uint32(random.Int(0, 1<<30))
			tx.ValidUntilBlock = b.Index + 100
			tx.Sender = random.Uint160()
			b.Transactions = append(b.Transactions, tx)
		}
		b.RebuildMerkleRoot()
		prev = b.Hash()
		res = append(res, b)
	}
	return res
}

// Receipts returns successful execution results for every transaction of b.
func Receipts(b *block.Block) []primitives.Receipt {
	res := make([]primitives.Receipt, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		res = append(res, &state.AppExecResult{
			Container:   tx.Hash(),
			VMState:     state.VMHalt,
			GasConsumed: tx.SystemFee,
			Events: []state.NotificationEvent{{
				ScriptHash: random.Uint160(),
				Name:       "Transfer",
				Payload:    random.Bytes(8),
			}},
		})
	}
	return res
}

// New creates a chain of n blocks starting with the given index on top of
// the block with the prev hash. It has receipts for every block, storage
// changes (including a deletion) and a state root.
func New(t testing.TB, start uint32, n int, prev util.Uint256) *Chain {
	var (
		blocks  = Blocks(start, n, prev)
		bs      = make([]primitives.Block, 0, n)
		outcome = chain.ExecutionOutcome{
			Receipts: make(map[uint32][]primitives.Receipt, n),
			Storage: map[string][]byte{
				string(random.Bytes(10)): random.Bytes(16),
				string(random.Bytes(10)): nil,
				string(random.Bytes(10)): {},
			},
		}
		root = random.Uint256()
	)
	for _, b := range blocks {
		bs = append(bs, b)
		outcome.Receipts[b.Index] = Receipts(b)
	}
	c, err := chain.New[neo.Primitives](bs, outcome, &root)
	require.NoError(t, err)
	return c
}

// Next creates a chain of n blocks continuing c.
func Next(t testing.TB, c *Chain, n int) *Chain {
	tip := c.Tip()
	return New(t, tip.GetIndex()+1, n, tip.Hash())
}

// Fork creates a chain of n blocks competing with c, that is starting at
// the same height and on top of the same parent.
func Fork(t testing.TB, c *Chain, n int) *Chain {
	first := c.First()
	return New(t, first.GetIndex(), n, first.GetPrevHash())
}
