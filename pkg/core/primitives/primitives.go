/*
Package primitives defines the set of node data types (blocks, transactions
and receipts) chain snapshots and notifications are built from. Components
are generic over a Primitives implementation and use its zero value as a
factory when decoding data.
*/
package primitives

import (
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/util"
)

type (
	// Transaction is a node transaction.
	Transaction interface {
		io.Serializable
		Hash() util.Uint256
	}

	// Block is a node block. Blocks are treated as immutable values once
	// they're a part of some chain.
	Block interface {
		io.Serializable
		Hash() util.Uint256
		GetIndex() uint32
		GetPrevHash() util.Uint256
		GetTransactions() []Transaction
	}

	// Receipt is the result of a single transaction execution.
	Receipt interface {
		io.Serializable
		TxHash() util.Uint256
		GasUsed() int64
	}

	// Primitives is a capability set of a node: the block, transaction and
	// receipt types it operates with. Implementations are expected to be
	// stateless, so that a zero value can be used.
	Primitives interface {
		NewBlock() Block
		NewTransaction() Transaction
		NewReceipt() Receipt
	}
)

// TxGas is the amount of gas spent by transactions up to and including the
// one with the given index.
type TxGas struct {
	Index      int
	Cumulative *uint256.Int
}

// GasSpentByTransactions returns the cumulative gas used by transactions
// for the given list of receipts (one per transaction, in execution order).
// Negative gas values are treated as zero.
func GasSpentByTransactions(receipts []Receipt) []TxGas {
	var (
		res = make([]TxGas, 0, len(receipts))
		sum = uint256.NewInt(0)
	)
	for i, r := range receipts {
		if g := r.GasUsed(); g > 0 {
			sum = new(uint256.Int).Add(sum, uint256.NewInt(uint64(g)))
		}
		res = append(res, TxGas{Index: i, Cumulative: sum})
	}
	return res
}
