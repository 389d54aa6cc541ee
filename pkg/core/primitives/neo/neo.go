/*
Package neo provides Neo N3 node primitives.
*/
package neo

import (
	"github.com/nspcc-dev/neo-exex/pkg/core/block"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/core/state"
	"github.com/nspcc-dev/neo-exex/pkg/core/transaction"
)

// Primitives is the Neo N3 set of node primitives: *block.Block,
// *transaction.Transaction and *state.AppExecResult.
type Primitives struct{}

var _ primitives.Primitives = Primitives{}

// NewBlock implements the primitives.Primitives interface.
func (Primitives) NewBlock() primitives.Block {
	return block.New()
}

// NewTransaction implements the primitives.Primitives interface.
func (Primitives) NewTransaction() primitives.Transaction {
	return new(transaction.Transaction)
}

// NewReceipt implements the primitives.Primitives interface.
func (Primitives) NewReceipt() primitives.Receipt {
	return new(state.AppExecResult)
}
