/*
Package canonstate contains events emitted by the node when its canonical
chain changes.
*/
package canonstate

import (
	"github.com/nspcc-dev/neo-exex/pkg/core/chain"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
)

// Notification is a canonical chain change event, it's either a *Commit or
// a *Reorg.
type Notification[P primitives.Primitives] interface {
	// Committed returns the chain that became canonical.
	Committed() *chain.Chain[P]
	// Reverted returns the chain that stopped being canonical, nil for
	// commits.
	Reverted() *chain.Chain[P]

	isCanonStateNotification()
}

// Commit is emitted when new blocks were appended to the canonical chain.
type Commit[P primitives.Primitives] struct {
	New *chain.Chain[P]
}

// Reorg is emitted when a part of the canonical chain was replaced by
// another branch.
type Reorg[P primitives.Primitives] struct {
	Old *chain.Chain[P]
	New *chain.Chain[P]
}

func (*Commit[P]) isCanonStateNotification() {}
func (*Reorg[P]) isCanonStateNotification()  {}

// Committed implements the Notification interface.
func (c *Commit[P]) Committed() *chain.Chain[P] { return c.New }

// Reverted implements the Notification interface.
func (c *Commit[P]) Reverted() *chain.Chain[P] { return nil }

// Committed implements the Notification interface.
func (r *Reorg[P]) Committed() *chain.Chain[P] { return r.New }

// Reverted implements the Notification interface.
func (r *Reorg[P]) Reverted() *chain.Chain[P] { return r.Old }
