/*
Package exex defines notifications delivered to execution extensions when
the canonical chain of the node changes.
*/
package exex

import (
	"github.com/nspcc-dev/neo-exex/pkg/core/canonstate"
	"github.com/nspcc-dev/neo-exex/pkg/core/chain"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
)

// Notification describes a single change of the canonical chain tip. It's
// implemented by *ChainCommitted, *ChainReorged and *ChainReverted only.
// Notifications and chains they reference are immutable, so the same
// notification can be handed to any number of extensions.
type Notification[P primitives.Primitives] interface {
	// Kind returns the variant of the notification.
	Kind() Kind
	// CommittedChain returns the chain that became canonical or nil if
	// there is none (for ChainReverted).
	CommittedChain() *chain.Chain[P]
	// RevertedChain returns the chain that is no longer canonical or nil
	// if there is none (for ChainCommitted).
	RevertedChain() *chain.Chain[P]
	// Inverted returns a notification that undoes the effect of this one.
	// Inverting twice gives a notification equal to the original.
	Inverted() Notification[P]

	isNotification()
}

// ChainCommitted is sent when new blocks were committed without a reorg.
type ChainCommitted[P primitives.Primitives] struct {
	New *chain.Chain[P]
}

// ChainReorged is sent when Old chain was replaced by New one.
type ChainReorged[P primitives.Primitives] struct {
	Old *chain.Chain[P]
	New *chain.Chain[P]
}

// ChainReverted is sent when Old chain was removed without a replacement.
type ChainReverted[P primitives.Primitives] struct {
	Old *chain.Chain[P]
}

func (*ChainCommitted[P]) isNotification() {}
func (*ChainReorged[P]) isNotification()   {}
func (*ChainReverted[P]) isNotification()  {}

// Kind implements the Notification interface.
func (*ChainCommitted[P]) Kind() Kind { return KindCommitted }

// Kind implements the Notification interface.
func (*ChainReorged[P]) Kind() Kind { return KindReorged }

// Kind implements the Notification interface.
func (*ChainReverted[P]) Kind() Kind { return KindReverted }

// CommittedChain implements the Notification interface. A nil
// notification has no chains.
func (n *ChainCommitted[P]) CommittedChain() *chain.Chain[P] {
	if n == nil {
		return nil
	}
	return n.New
}

// CommittedChain implements the Notification interface.
func (n *ChainReorged[P]) CommittedChain() *chain.Chain[P] {
	if n == nil {
		return nil
	}
	return n.New
}

// CommittedChain implements the Notification interface.
func (n *ChainReverted[P]) CommittedChain() *chain.Chain[P] { return nil }

// RevertedChain implements the Notification interface.
func (n *ChainCommitted[P]) RevertedChain() *chain.Chain[P] { return nil }

// RevertedChain implements the Notification interface.
func (n *ChainReorged[P]) RevertedChain() *chain.Chain[P] {
	if n == nil {
		return nil
	}
	return n.Old
}

// RevertedChain implements the Notification interface.
func (n *ChainReverted[P]) RevertedChain() *chain.Chain[P] {
	if n == nil {
		return nil
	}
	return n.Old
}

// Inverted implements the Notification interface, it returns ChainReverted
// of the same chain.
func (n *ChainCommitted[P]) Inverted() Notification[P] {
	return &ChainReverted[P]{Old: n.CommittedChain()}
}

// Inverted implements the Notification interface, it returns ChainReorged
// with chains swapped.
func (n *ChainReorged[P]) Inverted() Notification[P] {
	return &ChainReorged[P]{Old: n.CommittedChain(), New: n.RevertedChain()}
}

// Inverted implements the Notification interface, it returns ChainCommitted
// of the same chain.
func (n *ChainReverted[P]) Inverted() Notification[P] {
	return &ChainCommitted[P]{New: n.RevertedChain()}
}

// FromCanonState converts a canonical state change event into a
// notification. Commits become ChainCommitted and reorgs become
// ChainReorged, chains are shared, not copied. ChainReverted is never
// produced here. It's nil for nil n.
func FromCanonState[P primitives.Primitives](n canonstate.Notification[P]) Notification[P] {
	switch n := n.(type) {
	case *canonstate.Commit[P]:
		return &ChainCommitted[P]{New: n.New}
	case *canonstate.Reorg[P]:
		return &ChainReorged[P]{Old: n.Old, New: n.New}
	}
	return nil
}
