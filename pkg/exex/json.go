package exex

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-exex/pkg/core/chain"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
)

// ErrMissingChain is returned when a decoded notification lacks a chain
// required by its kind.
var ErrMissingChain = errors.New("missing chain")

// notificationAux is used for JSON i/o.
type notificationAux[P primitives.Primitives] struct {
	Type *Kind           `json:"type"`
	Old  *chain.Chain[P] `json:"old,omitempty"`
	New  *chain.Chain[P] `json:"new,omitempty"`
}

// MarshalJSON implements the json.Marshaler interface.
func (n *ChainCommitted[P]) MarshalJSON() ([]byte, error) {
	return json.Marshal(notificationAux[P]{Type: kindPtr(KindCommitted), New: n.CommittedChain()})
}

// MarshalJSON implements the json.Marshaler interface.
func (n *ChainReorged[P]) MarshalJSON() ([]byte, error) {
	return json.Marshal(notificationAux[P]{Type: kindPtr(KindReorged), Old: n.RevertedChain(), New: n.CommittedChain()})
}

// MarshalJSON implements the json.Marshaler interface.
func (n *ChainReverted[P]) MarshalJSON() ([]byte, error) {
	return json.Marshal(notificationAux[P]{Type: kindPtr(KindReverted), Old: n.RevertedChain()})
}

// UnmarshalJSON decodes a notification of any kind from its JSON
// representation.
func UnmarshalJSON[P primitives.Primitives](data []byte) (Notification[P], error) {
	var aux notificationAux[P]
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil, err
	}
	if aux.Type == nil {
		return nil, errors.New("missing notification type")
	}
	return New(*aux.Type, aux.Old, aux.New)
}

func kindPtr(k Kind) *Kind {
	return &k
}

// New creates a notification of the given kind from the given chains. Only
// the chains used by the kind must be non-nil: oldChain for KindReorged and
// KindReverted, newChain for KindCommitted and KindReorged.
func New[P primitives.Primitives](k Kind, oldChain, newChain *chain.Chain[P]) (Notification[P], error) {
	var (
		needOld = k == KindReorged || k == KindReverted
		needNew = k == KindReorged || k == KindCommitted
	)
	if !k.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, byte(k))
	}
	if needOld != (oldChain != nil) {
		return nil, fmt.Errorf("%s: %w: old", k, ErrMissingChain)
	}
	if needNew != (newChain != nil) {
		return nil, fmt.Errorf("%s: %w: new", k, ErrMissingChain)
	}
	switch k {
	case KindCommitted:
		return &ChainCommitted[P]{New: newChain}, nil
	case KindReorged:
		return &ChainReorged[P]{Old: oldChain, New: newChain}, nil
	default:
		return &ChainReverted[P]{Old: oldChain}, nil
	}
}

// Envelope is a holder of a Notification that can be used as a field of
// JSON-encoded structures.
type Envelope[P primitives.Primitives] struct {
	Notification Notification[P]
}

// MarshalJSON implements the json.Marshaler interface.
func (e Envelope[P]) MarshalJSON() ([]byte, error) {
	if e.Notification == nil {
		return []byte("null"), nil
	}
	return json.Marshal(e.Notification)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (e *Envelope[P]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Notification = nil
		return nil
	}
	n, err := UnmarshalJSON[P](data)
	if err != nil {
		return err
	}
	e.Notification = n
	return nil
}
