/*
Package bincompat implements a fixed-schema positional binary encoding of
exex notifications. Notifications are encoded as a single kind tag byte
followed by chains used by the kind (old first, then new), each in the
chain.Compat layout.
*/
package bincompat

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-exex/pkg/core/chain"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/exex"
	"github.com/nspcc-dev/neo-exex/pkg/io"
)

var (
	// ErrUnknownKind is returned when decoding data with a kind tag that
	// doesn't correspond to any notification.
	ErrUnknownKind = exex.ErrUnknownKind
	// ErrTrailingData is returned by Decode when there is some data left
	// after the notification.
	ErrTrailingData = errors.New("trailing data")
	// ErrNilNotification is returned when encoding a nil notification.
	ErrNilNotification = errors.New("nil notification")
)

// Notification is a compatible mirror of exex.Notification. Old is set for
// KindReorged and KindReverted, New is set for KindCommitted and
// KindReorged. Created with FromNotification it shares all data with the
// original notification.
type Notification[P primitives.Primitives] struct {
	Kind exex.Kind
	Old  *chain.Compat[P]
	New  *chain.Compat[P]
}

// As is a serialization strategy for exex.Notification fields using the
// compatible encoding.
type As[P primitives.Primitives] struct{}

// FromNotification returns a compatible representation of n.
func FromNotification[P primitives.Primitives](n exex.Notification[P]) *Notification[P] {
	res := &Notification[P]{Kind: n.Kind()}
	if c := n.RevertedChain(); c != nil {
		res.Old = chain.NewCompat(c)
	}
	if c := n.CommittedChain(); c != nil {
		res.New = chain.NewCompat(c)
	}
	return res
}

// Notification converts n back into an owned exex.Notification validating
// all chains.
func (n *Notification[P]) Notification() (exex.Notification[P], error) {
	var (
		oldChain, newChain *chain.Chain[P]
		err                error
	)
	if n.Old != nil {
		oldChain, err = n.Old.Chain()
		if err != nil {
			return nil, fmt.Errorf("old chain: %w", err)
		}
	}
	if n.New != nil {
		newChain, err = n.New.Chain()
		if err != nil {
			return nil, fmt.Errorf("new chain: %w", err)
		}
	}
	return exex.New(n.Kind, oldChain, newChain)
}

// EncodeBinary implements the io.Serializable interface.
func (n *Notification[P]) EncodeBinary(w *io.BinWriter) {
	if w.Err != nil {
		return
	}
	if !n.Kind.IsValid() {
		w.Err = fmt.Errorf("%w: %d", ErrUnknownKind, byte(n.Kind))
		return
	}
	w.WriteB(byte(n.Kind))
	for _, c := range n.chains() {
		if *c == nil {
			w.Err = fmt.Errorf("%s: %w", n.Kind, exex.ErrMissingChain)
			return
		}
		(*c).EncodeBinary(w)
	}
}

// DecodeBinary implements the io.Serializable interface.
func (n *Notification[P]) DecodeBinary(r *io.BinReader) {
	tag := r.ReadB()
	if r.Err != nil {
		return
	}
	n.Kind = exex.Kind(tag)
	if !n.Kind.IsValid() {
		r.Err = fmt.Errorf("%w: %d", ErrUnknownKind, tag)
		return
	}
	n.Old, n.New = nil, nil
	for _, c := range n.chains() {
		*c = new(chain.Compat[P])
		(*c).DecodeBinary(r)
		if r.Err != nil {
			return
		}
	}
}

// chains returns chain fields used by the kind in wire order.
func (n *Notification[P]) chains() []**chain.Compat[P] {
	switch n.Kind {
	case exex.KindCommitted:
		return []**chain.Compat[P]{&n.New}
	case exex.KindReorged:
		return []**chain.Compat[P]{&n.Old, &n.New}
	case exex.KindReverted:
		return []**chain.Compat[P]{&n.Old}
	}
	return nil
}

// EncodeBinaryAs implements the io.SerializerAs interface.
func (As[P]) EncodeBinaryAs(w *io.BinWriter, n exex.Notification[P]) {
	if n == nil {
		if w.Err == nil {
			w.Err = ErrNilNotification
		}
		return
	}
	FromNotification(n).EncodeBinary(w)
}

// DecodeBinaryAs implements the io.SerializerAs interface. Invalid chains are
// reported via r.Err.
func (As[P]) DecodeBinaryAs(r *io.BinReader) exex.Notification[P] {
	if r.Err != nil {
		return nil
	}
	cn := new(Notification[P])
	cn.DecodeBinary(r)
	if r.Err != nil {
		return nil
	}
	n, err := cn.Notification()
	if err != nil {
		r.Err = err
		return nil
	}
	return n
}

// Encode returns the compatible binary representation of n.
func Encode[P primitives.Primitives](n exex.Notification[P]) ([]byte, error) {
	w := io.NewBufBinWriter()
	As[P]{}.EncodeBinaryAs(w.BinWriter, n)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// Decode decodes a notification from data, all of the data must be used.
func Decode[P primitives.Primitives](data []byte) (exex.Notification[P], error) {
	r := io.NewBinReaderFromBuf(data)
	n := As[P]{}.DecodeBinaryAs(r)
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Len())
	}
	return n, nil
}
