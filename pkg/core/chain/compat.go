package chain

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/util"
)

const (
	// MaxBlocks is the maximum number of blocks a decoded chain can have.
	MaxBlocks = 0x10000
	// MaxReceiptsPerBlock is the maximum number of receipts per block.
	MaxReceiptsPerBlock = 0xffff
	// MaxStorageChanges is the maximum number of storage changes a decoded
	// chain can have.
	MaxStorageChanges = io.MaxArraySize
	// MaxStorageKeyLen is the maximum length of a storage key.
	MaxStorageKeyLen = 64
	// MaxStorageValueLen is the maximum length of a storage value.
	MaxStorageValueLen = 65535
)

var (
	// ErrInvalidPresence is returned when an optional field presence byte is
	// neither 0 nor 1.
	ErrInvalidPresence = errors.New("invalid presence byte")
	// ErrNotSorted is returned when blocks or storage changes of a
	// compatible chain are not in ascending order.
	ErrNotSorted = errors.New("not sorted")
)

// Compat is a fixed-schema form of a Chain suitable for positional binary
// encoding. Blocks are ordered by index, receipts are stored as a list of
// lists (one per block) and storage changes are ordered by key. A Compat
// created with NewCompat shares blocks, receipts and storage values with
// the chain it was created from and must not be modified.
type Compat[P primitives.Primitives] struct {
	Blocks    []primitives.Block
	Receipts  [][]primitives.Receipt
	Storage   []StorageChange
	StateRoot *util.Uint256
}

// NewCompat returns a borrowing compatible representation of c.
func NewCompat[P primitives.Primitives](c *Chain[P]) *Compat[P] {
	res := &Compat[P]{
		Blocks:    c.Blocks(),
		Receipts:  make([][]primitives.Receipt, 0, c.Len()),
		Storage:   c.outcome.SortedStorage(),
		StateRoot: c.stateRoot,
	}
	for _, b := range res.Blocks {
		res.Receipts = append(res.Receipts, c.outcome.Receipts[b.GetIndex()])
	}
	return res
}

// Chain converts c back into an owned Chain, checking its consistency.
func (c *Compat[P]) Chain() (*Chain[P], error) {
	if len(c.Receipts) != len(c.Blocks) {
		return nil, fmt.Errorf("%w: %d receipt lists for %d blocks", ErrReceiptMismatch, len(c.Receipts), len(c.Blocks))
	}
	for i := 1; i < len(c.Blocks); i++ {
		if c.Blocks[i].GetIndex() <= c.Blocks[i-1].GetIndex() {
			return nil, fmt.Errorf("%w: block %d follows %d", ErrNotSorted, c.Blocks[i].GetIndex(), c.Blocks[i-1].GetIndex())
		}
	}
	for i := 1; i < len(c.Storage); i++ {
		if string(c.Storage[i].Key) <= string(c.Storage[i-1].Key) {
			return nil, fmt.Errorf("%w: storage key %x follows %x", ErrNotSorted, c.Storage[i].Key, c.Storage[i-1].Key)
		}
	}
	var outcome ExecutionOutcome
	for i, rs := range c.Receipts {
		if len(rs) == 0 {
			continue
		}
		if outcome.Receipts == nil {
			outcome.Receipts = make(map[uint32][]primitives.Receipt)
		}
		outcome.Receipts[c.Blocks[i].GetIndex()] = rs
	}
	for _, ch := range c.Storage {
		if outcome.Storage == nil {
			outcome.Storage = make(map[string][]byte, len(c.Storage))
		}
		outcome.Storage[string(ch.Key)] = ch.Value
	}
	return New[P](c.Blocks, outcome, c.StateRoot)
}

// EncodeBinary implements the io.Serializable interface.
func (c *Compat[P]) EncodeBinary(w *io.BinWriter) {
	if w.Err != nil {
		return
	}
	if len(c.Blocks) > MaxBlocks {
		w.Err = fmt.Errorf("%w: %d blocks", ErrLimitExceeded, len(c.Blocks))
		return
	}
	if len(c.Storage) > MaxStorageChanges {
		w.Err = fmt.Errorf("%w: %d storage changes", ErrLimitExceeded, len(c.Storage))
		return
	}
	w.WriteVarUint(uint64(len(c.Blocks)))
	for _, b := range c.Blocks {
		b.EncodeBinary(w)
	}
	if w.Err == nil && len(c.Receipts) != len(c.Blocks) {
		w.Err = fmt.Errorf("%w: %d receipt lists for %d blocks", ErrReceiptMismatch, len(c.Receipts), len(c.Blocks))
		return
	}
	for i, rs := range c.Receipts {
		if len(rs) > MaxReceiptsPerBlock {
			w.Err = fmt.Errorf("%w: %d receipts in list %d", ErrLimitExceeded, len(rs), i)
			return
		}
		w.WriteVarUint(uint64(len(rs)))
		for _, r := range rs {
			r.EncodeBinary(w)
		}
	}
	io.WriteArray(w, c.Storage)
	w.WriteBool(c.StateRoot != nil)
	if c.StateRoot != nil {
		c.StateRoot.EncodeBinary(w)
	}
}

// DecodeBinary implements the io.Serializable interface. It only checks the
// layout, use Chain to validate the contents.
func (c *Compat[P]) DecodeBinary(r *io.BinReader) {
	var p P

	n := r.ReadLen(1, MaxBlocks)
	if r.Err != nil {
		return
	}
	c.Blocks = make([]primitives.Block, n)
	for i := range c.Blocks {
		c.Blocks[i] = p.NewBlock()
		c.Blocks[i].DecodeBinary(r)
		if r.Err != nil {
			return
		}
	}
	c.Receipts = make([][]primitives.Receipt, n)
	for i := range c.Receipts {
		m := r.ReadLen(1, MaxReceiptsPerBlock)
		if r.Err != nil {
			return
		}
		if m == 0 {
			continue
		}
		c.Receipts[i] = make([]primitives.Receipt, m)
		for j := range c.Receipts[i] {
			c.Receipts[i][j] = p.NewReceipt()
			c.Receipts[i][j].DecodeBinary(r)
			if r.Err != nil {
				return
			}
		}
	}
	c.Storage = io.ReadArray[StorageChange](r, MaxStorageChanges)
	switch present := r.ReadB(); {
	case r.Err != nil:
	case present == 0:
		c.StateRoot = nil
	case present == 1:
		c.StateRoot = new(util.Uint256)
		c.StateRoot.DecodeBinary(r)
	default:
		r.Err = fmt.Errorf("%w: %d", ErrInvalidPresence, present)
	}
}

// EncodeBinary implements the io.Serializable interface.
func (ch *StorageChange) EncodeBinary(w *io.BinWriter) {
	if w.Err != nil {
		return
	}
	if err := checkStorageChange(ch.Key, ch.Value); err != nil {
		w.Err = err
		return
	}
	w.WriteVarBytes(ch.Key)
	w.WriteBool(ch.Value != nil)
	if ch.Value != nil {
		w.WriteVarBytes(ch.Value)
	}
}

// DecodeBinary implements the io.Serializable interface.
func (ch *StorageChange) DecodeBinary(r *io.BinReader) {
	ch.Key = r.ReadVarBytes(MaxStorageKeyLen)
	switch present := r.ReadB(); {
	case r.Err != nil:
	case present == 0:
		ch.Value = nil
	case present == 1:
		ch.Value = r.ReadVarBytes(MaxStorageValueLen)
	default:
		r.Err = fmt.Errorf("%w: %d", ErrInvalidPresence, present)
	}
}
