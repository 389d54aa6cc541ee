/*
Package chain contains an immutable snapshot of a contiguous range of blocks
together with the results of their execution.
*/
package chain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/util"
	"github.com/nspcc-dev/neo-exex/pkg/util/slice"
)

var (
	// ErrEmpty is returned when a chain is created without blocks.
	ErrEmpty = errors.New("chain has no blocks")
	// ErrNotContiguous is returned when block indexes do not form a
	// contiguous range.
	ErrNotContiguous = errors.New("block range is not contiguous")
	// ErrNotLinked is returned when some block doesn't reference the hash
	// of the previous one.
	ErrNotLinked = errors.New("blocks are not linked")
	// ErrReceiptMismatch is returned when receipts don't correspond to the
	// blocks of the chain.
	ErrReceiptMismatch = errors.New("receipts don't match blocks")
	// ErrLimitExceeded is returned when a chain has more blocks, receipts or
	// storage changes (or longer storage keys and values) than a compatible
	// chain can carry.
	ErrLimitExceeded = errors.New("chain limit exceeded")
)

// Chain is a snapshot of a contiguous range of blocks with their execution
// outcome. It's never modified after creation, so a single instance can be
// shared by any number of notifications and goroutines.
type Chain[P primitives.Primitives] struct {
	first     uint32
	tip       uint32
	blocks    map[uint32]primitives.Block
	outcome   ExecutionOutcome
	stateRoot *util.Uint256
}

// New creates a chain from the given blocks (in any order), the outcome of
// their execution and an optional state root of the tip. Receipt lists are
// keyed by block index, a non-empty list must contain exactly one receipt per
// block transaction in the same order. Everything passed is copied except for blocks and
// receipts that are shared as immutable values.
func New[P primitives.Primitives](blocks []primitives.Block, outcome ExecutionOutcome, stateRoot *util.Uint256) (*Chain[P], error) {
	if len(blocks) == 0 {
		return nil, ErrEmpty
	}
	if len(blocks) > MaxBlocks {
		return nil, fmt.Errorf("%w: %d blocks", ErrLimitExceeded, len(blocks))
	}
	if err := checkStorage(outcome.Storage); err != nil {
		return nil, err
	}
	c := &Chain[P]{
		first:  blocks[0].GetIndex(),
		tip:    blocks[0].GetIndex(),
		blocks: make(map[uint32]primitives.Block, len(blocks)),
	}
	for _, b := range blocks {
		idx := b.GetIndex()
		if _, ok := c.blocks[idx]; ok {
			return nil, fmt.Errorf("%w: duplicate block %d", ErrNotContiguous, idx)
		}
		c.blocks[idx] = b
		if idx < c.first {
			c.first = idx
		}
		if idx > c.tip {
			c.tip = idx
		}
	}
	if uint64(c.tip-c.first)+1 != uint64(len(blocks)) {
		return nil, fmt.Errorf("%w: %d blocks in [%d, %d]", ErrNotContiguous, len(blocks), c.first, c.tip)
	}
	for i := c.first + 1; i <= c.tip && i > c.first; i++ {
		if c.blocks[i].GetPrevHash() != c.blocks[i-1].Hash() {
			return nil, fmt.Errorf("%w: block %d", ErrNotLinked, i)
		}
	}
	c.outcome = outcome.copy()
	for idx, rs := range c.outcome.Receipts {
		b, ok := c.blocks[idx]
		if !ok {
			return nil, fmt.Errorf("%w: receipts for block %d out of [%d, %d]", ErrReceiptMismatch, idx, c.first, c.tip)
		}
		if len(rs) == 0 {
			delete(c.outcome.Receipts, idx)
			continue
		}
		if len(rs) > MaxReceiptsPerBlock {
			return nil, fmt.Errorf("%w: %d receipts for block %d", ErrLimitExceeded, len(rs), idx)
		}
		txs := b.GetTransactions()
		if len(rs) != len(txs) {
			return nil, fmt.Errorf("%w: block %d has %d transactions and %d receipts",
				ErrReceiptMismatch, idx, len(txs), len(rs))
		}
		for i := range rs {
			if rs[i].TxHash() != txs[i].Hash() {
				return nil, fmt.Errorf("%w: receipt #%d of block %d is for %s", ErrReceiptMismatch, i, idx, rs[i].TxHash().StringLE())
			}
		}
	}
	if len(c.outcome.Receipts) == 0 {
		c.outcome.Receipts = nil
	}
	if stateRoot != nil {
		sr := *stateRoot
		c.stateRoot = &sr
	}
	return c, nil
}

func checkStorage(storage map[string][]byte) error {
	if len(storage) > MaxStorageChanges {
		return fmt.Errorf("%w: %d storage changes", ErrLimitExceeded, len(storage))
	}
	for k, v := range storage {
		if err := checkStorageChange([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

func checkStorageChange(k, v []byte) error {
	if len(k) > MaxStorageKeyLen {
		return fmt.Errorf("%w: storage key %x is %d bytes long", ErrLimitExceeded, k, len(k))
	}
	if len(v) > MaxStorageValueLen {
		return fmt.Errorf("%w: value of storage key %x is %d bytes long", ErrLimitExceeded, k, len(v))
	}
	return nil
}

// Len returns the number of blocks in the chain.
func (c *Chain[P]) Len() int {
	return len(c.blocks)
}

// Range returns the indexes of the first and the last blocks of the chain.
func (c *Chain[P]) Range() (uint32, uint32) {
	return c.first, c.tip
}

// First returns the lowest block of the chain.
func (c *Chain[P]) First() primitives.Block {
	return c.blocks[c.first]
}

// Tip returns the highest block of the chain.
func (c *Chain[P]) Tip() primitives.Block {
	return c.blocks[c.tip]
}

// Block returns the block with the given index or nil if it's not a part of
// the chain.
func (c *Chain[P]) Block(index uint32) primitives.Block {
	return c.blocks[index]
}

// BlockByHash returns the block with the given hash or nil.
func (c *Chain[P]) BlockByHash(h util.Uint256) primitives.Block {
	for _, b := range c.blocks {
		if b.Hash() == h {
			return b
		}
	}
	return nil
}

// Blocks returns all blocks of the chain ordered by index.
func (c *Chain[P]) Blocks() []primitives.Block {
	res := make([]primitives.Block, 0, len(c.blocks))
	for i := c.first; i <= c.tip && len(res) < len(c.blocks); i++ {
		res = append(res, c.blocks[i])
	}
	return res
}

// Hashes returns hashes of all blocks of the chain ordered by index.
func (c *Chain[P]) Hashes() []util.Uint256 {
	bs := c.Blocks()
	res := make([]util.Uint256, len(bs))
	for i := range bs {
		res[i] = bs[i].Hash()
	}
	return res
}

// Receipts returns receipts of the block with the given index, nil if
// there are none.
func (c *Chain[P]) Receipts(index uint32) []primitives.Receipt {
	rs := c.outcome.Receipts[index]
	if rs == nil {
		return nil
	}
	return append([]primitives.Receipt(nil), rs...)
}

// ExecutionOutcome returns a copy of the chain's execution outcome.
func (c *Chain[P]) ExecutionOutcome() ExecutionOutcome {
	return c.outcome.copy()
}

// StateRoot returns the state root after the tip block if it's known.
func (c *Chain[P]) StateRoot() (util.Uint256, bool) {
	if c.stateRoot == nil {
		return util.Uint256{}, false
	}
	return *c.stateRoot, true
}

// ExecutionOutcome is the result of executing some range of blocks.
type ExecutionOutcome struct {
	// Receipts are keyed by block index, in transaction order.
	Receipts map[uint32][]primitives.Receipt
	// Storage contains changed storage items keyed by raw key, nil value
	// means the item was deleted.
	Storage map[string][]byte
}

// StorageChange is a single storage modification. Value is nil for
// deletions.
type StorageChange struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// SortedStorage returns storage changes ordered by key.
func (o ExecutionOutcome) SortedStorage() []StorageChange {
	if len(o.Storage) == 0 {
		return nil
	}
	res := make([]StorageChange, 0, len(o.Storage))
	for k, v := range o.Storage {
		res = append(res, StorageChange{Key: []byte(k), Value: v})
	}
	sort.Slice(res, func(i, j int) bool {
		return string(res[i].Key) < string(res[j].Key)
	})
	return res
}

func (o ExecutionOutcome) copy() ExecutionOutcome {
	var res ExecutionOutcome
	if len(o.Receipts) != 0 {
		res.Receipts = make(map[uint32][]primitives.Receipt, len(o.Receipts))
		for k, v := range o.Receipts {
			res.Receipts[k] = append([]primitives.Receipt(nil), v...)
		}
	}
	if len(o.Storage) != 0 {
		res.Storage = make(map[string][]byte, len(o.Storage))
		for k, v := range o.Storage {
			res.Storage[k] = slice.Copy(v)
		}
	}
	return res
}
