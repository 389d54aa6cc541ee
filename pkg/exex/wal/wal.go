/*
Package wal implements a persistent write-ahead log of exex notifications.
It allows execution extensions to replay notifications after restart and
to undo ones that were not finalized yet.
*/
package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/neo-exex/pkg/config"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/core/storage"
	"github.com/nspcc-dev/neo-exex/pkg/exex"
	"github.com/nspcc-dev/neo-exex/pkg/util"
	"go.uber.org/zap"
)

// Version is the version of the WAL storage format.
const Version = "0.1.0"

var (
	// ErrNotFound is returned when there is no requested notification.
	ErrNotFound = errors.New("notification not found")
	// ErrVersionMismatch is returned when the store contains WAL of an
	// incompatible version.
	ErrVersionMismatch = errors.New("WAL version mismatch")
)

// entry is an in-memory index item.
type entry struct {
	id uint64
	header
}

// WAL is a notification write-ahead log. Notifications are stored with
// increasing IDs, IDs are never reused. It's safe for concurrent use.
type WAL[P primitives.Primitives] struct {
	store storage.Store
	cfg   config.WAL
	log   *zap.Logger

	lock      sync.RWMutex
	entries   []entry // Ordered by ID.
	nextID    uint64
	finalized uint32
	cache     *lru.Cache
	changed   chan struct{}
}

// New creates a WAL backed by the given store loading its state from it.
// Nil logger disables logging.
func New[P primitives.Primitives](store storage.Store, cfg config.WAL, log *zap.Logger) (*WAL[P], error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = config.DefaultWALCacheSize
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	w := &WAL[P]{
		store:   store,
		cfg:     cfg,
		log:     log,
		cache:   cache,
		changed: make(chan struct{}),
	}
	if err := w.init(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WAL[P]) init() error {
	version, err := w.store.Get(storage.SYSVersion.Bytes())
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		err = w.store.PutChangeSet(map[string][]byte{
			string(storage.SYSVersion.Bytes()): []byte(Version),
		})
		if err != nil {
			return fmt.Errorf("failed to store WAL version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to get WAL version: %w", err)
	case string(version) != Version:
		return fmt.Errorf("%w: %s instead of %s", ErrVersionMismatch, version, Version)
	}

	if v, err := w.store.Get(storage.SYSNextID.Bytes()); err == nil && len(v) == 8 {
		w.nextID = binary.LittleEndian.Uint64(v)
	}
	if v, err := w.store.Get(storage.SYSFinalized.Bytes()); err == nil && len(v) == 4 {
		w.finalized = binary.LittleEndian.Uint32(v)
	}
	w.store.Seek(storage.SeekRange{Prefix: storage.WALNotification.Bytes()}, func(k, v []byte) bool {
		if len(k) != 9 {
			err = fmt.Errorf("invalid notification key %x", k)
			return false
		}
		id := binary.BigEndian.Uint64(k[1:])
		var h header
		h, err = decodeHeader(v)
		if err != nil {
			err = fmt.Errorf("notification %d: %w", id, err)
			return false
		}
		w.entries = append(w.entries, entry{id: id, header: h})
		return true
	})
	if err != nil {
		return err
	}
	if l := len(w.entries); l != 0 && w.entries[l-1].id >= w.nextID {
		w.nextID = w.entries[l-1].id + 1
	}
	w.updateMetrics()
	w.log.Info("WAL loaded",
		zap.Int("notifications", len(w.entries)),
		zap.Uint64("next id", w.nextID),
		zap.Uint32("finalized", w.finalized))
	return nil
}

func notificationKey(id uint64) []byte {
	k := make([]byte, 9)
	k[0] = byte(storage.WALNotification)
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

func blockHashKey(h util.Uint256) []byte {
	return append(storage.WALBlockHash.Bytes(), h.BytesBE()...)
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// Commit appends the notification to the log and returns its ID.
func (w *WAL[P]) Commit(n exex.Notification[P]) (uint64, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	id := w.nextID
	data, h, err := encodeRecord(id, n, w.cfg.Compress)
	if err != nil {
		return 0, fmt.Errorf("failed to encode notification: %w", err)
	}
	puts := map[string][]byte{
		string(notificationKey(id)):      data,
		string(storage.SYSNextID.Bytes()): uint64Bytes(id + 1),
	}
	if c := n.CommittedChain(); c != nil {
		for _, hash := range c.Hashes() {
			puts[string(blockHashKey(hash))] = uint64Bytes(id)
		}
	}
	if err := w.store.PutChangeSet(puts); err != nil {
		return 0, fmt.Errorf("failed to store notification: %w", err)
	}
	w.nextID++
	w.entries = append(w.entries, entry{id: id, header: h})
	w.cache.Add(id, n)
	w.updateMetrics()
	w.notify()
	w.log.Debug("notification committed",
		zap.Uint64("id", id),
		zap.Stringer("kind", h.Kind),
		zap.Uint32("low", h.Low),
		zap.Uint32("high", h.High),
		zap.Int("size", len(data)))
	return id, nil
}

// Get returns the notification with the given ID.
func (w *WAL[P]) Get(id uint64) (exex.Notification[P], error) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.get(id)
}

func (w *WAL[P]) get(id uint64) (exex.Notification[P], error) {
	if n, ok := w.cache.Get(id); ok {
		return n.(exex.Notification[P]), nil
	}
	data, err := w.store.Get(notificationKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, err
	}
	n, err := decodeRecord[P](id, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode notification %d: %w", id, err)
	}
	w.cache.Add(id, n)
	return n, nil
}

// Iterate calls f for every notification in the log in ascending ID order
// until f returns false.
func (w *WAL[P]) Iterate(f func(id uint64, n exex.Notification[P]) bool) error {
	w.lock.RLock()
	defer w.lock.RUnlock()
	for _, e := range w.entries {
		n, err := w.get(e.id)
		if err != nil {
			return err
		}
		if !f(e.id, n) {
			break
		}
	}
	return nil
}

// Changed returns a channel that is closed on the next modification of the
// log. A new channel has to be requested after that.
func (w *WAL[P]) Changed() <-chan struct{} {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.changed
}

// notify wakes up Changed waiters, it must be called with the lock held.
func (w *WAL[P]) notify() {
	close(w.changed)
	w.changed = make(chan struct{})
}

// Len returns the number of notifications in the log.
func (w *WAL[P]) Len() int {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return len(w.entries)
}

// IDs returns IDs of all notifications in the log in ascending order.
func (w *WAL[P]) IDs() []uint64 {
	w.lock.RLock()
	defer w.lock.RUnlock()
	res := make([]uint64, len(w.entries))
	for i := range w.entries {
		res[i] = w.entries[i].id
	}
	return res
}

// NextID returns the ID the next committed notification will get.
func (w *WAL[P]) NextID() uint64 {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.nextID
}

// FinalizedHeight returns the height passed to the last Finalize call.
func (w *WAL[P]) FinalizedHeight() uint32 {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.finalized
}

// NotificationByBlockHash returns the latest notification (and its ID) that
// committed the block with the given hash.
func (w *WAL[P]) NotificationByBlockHash(h util.Uint256) (uint64, exex.Notification[P], error) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	v, err := w.store.Get(blockHashKey(h))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil, fmt.Errorf("%w: block %s", ErrNotFound, h.StringLE())
		}
		return 0, nil, err
	}
	if len(v) != 8 {
		return 0, nil, fmt.Errorf("invalid block index entry for %s", h.StringLE())
	}
	id := binary.LittleEndian.Uint64(v)
	n, err := w.get(id)
	if err != nil {
		return 0, nil, err
	}
	return id, n, nil
}

// Unwind removes all notifications with IDs greater than afterID and returns
// their inversions, newest first. Applying them in order undoes the effect
// of the removed notifications. Block hashes committed by removed
// notifications are pointed back to the latest remaining notification that
// committed them, if any.
func (w *WAL[P]) Unwind(afterID uint64) ([]exex.Notification[P], error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	i := sort.Search(len(w.entries), func(i int) bool {
		return w.entries[i].id > afterID
	})
	removed := w.entries[i:]
	if len(removed) == 0 {
		return nil, nil
	}
	var (
		res  = make([]exex.Notification[P], 0, len(removed))
		puts = make(map[string][]byte, len(removed))
		ids  = make(map[uint64]struct{}, len(removed))
	)
	for j := len(removed) - 1; j >= 0; j-- {
		n, err := w.get(removed[j].id)
		if err != nil {
			return nil, err
		}
		res = append(res, n.Inverted())
		puts[string(notificationKey(removed[j].id))] = nil
		ids[removed[j].id] = struct{}{}
	}
	if err := w.store.PutChangeSet(puts); err != nil {
		return nil, fmt.Errorf("failed to remove notifications: %w", err)
	}
	w.forget(w.entries[:i], ids)
	w.log.Info("WAL unwound",
		zap.Uint64("after", afterID),
		zap.Int("removed", len(res)))
	if err := w.reindexBlockHashes(ids); err != nil {
		return nil, err
	}
	return res, nil
}

// Finalize removes notifications whose committed chain (reverted chain for
// ChainReverted) tip is at or below the given height. It returns the number
// of removed notifications.
func (w *WAL[P]) Finalize(height uint32) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var (
		kept = w.entries[:0:0]
		ids  = make(map[uint64]struct{})
	)
	for _, e := range w.entries {
		if e.High <= height {
			ids[e.id] = struct{}{}
			continue
		}
		kept = append(kept, e)
	}
	err := w.store.SeekGC(storage.SeekRange{Prefix: storage.WALNotification.Bytes()}, func(k, _ []byte) bool {
		_, drop := ids[binary.BigEndian.Uint64(k[1:])]
		return !drop
	})
	if err != nil {
		return 0, fmt.Errorf("failed to remove notifications: %w", err)
	}
	w.forget(kept, ids)
	w.log.Info("WAL finalized",
		zap.Uint32("height", height),
		zap.Int("removed", len(ids)),
		zap.Int("left", len(kept)))
	if height > w.finalized {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, height)
		if err := w.store.PutChangeSet(map[string][]byte{string(storage.SYSFinalized.Bytes()): b}); err != nil {
			return 0, fmt.Errorf("failed to store finalized height: %w", err)
		}
		w.finalized = height
	}
	if err := w.reindexBlockHashes(ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// forget replaces the in-memory index with entries once notifications with
// the given IDs are removed from the store.
func (w *WAL[P]) forget(entries []entry, ids map[uint64]struct{}) {
	for id := range ids {
		w.cache.Remove(id)
	}
	w.entries = entries
	w.updateMetrics()
	w.notify()
}

// reindexBlockHashes removes block hash index entries pointing to the given
// (already removed) notifications and points every dropped hash to the
// newest remaining notification that committed the same block.
func (w *WAL[P]) reindexBlockHashes(ids map[uint64]struct{}) error {
	if len(ids) == 0 {
		return nil
	}
	dropped := make(map[util.Uint256]struct{})
	err := w.store.SeekGC(storage.SeekRange{Prefix: storage.WALBlockHash.Bytes()}, func(k, v []byte) bool {
		if len(v) != 8 {
			return false
		}
		if _, drop := ids[binary.LittleEndian.Uint64(v)]; !drop {
			return true
		}
		if h, err := util.Uint256DecodeBytesBE(k[1:]); err == nil {
			dropped[h] = struct{}{}
		}
		return false
	})
	if err != nil {
		return fmt.Errorf("failed to clean block index: %w", err)
	}
	puts := make(map[string][]byte)
	for i := len(w.entries) - 1; i >= 0 && len(dropped) != 0; i-- {
		n, err := w.get(w.entries[i].id)
		if err != nil {
			return fmt.Errorf("failed to reindex block hashes: %w", err)
		}
		c := n.CommittedChain()
		if c == nil {
			continue
		}
		for _, h := range c.Hashes() {
			if _, ok := dropped[h]; ok {
				puts[string(blockHashKey(h))] = uint64Bytes(w.entries[i].id)
				delete(dropped, h)
			}
		}
	}
	if len(puts) == 0 {
		return nil
	}
	if err := w.store.PutChangeSet(puts); err != nil {
		return fmt.Errorf("failed to reindex block hashes: %w", err)
	}
	w.log.Debug("block hashes reindexed", zap.Int("count", len(puts)))
	return nil
}

// Stats contains WAL summary.
type Stats struct {
	Notifications int    `json:"notifications"`
	NextID        uint64 `json:"nextid"`
	Finalized     uint32 `json:"finalized"`
	// LowestBlock and HighestBlock are only meaningful if there are some
	// notifications.
	LowestBlock  uint32 `json:"lowestblock"`
	HighestBlock uint32 `json:"highestblock"`
}

// Stats returns WAL summary.
func (w *WAL[P]) Stats() Stats {
	w.lock.RLock()
	defer w.lock.RUnlock()
	low, high := w.blockRange()
	return Stats{
		Notifications: len(w.entries),
		NextID:        w.nextID,
		Finalized:     w.finalized,
		LowestBlock:   low,
		HighestBlock:  high,
	}
}

func (w *WAL[P]) blockRange() (uint32, uint32) {
	if len(w.entries) == 0 {
		return 0, 0
	}
	low, high := w.entries[0].Low, w.entries[0].High
	for _, e := range w.entries[1:] {
		if e.Low < low {
			low = e.Low
		}
		if e.High > high {
			high = e.High
		}
	}
	return low, high
}

func (w *WAL[P]) updateMetrics() {
	low, high := w.blockRange()
	updateWALMetrics(len(w.entries), low, high)
}

// Close closes the underlying store.
func (w *WAL[P]) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.cache.Purge()
	return w.store.Close()
}
