package chain_test

import (
	"testing"

	"github.com/nspcc-dev/neo-exex/internal/chaintest"
	"github.com/nspcc-dev/neo-exex/internal/testserdes"
	"github.com/nspcc-dev/neo-exex/pkg/core/chain"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives/neo"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/util"
	"github.com/stretchr/testify/require"
)

func TestCompatBorrows(t *testing.T) {
	c := chaintest.New(t, 7, 2, util.Uint256{})
	cc := chain.NewCompat(c)

	require.Len(t, cc.Blocks, 2)
	require.Same(t, c.First(), cc.Blocks[0])
	require.Same(t, c.Receipts(8)[1], cc.Receipts[1][1])
	require.Len(t, cc.Storage, 3)
	require.NotNil(t, cc.StateRoot)
}

func TestCompatRoundTrip(t *testing.T) {
	c := chaintest.New(t, 7, 3, util.Uint256{})
	cc := chain.NewCompat(c)

	testserdes.EncodeDecodeBinary(t, cc, new(chain.Compat[neo.Primitives]))

	data, err := testserdes.EncodeBinary(cc)
	require.NoError(t, err)
	actual := new(chain.Compat[neo.Primitives])
	require.NoError(t, testserdes.DecodeBinary(data, actual))
	restored, err := actual.Chain()
	require.NoError(t, err)
	require.Equal(t, c, restored)

	// Byte stability.
	again, err := testserdes.EncodeBinary(chain.NewCompat(restored))
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestCompatNoOutcome(t *testing.T) {
	bs := chaintest.Blocks(1, 1, util.Uint256{})
	c, err := chain.New[neo.Primitives](toPrimitives(bs), chain.ExecutionOutcome{}, nil)
	require.NoError(t, err)

	data, err := testserdes.EncodeBinary(chain.NewCompat(c))
	require.NoError(t, err)
	actual := new(chain.Compat[neo.Primitives])
	require.NoError(t, testserdes.DecodeBinary(data, actual))
	require.Nil(t, actual.StateRoot)
	restored, err := actual.Chain()
	require.NoError(t, err)
	require.Equal(t, c, restored)
}

func TestCompatDecodeErrors(t *testing.T) {
	c := chaintest.New(t, 7, 2, util.Uint256{})
	data, err := testserdes.EncodeBinary(chain.NewCompat(c))
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		for _, l := range []int{0, 1, len(data) / 2, len(data) - 1} {
			require.Error(t, testserdes.DecodeBinary(data[:l], new(chain.Compat[neo.Primitives])), "length %d", l)
		}
	})
	t.Run("huge block count", func(t *testing.T) {
		w := io.NewBufBinWriter()
		w.WriteVarUint(chain.MaxBlocks + 1)
		err := testserdes.DecodeBinary(w.Bytes(), new(chain.Compat[neo.Primitives]))
		require.ErrorIs(t, err, io.ErrTooBig)
	})
	t.Run("block count beyond buffer", func(t *testing.T) {
		w := io.NewBufBinWriter()
		w.WriteVarUint(1000)
		w.WriteB(0)
		err := testserdes.DecodeBinary(w.Bytes(), new(chain.Compat[neo.Primitives]))
		require.ErrorIs(t, err, io.ErrTooBig)
	})
	t.Run("bad presence byte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-33] = 2
		err := testserdes.DecodeBinary(bad, new(chain.Compat[neo.Primitives]))
		require.ErrorIs(t, err, chain.ErrInvalidPresence)
	})
}

func TestCompatChainErrors(t *testing.T) {
	c := chaintest.New(t, 7, 2, util.Uint256{})

	t.Run("receipt lists", func(t *testing.T) {
		cc := *chain.NewCompat(c)
		cc.Receipts = cc.Receipts[:1]
		_, err := cc.Chain()
		require.ErrorIs(t, err, chain.ErrReceiptMismatch)

		w := io.NewBufBinWriter()
		cc.EncodeBinary(w.BinWriter)
		require.ErrorIs(t, w.Err, chain.ErrReceiptMismatch)
	})
	t.Run("unsorted blocks", func(t *testing.T) {
		cc := *chain.NewCompat(c)
		cc.Blocks = []primitives.Block{cc.Blocks[1], cc.Blocks[0]}
		cc.Receipts = [][]primitives.Receipt{cc.Receipts[1], cc.Receipts[0]}
		_, err := cc.Chain()
		require.ErrorIs(t, err, chain.ErrNotSorted)
	})
	t.Run("unsorted storage", func(t *testing.T) {
		cc := *chain.NewCompat(c)
		cc.Storage = []chain.StorageChange{cc.Storage[1], cc.Storage[0]}
		_, err := cc.Chain()
		require.ErrorIs(t, err, chain.ErrNotSorted)
	})
	t.Run("storage key too long", func(t *testing.T) {
		cc := *chain.NewCompat(c)
		cc.Storage = []chain.StorageChange{{Key: make([]byte, chain.MaxStorageKeyLen+1), Value: []byte{1}}}
		_, err := cc.Chain()
		require.ErrorIs(t, err, chain.ErrLimitExceeded)

		_, err = testserdes.EncodeBinary(&cc)
		require.ErrorIs(t, err, chain.ErrLimitExceeded)
	})
	t.Run("storage value too long", func(t *testing.T) {
		_, err := testserdes.EncodeBinary(&chain.StorageChange{Key: []byte{1}, Value: make([]byte, chain.MaxStorageValueLen+1)})
		require.ErrorIs(t, err, chain.ErrLimitExceeded)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := new(chain.Compat[neo.Primitives]).Chain()
		require.ErrorIs(t, err, chain.ErrEmpty)
	})
}
