package bincompat_test

import (
	"strings"
	"testing"

	"github.com/nspcc-dev/neo-exex/internal/chaintest"
	"github.com/nspcc-dev/neo-exex/internal/testserdes"
	"github.com/nspcc-dev/neo-exex/pkg/core/chain"
	"github.com/nspcc-dev/neo-exex/pkg/core/state"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives/neo"
	"github.com/nspcc-dev/neo-exex/pkg/exex"
	"github.com/nspcc-dev/neo-exex/pkg/exex/bincompat"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/util"
	"github.com/stretchr/testify/require"
)

type (
	notification = exex.Notification[neo.Primitives]
	committed    = exex.ChainCommitted[neo.Primitives]
	reorged      = exex.ChainReorged[neo.Primitives]
	reverted     = exex.ChainReverted[neo.Primitives]
	strategy     = bincompat.As[neo.Primitives]
)

var _ io.SerializerAs[notification] = strategy{}

// record is a container with a notification field using the compatible
// encoding.
type record struct {
	ID           uint64
	Notification notification
}

func (r *record) EncodeBinary(w *io.BinWriter) {
	w.WriteU64LE(r.ID)
	strategy{}.EncodeBinaryAs(w, r.Notification)
}

func (r *record) DecodeBinary(br *io.BinReader) {
	r.ID = br.ReadU64LE()
	r.Notification = strategy{}.DecodeBinaryAs(br)
}

func testNotifications(t *testing.T) []notification {
	a := chaintest.New(t, 10, 2, util.Uint256{1})
	b := chaintest.Fork(t, a, 3)
	return []notification{
		&committed{New: a},
		&reorged{Old: a, New: b},
		&reverted{Old: b},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, n := range testNotifications(t) {
		t.Run(n.Kind().String(), func(t *testing.T) {
			testserdes.EncodeDecodeAs[notification](t, strategy{}, n)
			testserdes.EncodeDecodeBinary(t, &record{ID: 7, Notification: n}, new(record))

			data, err := bincompat.Encode(n)
			require.NoError(t, err)
			actual, err := bincompat.Decode[neo.Primitives](data)
			require.NoError(t, err)
			require.Equal(t, n, actual)
		})
	}
}

func TestLayout(t *testing.T) {
	ns := testNotifications(t)
	reorg := ns[1]

	data, err := bincompat.Encode(reorg)
	require.NoError(t, err)
	oldData, err := testserdes.EncodeBinary(chain.NewCompat(reorg.RevertedChain()))
	require.NoError(t, err)
	newData, err := testserdes.EncodeBinary(chain.NewCompat(reorg.CommittedChain()))
	require.NoError(t, err)

	expected := append([]byte{byte(exex.KindReorged)}, oldData...)
	expected = append(expected, newData...)
	require.Equal(t, expected, data)

	for _, n := range ns {
		data, err := bincompat.Encode(n)
		require.NoError(t, err)
		require.Equal(t, byte(n.Kind()), data[0])
	}
}

func TestMirror(t *testing.T) {
	for _, n := range testNotifications(t) {
		cn := bincompat.FromNotification(n)
		require.Equal(t, n.Kind(), cn.Kind)
		require.Equal(t, n.RevertedChain() != nil, cn.Old != nil)
		require.Equal(t, n.CommittedChain() != nil, cn.New != nil)
		if cn.New != nil {
			require.Same(t, n.CommittedChain().First(), cn.New.Blocks[0])
		}

		actual, err := cn.Notification()
		require.NoError(t, err)
		require.Equal(t, n, actual)

		testserdes.EncodeDecodeBinary(t, cn, new(bincompat.Notification[neo.Primitives]))
	}
}

func TestMirrorErrors(t *testing.T) {
	ns := testNotifications(t)

	cn := bincompat.FromNotification(ns[0])
	cn.Kind = exex.KindReverted
	_, err := cn.Notification()
	require.ErrorIs(t, err, exex.ErrMissingChain)

	w := io.NewBufBinWriter()
	cn.EncodeBinary(w.BinWriter)
	require.ErrorIs(t, w.Err, exex.ErrMissingChain)

	cn.Kind = 3
	w = io.NewBufBinWriter()
	cn.EncodeBinary(w.BinWriter)
	require.ErrorIs(t, w.Err, bincompat.ErrUnknownKind)

	cn = bincompat.FromNotification(ns[1])
	cn.New.Blocks = cn.New.Blocks[1:]
	_, err = cn.Notification()
	require.ErrorIs(t, err, chain.ErrReceiptMismatch)
}

func TestDecodeErrors(t *testing.T) {
	ns := testNotifications(t)
	data, err := bincompat.Encode(ns[1])
	require.NoError(t, err)

	t.Run("unknown tag", func(t *testing.T) {
		for _, tag := range []byte{3, 4, 0xff} {
			bad := append([]byte{tag}, data[1:]...)
			_, err := bincompat.Decode[neo.Primitives](bad)
			require.ErrorIs(t, err, bincompat.ErrUnknownKind)
		}
	})
	t.Run("empty", func(t *testing.T) {
		_, err := bincompat.Decode[neo.Primitives](nil)
		require.Error(t, err)
	})
	t.Run("truncated", func(t *testing.T) {
		for _, l := range []int{1, 2, len(data) / 3, len(data) / 2, len(data) - 1} {
			_, err := bincompat.Decode[neo.Primitives](data[:l])
			require.Error(t, err, "length %d", l)
		}
	})
	t.Run("oversized length", func(t *testing.T) {
		w := io.NewBufBinWriter()
		w.WriteB(byte(exex.KindCommitted))
		w.WriteVarUint(1 << 40)
		_, err := bincompat.Decode[neo.Primitives](w.Bytes())
		require.ErrorIs(t, err, io.ErrTooBig)

		w = io.NewBufBinWriter()
		w.WriteB(byte(exex.KindReverted))
		w.WriteVarUint(100)
		w.WriteBytes(make([]byte, 50))
		_, err = bincompat.Decode[neo.Primitives](w.Bytes())
		require.ErrorIs(t, err, io.ErrTooBig)
	})
	t.Run("trailing data", func(t *testing.T) {
		_, err := bincompat.Decode[neo.Primitives](append(append([]byte(nil), data...), 0))
		require.ErrorIs(t, err, bincompat.ErrTrailingData)
	})
	t.Run("inconsistent chain", func(t *testing.T) {
		cn := bincompat.FromNotification(ns[0])
		cn.New.Receipts = cn.New.Receipts[:1]
		cn.New.Receipts = append(cn.New.Receipts, cn.New.Receipts[0])
		bad, err := testserdes.EncodeBinary(cn)
		require.NoError(t, err)
		_, err = bincompat.Decode[neo.Primitives](bad)
		require.ErrorIs(t, err, chain.ErrReceiptMismatch)
	})
	t.Run("sticky error", func(t *testing.T) {
		r := io.NewBinReaderFromBuf(data)
		r.Err = io.ErrTooBig
		require.Nil(t, strategy{}.DecodeBinaryAs(r))
	})
}

func TestEncodeNil(t *testing.T) {
	_, err := bincompat.Encode[neo.Primitives](nil)
	require.ErrorIs(t, err, bincompat.ErrNilNotification)

	for _, n := range []notification{(*committed)(nil), (*reorged)(nil), (*reverted)(nil)} {
		require.NotPanics(t, func() {
			_, err = bincompat.Encode(n)
		})
		require.ErrorIs(t, err, exex.ErrMissingChain, n.Kind().String())
	}
}

func TestEncodeLimits(t *testing.T) {
	a := chaintest.New(t, 10, 1, util.Uint256{1})
	cc := chain.NewCompat(a)
	cc.Receipts[0][0].(*state.AppExecResult).Events[0].Name = strings.Repeat("x", state.MaxEventNameLen+1)

	w := io.NewBufBinWriter()
	cc.EncodeBinary(w.BinWriter)
	require.ErrorIs(t, w.Err, state.ErrEventTooBig)

	_, err := bincompat.Encode[neo.Primitives](&committed{New: a})
	require.ErrorIs(t, err, state.ErrEventTooBig)
}
