package util

import (
	"encoding/json"
	"testing"

	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/stretchr/testify/require"
)

func TestUint256DecodeString(t *testing.T) {
	hexStr := "f037308fa0ab18155bccfc08485468c112409ea5064595699e98c545f245f32d"
	val, err := Uint256DecodeStringLE(hexStr)
	require.NoError(t, err)
	require.Equal(t, hexStr, val.String())

	_, err = Uint256DecodeStringLE(hexStr[1:])
	require.Error(t, err)

	_, err = Uint256DecodeStringLE("zz" + hexStr[2:])
	require.Error(t, err)
}

func TestUint256JSON(t *testing.T) {
	u, err := Uint256DecodeStringLE("f037308fa0ab18155bccfc08485468c112409ea5064595699e98c545f245f32d")
	require.NoError(t, err)

	data, err := json.Marshal(u)
	require.NoError(t, err)
	require.Equal(t, `"0xf037308fa0ab18155bccfc08485468c112409ea5064595699e98c545f245f32d"`, string(data))

	var actual Uint256
	require.NoError(t, json.Unmarshal(data, &actual))
	require.Equal(t, u, actual)
}

func TestUint256CompareTo(t *testing.T) {
	a := Uint256{1}
	b := Uint256{2}
	require.Equal(t, -1, a.CompareTo(b))
	require.Equal(t, 1, b.CompareTo(a))
	require.Equal(t, 0, a.CompareTo(a))
}

func TestUint160JSON(t *testing.T) {
	u, err := Uint160DecodeStringLE("2d3b96ae1bcc5a585e075e3b81920210dec16302")
	require.NoError(t, err)
	require.Equal(t, "2d3b96ae1bcc5a585e075e3b81920210dec16302", u.StringLE())

	data, err := json.Marshal(u)
	require.NoError(t, err)
	var actual Uint160
	require.NoError(t, json.Unmarshal(data, &actual))
	require.Equal(t, u, actual)
}

func TestUintBinary(t *testing.T) {
	u256 := Uint256{1, 2, 3}
	u160 := Uint160{4, 5, 6}

	w := io.NewBufBinWriter()
	u256.EncodeBinary(w.BinWriter)
	u160.EncodeBinary(w.BinWriter)
	require.NoError(t, w.Err)

	var (
		a Uint256
		b Uint160
		r = io.NewBinReaderFromBuf(w.Bytes())
	)
	a.DecodeBinary(r)
	b.DecodeBinary(r)
	require.NoError(t, r.Err)
	require.Equal(t, u256, a)
	require.Equal(t, u160, b)
}

func TestArrayReverse(t *testing.T) {
	require.Equal(t, []byte{3, 2, 1}, ArrayReverse([]byte{1, 2, 3}))
	require.Equal(t, []byte{1}, ArrayReverse([]byte{1}))
	require.Equal(t, []byte{}, ArrayReverse([]byte{}))
}
