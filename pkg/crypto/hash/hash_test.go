package hash

import (
	"encoding/hex"
	"testing"

	"github.com/nspcc-dev/neo-exex/pkg/util"
	"github.com/stretchr/testify/require"
)

func TestSha256(t *testing.T) {
	input := []byte("hello")
	data := Sha256(input)

	expected := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	require.Equal(t, expected, hex.EncodeToString(data.BytesBE()))
}

func TestDoubleSha256(t *testing.T) {
	input := []byte("hello")
	data := DoubleSha256(input)

	firstSha := Sha256(input)
	doubleSha := Sha256(firstSha.BytesBE())
	require.Equal(t, doubleSha, data)
}

func TestRipeMD160(t *testing.T) {
	input := []byte("hello")
	data := RipeMD160(input)

	expected := "108f07b8382412612c048d07d13f814118445acd"
	require.Equal(t, expected, hex.EncodeToString(data.BytesBE()))
}

func TestHash160(t *testing.T) {
	input := "02cccafb41b220cab63fd77108d2d1ebcffa32be26da29a04dca4996afce5f75db"
	publicKeyBytes, _ := hex.DecodeString(input)
	data := Hash160(publicKeyBytes)

	expected := "c8e2b685cc70ec96743b55beb9449782f8f775d8"
	result := hex.EncodeToString(data.BytesBE())
	require.Equal(t, expected, result)
}

func TestChecksum(t *testing.T) {
	data := []byte("hello")
	h := DoubleSha256(data)
	require.Equal(t, h[:4], Checksum(data))
}

func TestCalcMerkleRoot(t *testing.T) {
	require.Equal(t, util.Uint256{}, CalcMerkleRoot(nil))

	a := Sha256([]byte{1})
	require.Equal(t, a, CalcMerkleRoot([]util.Uint256{a}))

	b := Sha256([]byte{2})
	c := Sha256([]byte{3})
	ab := DoubleSha256(append(a.BytesBE(), b.BytesBE()...))
	cc := DoubleSha256(append(c.BytesBE(), c.BytesBE()...))
	expected := DoubleSha256(append(ab.BytesBE(), cc.BytesBE()...))
	require.Equal(t, expected, CalcMerkleRoot([]util.Uint256{a, b, c}))
}
