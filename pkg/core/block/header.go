package block

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nspcc-dev/neo-exex/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-exex/pkg/encoding/address"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/util"
)

// VersionInitial is the default Neo block version.
const VersionInitial uint32 = 0

// Header holds the base info of a block.
type Header struct {
	// Version of the block.
	Version uint32

	// hash of the previous block.
	PrevHash util.Uint256

	// Root hash of a transaction list.
	MerkleRoot util.Uint256

	// Timestamp is a millisecond-precision timestamp.
	// The time stamp of each block must be later than the previous block's time stamp.
	// Generally, the difference between two blocks' time stamps is about 15 seconds and imprecision is allowed.
	// The height of the block must be exactly equal to the height of the previous block plus 1.
	Timestamp uint64

	// Nonce is block random number.
	Nonce uint64
	// index/height of the block
	Index uint32

	// Contract address of the next miner
	NextConsensus util.Uint160

	// Primary index
	PrimaryIndex byte
}

// baseAux is used to marshal/unmarshal to/from JSON, it's almost the same
// as original Base, but with Nonce and NextConsensus fields differing and
// Hash added.
type baseAux struct {
	Hash          util.Uint256 `json:"hash"`
	Version       uint32       `json:"version"`
	PrevHash      util.Uint256 `json:"previousblockhash"`
	MerkleRoot    util.Uint256 `json:"merkleroot"`
	Timestamp     uint64       `json:"time"`
	Nonce         string       `json:"nonce"`
	Index         uint32       `json:"index"`
	NextConsensus string       `json:"nextconsensus"`
	PrimaryIndex  byte         `json:"primary"`
}

// Hash returns the hash of the block. The hash is calculated over the
// header fields on each call, headers are not supposed to be changed after
// they become a part of some chain.
func (b *Header) Hash() util.Uint256 {
	buf := io.NewBufBinWriter()
	b.EncodeBinary(buf.BinWriter)
	if buf.Err != nil {
		panic(buf.Err)
	}
	return hash.Sha256(buf.Bytes())
}

// GetIndex returns the height of the block.
func (b *Header) GetIndex() uint32 {
	return b.Index
}

// GetPrevHash returns the hash of the parent block.
func (b *Header) GetPrevHash() util.Uint256 {
	return b.PrevHash
}

// DecodeBinary implements the io.Serializable interface.
func (b *Header) DecodeBinary(br *io.BinReader) {
	b.Version = br.ReadU32LE()
	b.PrevHash.DecodeBinary(br)
	b.MerkleRoot.DecodeBinary(br)
	b.Timestamp = br.ReadU64LE()
	b.Nonce = br.ReadU64LE()
	b.Index = br.ReadU32LE()
	b.PrimaryIndex = br.ReadB()
	b.NextConsensus.DecodeBinary(br)
}

// EncodeBinary implements the io.Serializable interface.
func (b *Header) EncodeBinary(bw *io.BinWriter) {
	bw.WriteU32LE(b.Version)
	b.PrevHash.EncodeBinary(bw)
	b.MerkleRoot.EncodeBinary(bw)
	bw.WriteU64LE(b.Timestamp)
	bw.WriteU64LE(b.Nonce)
	bw.WriteU32LE(b.Index)
	bw.WriteB(b.PrimaryIndex)
	b.NextConsensus.EncodeBinary(bw)
}

// MarshalJSON implements the json.Marshaler interface.
func (b Header) MarshalJSON() ([]byte, error) {
	aux := b.toAux()
	return json.Marshal(aux)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Header) UnmarshalJSON(data []byte) error {
	aux := new(baseAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return b.fromAux(aux)
}

func (b *Header) toAux() baseAux {
	return baseAux{
		Hash:          b.Hash(),
		Version:       b.Version,
		PrevHash:      b.PrevHash,
		MerkleRoot:    b.MerkleRoot,
		Timestamp:     b.Timestamp,
		Nonce:         fmt.Sprintf("%016X", b.Nonce),
		Index:         b.Index,
		PrimaryIndex:  b.PrimaryIndex,
		NextConsensus: address.Uint160ToString(b.NextConsensus),
	}
}

func (b *Header) fromAux(aux *baseAux) error {
	var err error
	var nonce uint64
	var nextC util.Uint160

	if len(aux.Nonce) != 0 {
		nonce, err = strconv.ParseUint(aux.Nonce, 16, 64)
		if err != nil {
			return err
		}
	}

	nextC, err = address.StringToUint160(aux.NextConsensus)
	if err != nil {
		return err
	}

	b.Version = aux.Version
	b.PrevHash = aux.PrevHash
	b.MerkleRoot = aux.MerkleRoot
	b.Timestamp = aux.Timestamp
	b.Nonce = nonce
	b.Index = aux.Index
	b.PrimaryIndex = aux.PrimaryIndex
	b.NextConsensus = nextC
	if !aux.Hash.Equals(b.Hash()) {
		return errors.New("json 'hash' doesn't match block hash")
	}
	return nil
}
