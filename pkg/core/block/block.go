package block

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/core/transaction"
	"github.com/nspcc-dev/neo-exex/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/util"
)

// MaxTransactionsPerBlock is the maximum number of transactions per block.
const MaxTransactionsPerBlock = 65535

// ErrMaxContentsPerBlock is returned when the maximum number of contents per block is reached.
var ErrMaxContentsPerBlock = errors.New("the number of contents exceeds the maximum number of contents per block")

// ErrMerkleMismatch is returned when the decoded merkle root doesn't match
// the block's transactions.
var ErrMerkleMismatch = errors.New("merkle root mismatch")

// Block represents one block in the chain.
type Block struct {
	// The base of the block.
	Header

	// Transaction list.
	Transactions []*transaction.Transaction
}

// auxBlockOut is used for JSON i/o.
type auxBlockOut struct {
	Transactions []*transaction.Transaction `json:"tx"`
}

// auxBlockIn is used for JSON i/o.
type auxBlockIn struct {
	Transactions []json.RawMessage `json:"tx"`
}

// New creates a new blank block.
func New() *Block {
	return &Block{}
}

// ComputeMerkleRoot computes Merkle tree root hash based on actual block's data.
func (b *Block) ComputeMerkleRoot() util.Uint256 {
	hashes := make([]util.Uint256, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}

	return hash.CalcMerkleRoot(hashes)
}

// RebuildMerkleRoot rebuilds the merkleroot of the block.
func (b *Block) RebuildMerkleRoot() {
	b.MerkleRoot = b.ComputeMerkleRoot()
}

// GetTransactions returns block transactions as generic primitives.
func (b *Block) GetTransactions() []primitives.Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	res := make([]primitives.Transaction, len(b.Transactions))
	for i := range b.Transactions {
		res[i] = b.Transactions[i]
	}
	return res
}

// DecodeBinary decodes the block from the given BinReader, implementing
// Serializable interface.
func (b *Block) DecodeBinary(br *io.BinReader) {
	b.Header.DecodeBinary(br)
	contentsCount := br.ReadLen(1, MaxTransactionsPerBlock)
	if br.Err != nil {
		if errors.Is(br.Err, io.ErrTooBig) {
			br.Err = fmt.Errorf("%w: %v", ErrMaxContentsPerBlock, br.Err)
		}
		return
	}
	var txes []*transaction.Transaction
	if contentsCount > 0 {
		txes = make([]*transaction.Transaction, contentsCount)
	}
	for i := range txes {
		tx := &transaction.Transaction{}
		tx.DecodeBinary(br)
		if br.Err != nil {
			return
		}
		txes[i] = tx
	}
	b.Transactions = txes
	if b.ComputeMerkleRoot() != b.MerkleRoot {
		br.Err = ErrMerkleMismatch
	}
}

// EncodeBinary encodes the block to the given BinWriter, implementing
// Serializable interface.
func (b *Block) EncodeBinary(bw *io.BinWriter) {
	if bw.Err == nil && len(b.Transactions) > MaxTransactionsPerBlock {
		bw.Err = fmt.Errorf("%w: %d", ErrMaxContentsPerBlock, len(b.Transactions))
		return
	}
	b.Header.EncodeBinary(bw)
	bw.WriteVarUint(uint64(len(b.Transactions)))
	for i := 0; i < len(b.Transactions); i++ {
		b.Transactions[i].EncodeBinary(bw)
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (b Block) MarshalJSON() ([]byte, error) {
	auxb, err := json.Marshal(auxBlockOut{
		Transactions: b.Transactions,
	})
	if err != nil {
		return nil, err
	}
	baseBytes, err := json.Marshal(b.Header)
	if err != nil {
		return nil, err
	}

	// Stitch them together.
	if baseBytes[len(baseBytes)-1] != '}' || auxb[0] != '{' {
		return nil, errors.New("can't merge internal jsons")
	}
	baseBytes[len(baseBytes)-1] = ','
	baseBytes = append(baseBytes, auxb[1:]...)
	return baseBytes, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Block) UnmarshalJSON(data []byte) error {
	// As Base and auxb are at the same level in json,
	// do unmarshalling separately for both structs.
	auxb := new(auxBlockIn)
	err := json.Unmarshal(data, auxb)
	if err != nil {
		return err
	}
	err = json.Unmarshal(data, &b.Header)
	if err != nil {
		return err
	}
	var txes []*transaction.Transaction
	if len(auxb.Transactions) != 0 {
		txes = make([]*transaction.Transaction, 0, len(auxb.Transactions))
		for _, txBytes := range auxb.Transactions {
			tx := new(transaction.Transaction)
			err = tx.UnmarshalJSON(txBytes)
			if err != nil {
				return err
			}
			txes = append(txes, tx)
		}
	}
	b.Transactions = txes
	if b.ComputeMerkleRoot() != b.MerkleRoot {
		return ErrMerkleMismatch
	}
	return nil
}
