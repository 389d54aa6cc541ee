package transaction

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

const (
	// MaxScriptLength is the limit for transaction's script length.
	MaxScriptLength = 65535
	// DummyVersion represents reserved transaction version for trimmed transactions.
	DummyVersion = 255
)

// ErrInvalidVersion is returned when a transaction version is not supported.
var ErrInvalidVersion = errors.New("only version 0 is supported")

// ErrNegativeFee is returned for transactions with a negative system or
// network fee.
var ErrNegativeFee = errors.New("negative fee")

// Transaction is a process recorded in the Neo blockchain.
type Transaction struct {
	// The trading version which is currently 0.
	Version uint8

	// Random number to avoid hash collision.
	Nonce uint32

	// Fee to be burned.
	SystemFee int64

	// Fee to be distributed to consensus nodes.
	NetworkFee int64

	// Maximum blockchain height exceeding which
	// transaction should fail verification.
	ValidUntilBlock uint32

	// Account paying fees for this transaction.
	Sender util.Uint160

	// Code to run in NeoVM for this transaction.
	Script []byte
}

// New returns a new transaction to execute the given script and pay the given
// system fee.
func New(script []byte, gas int64) *Transaction {
	return &Transaction{
		Version:   0,
		Nonce:     0,
		Script:    script,
		SystemFee: gas,
	}
}

// Hash returns the hash of the transaction. The hash is calculated over
// the binary form on each call, transactions are expected to be treated
// as immutable values once they're a part of some block.
func (t *Transaction) Hash() util.Uint256 {
	buf := io.NewBufBinWriter()
	t.EncodeBinary(buf.BinWriter)
	if buf.Err != nil {
		panic(buf.Err)
	}
	return hash.Sha256(buf.Bytes())
}

// DecodeBinary implements the io.Serializable interface.
func (t *Transaction) DecodeBinary(br *io.BinReader) {
	t.Version = br.ReadB()
	t.Nonce = br.ReadU32LE()
	t.SystemFee = int64(br.ReadU64LE())
	t.NetworkFee = int64(br.ReadU64LE())
	t.ValidUntilBlock = br.ReadU32LE()
	t.Sender.DecodeBinary(br)
	t.Script = br.ReadVarBytes(MaxScriptLength)
	if br.Err == nil {
		br.Err = t.isValid()
	}
}

// EncodeBinary implements the io.Serializable interface.
func (t *Transaction) EncodeBinary(bw *io.BinWriter) {
	bw.WriteB(t.Version)
	bw.WriteU32LE(t.Nonce)
	bw.WriteU64LE(uint64(t.SystemFee))
	bw.WriteU64LE(uint64(t.NetworkFee))
	bw.WriteU32LE(t.ValidUntilBlock)
	t.Sender.EncodeBinary(bw)
	bw.WriteVarBytes(t.Script)
}

// isValid checks whether decoded/unmarshalled transaction has all fields valid.
func (t *Transaction) isValid() error {
	if t.Version > 0 && t.Version != DummyVersion {
		return ErrInvalidVersion
	}
	if t.SystemFee < 0 || t.NetworkFee < 0 {
		return ErrNegativeFee
	}
	if len(t.Script) == 0 {
		return errors.New("no script")
	}
	return nil
}

// transactionJSON is a wrapper for Transaction and
// used for correct marhalling of transaction.Data.
type transactionJSON struct {
	TxID            util.Uint256 `json:"hash"`
	Version         uint8        `json:"version"`
	Nonce           uint32       `json:"nonce"`
	Sender          string       `json:"sender"`
	SystemFee       string       `json:"sysfee"`
	NetworkFee      string       `json:"netfee"`
	ValidUntilBlock uint32       `json:"validuntilblock"`
	Script          []byte       `json:"script"`
}

// MarshalJSON implements the json.Marshaler interface.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	tx := transactionJSON{
		TxID:            t.Hash(),
		Version:         t.Version,
		Nonce:           t.Nonce,
		Sender:          address.Uint160ToString(t.Sender),
		SystemFee:       strconv.FormatInt(t.SystemFee, 10),
		NetworkFee:      strconv.FormatInt(t.NetworkFee, 10),
		ValidUntilBlock: t.ValidUntilBlock,
		Script:          t.Script,
	}
	return json.Marshal(tx)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	tx := new(transactionJSON)
	if err := json.Unmarshal(data, tx); err != nil {
		return err
	}
	sender, err := address.StringToUint160(tx.Sender)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	sysFee, err := strconv.ParseInt(tx.SystemFee, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sysfee: %w", err)
	}
	netFee, err := strconv.ParseInt(tx.NetworkFee, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid netfee: %w", err)
	}
	t.Version = tx.Version
	t.Nonce = tx.Nonce
	t.Sender = sender
	t.SystemFee = sysFee
	t.NetworkFee = netFee
	t.ValidUntilBlock = tx.ValidUntilBlock
	t.Script = tx.Script
	if t.Hash() != tx.TxID {
		return errors.New("txid doesn't match transaction hash")
	}

	return t.isValid()
}
