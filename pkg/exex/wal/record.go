package wal

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/exex"
	"github.com/nspcc-dev/neo-exex/pkg/exex/bincompat"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/pierrec/lz4"
	"github.com/twmb/murmur3"
)

const (
	// MaxRecordSize is the maximum size of a single uncompressed record.
	MaxRecordSize = 64 * 1024 * 1024

	flagCompressed byte = 1 << 0

	// checksumSeed is the murmur3 seed used for record checksums.
	checksumSeed = 0x6e656f78
)

var (
	// ErrChecksumMismatch is returned when a stored record is corrupted.
	ErrChecksumMismatch = errors.New("record checksum mismatch")
	// ErrIDMismatch is returned when a stored record has an ID different
	// from the one it's stored under.
	ErrIDMismatch = errors.New("record ID mismatch")
)

// record is a stored WAL entry. The notification is encoded with the
// bincompat strategy.
type record[P primitives.Primitives] struct {
	ID           uint64
	Notification exex.Notification[P]
}

// EncodeBinary implements the io.Serializable interface.
func (r *record[P]) EncodeBinary(w *io.BinWriter) {
	w.WriteU64LE(r.ID)
	bincompat.As[P]{}.EncodeBinaryAs(w, r.Notification)
}

// DecodeBinary implements the io.Serializable interface.
func (r *record[P]) DecodeBinary(br *io.BinReader) {
	r.ID = br.ReadU64LE()
	r.Notification = bincompat.As[P]{}.DecodeBinaryAs(br)
}

// header is the uncompressed part of a stored record, it allows to restore
// the index without decoding notifications.
type header struct {
	Flags byte
	// Low and High are block indexes of the committed chain or of the
	// reverted one if there is no committed chain.
	Low  uint32
	High uint32
	Kind exex.Kind
}

// EncodeBinary implements the io.Serializable interface.
func (h *header) EncodeBinary(w *io.BinWriter) {
	w.WriteB(h.Flags)
	w.WriteU32LE(h.Low)
	w.WriteU32LE(h.High)
	w.WriteB(byte(h.Kind))
}

// DecodeBinary implements the io.Serializable interface.
func (h *header) DecodeBinary(r *io.BinReader) {
	h.Flags = r.ReadB()
	h.Low = r.ReadU32LE()
	h.High = r.ReadU32LE()
	h.Kind = exex.Kind(r.ReadB())
	if r.Err == nil && !h.Kind.IsValid() {
		r.Err = fmt.Errorf("%w: %d", exex.ErrUnknownKind, byte(h.Kind))
	}
}

func newHeader[P primitives.Primitives](n exex.Notification[P]) header {
	c := n.CommittedChain()
	if c == nil {
		c = n.RevertedChain()
	}
	low, high := c.Range()
	return header{Low: low, High: high, Kind: n.Kind()}
}

// encodeRecord returns a stored representation of the notification with
// the given ID: header, murmur3 checksum of the payload, payload. Payload
// is the lz4-compressed record prefixed with its original length when
// compression is enabled and effective.
func encodeRecord[P primitives.Primitives](id uint64, n exex.Notification[P], compress bool) ([]byte, header, error) {
	w := io.NewBufBinWriter()
	rec := &record[P]{ID: id, Notification: n}
	rec.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return nil, header{}, w.Err
	}
	raw := w.Bytes()
	if len(raw) > MaxRecordSize {
		return nil, header{}, fmt.Errorf("record is too big: %d", len(raw))
	}

	h := newHeader(n)
	payload := raw
	if compress {
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		size, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, header{}, fmt.Errorf("compression failed: %w", err)
		}
		// Zero size means the data is incompressible.
		if size != 0 {
			pw := io.NewBufBinWriter()
			pw.WriteVarUint(uint64(len(raw)))
			pw.WriteBytes(dst[:size])
			payload = pw.Bytes()
			h.Flags |= flagCompressed
		}
	}

	res := io.NewBufBinWriter()
	h.EncodeBinary(res.BinWriter)
	res.WriteU32LE(murmur3.SeedSum32(checksumSeed, payload))
	res.WriteBytes(payload)
	return res.Bytes(), h, nil
}

// decodeHeader decodes the header of a stored record.
func decodeHeader(data []byte) (header, error) {
	var h header
	r := io.NewBinReaderFromBuf(data)
	h.DecodeBinary(r)
	return h, r.Err
}

// decodeRecord checks and decodes a stored record with the given ID.
func decodeRecord[P primitives.Primitives](id uint64, data []byte) (exex.Notification[P], error) {
	var (
		h   header
		r   = io.NewBinReaderFromBuf(data)
		sum uint32
	)
	h.DecodeBinary(r)
	sum = r.ReadU32LE()
	if r.Err != nil {
		return nil, r.Err
	}
	payload := data[len(data)-r.Len():]
	if murmur3.SeedSum32(checksumSeed, payload) != sum {
		return nil, ErrChecksumMismatch
	}
	raw := payload
	if h.Flags&flagCompressed != 0 {
		pr := io.NewBinReaderFromBuf(payload)
		size := pr.ReadVarUint()
		if pr.Err != nil {
			return nil, pr.Err
		}
		if size > MaxRecordSize {
			return nil, fmt.Errorf("%w: record size %d", io.ErrTooBig, size)
		}
		raw = make([]byte, size)
		n, err := lz4.UncompressBlock(payload[len(payload)-pr.Len():], raw)
		if err != nil {
			return nil, fmt.Errorf("decompression failed: %w", err)
		}
		if uint64(n) != size {
			return nil, fmt.Errorf("decompressed %d bytes instead of %d", n, size)
		}
	}

	rec := new(record[P])
	rr := io.NewBinReaderFromBuf(raw)
	rec.DecodeBinary(rr)
	if rr.Err != nil {
		return nil, rr.Err
	}
	if rr.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", bincompat.ErrTrailingData, rr.Len())
	}
	if rec.ID != id {
		return nil, fmt.Errorf("%w: %d instead of %d", ErrIDMismatch, rec.ID, id)
	}
	if k := rec.Notification.Kind(); k != h.Kind {
		return nil, fmt.Errorf("header kind %s doesn't match %s", h.Kind, k)
	}
	return rec.Notification, nil
}
