package chain

import (
	"encoding/json"
	"fmt"

	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/util"
)

// chainAuxOut is used for JSON marshalling.
type chainAuxOut struct {
	Blocks    []primitives.Block     `json:"blocks"`
	Receipts  [][]primitives.Receipt `json:"receipts"`
	Storage   []StorageChange        `json:"storage"`
	StateRoot *util.Uint256          `json:"stateroot"`
}

// chainAuxIn is used for JSON unmarshalling.
type chainAuxIn struct {
	Blocks    []json.RawMessage   `json:"blocks"`
	Receipts  [][]json.RawMessage `json:"receipts"`
	Storage   []StorageChange     `json:"storage"`
	StateRoot *util.Uint256       `json:"stateroot"`
}

// MarshalJSON implements the json.Marshaler interface. Receipts are
// represented as a list of lists, one per block.
func (c *Chain[P]) MarshalJSON() ([]byte, error) {
	cc := NewCompat(c)
	aux := chainAuxOut{
		Blocks:    cc.Blocks,
		Receipts:  cc.Receipts,
		Storage:   cc.Storage,
		StateRoot: cc.StateRoot,
	}
	for i := range aux.Receipts {
		if aux.Receipts[i] == nil {
			aux.Receipts[i] = []primitives.Receipt{}
		}
	}
	if aux.Storage == nil {
		aux.Storage = []StorageChange{}
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (c *Chain[P]) UnmarshalJSON(data []byte) error {
	var (
		p   P
		aux chainAuxIn
	)
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	cc := &Compat[P]{
		Blocks:    make([]primitives.Block, len(aux.Blocks)),
		Receipts:  make([][]primitives.Receipt, len(aux.Receipts)),
		StateRoot: aux.StateRoot,
	}
	for i := range aux.Blocks {
		cc.Blocks[i] = p.NewBlock()
		if err := json.Unmarshal(aux.Blocks[i], cc.Blocks[i]); err != nil {
			return fmt.Errorf("block #%d: %w", i, err)
		}
	}
	for i := range aux.Receipts {
		if len(aux.Receipts[i]) == 0 {
			continue
		}
		cc.Receipts[i] = make([]primitives.Receipt, len(aux.Receipts[i]))
		for j := range aux.Receipts[i] {
			cc.Receipts[i][j] = p.NewReceipt()
			if err := json.Unmarshal(aux.Receipts[i][j], cc.Receipts[i][j]); err != nil {
				return fmt.Errorf("receipt #%d of block #%d: %w", j, i, err)
			}
		}
	}
	if len(aux.Storage) != 0 {
		cc.Storage = aux.Storage
	}
	res, err := cc.Chain()
	if err != nil {
		return err
	}
	*c = *res
	return nil
}
