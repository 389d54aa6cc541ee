package exex

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is a notification variant. Values are used as binary tags and must
// never change.
type Kind byte

// Notification kinds.
const (
	KindCommitted Kind = 0
	KindReorged   Kind = 1
	KindReverted  Kind = 2
)

// ErrUnknownKind is returned for unknown notification kinds.
var ErrUnknownKind = errors.New("unknown notification kind")

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindCommitted:
		return "ChainCommitted"
	case KindReorged:
		return "ChainReorged"
	case KindReverted:
		return "ChainReverted"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// IsValid checks whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	return k <= KindReverted
}

// KindFromString converts a string representation of a kind back into it.
func KindFromString(s string) (Kind, error) {
	for k := KindCommitted; k <= KindReverted; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalJSON implements the json.Marshaler interface.
func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, byte(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	res, err := KindFromString(s)
	if err != nil {
		return err
	}
	*k = res
	return nil
}
