package state

import (
	"errors"
	"strings"
)

// VMState represents the final state of a NeoVM script execution.
type VMState uint8

// Available VM states.
const (
	// VMNone represents the default state.
	VMNone VMState = 0
	// VMHalt represents the state of a successfully finished execution.
	VMHalt VMState = 1
	// VMFault represents the state of a failed execution.
	VMFault VMState = 2
	// VMBreak represents a break state.
	VMBreak VMState = 4
)

// String implements the fmt.Stringer interface.
func (s VMState) String() string {
	switch s {
	case VMNone:
		return "NONE"
	case VMHalt:
		return "HALT"
	case VMFault:
		return "FAULT"
	case VMBreak:
		return "BREAK"
	}
	return "UNKNOWN"
}

// VMStateFromString converts a string into the VMState.
func VMStateFromString(s string) (VMState, error) {
	switch strings.ToUpper(s) {
	case "NONE":
		return VMNone, nil
	case "HALT":
		return VMHalt, nil
	case "FAULT":
		return VMFault, nil
	case "BREAK":
		return VMBreak, nil
	}
	return VMNone, errors.New("unknown VM state")
}

// MarshalJSON implements the json.Marshaler interface.
func (s VMState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *VMState) UnmarshalJSON(data []byte) (err error) {
	l := len(data)
	if l < 2 || data[0] != '"' || data[l-1] != '"' {
		return errors.New("wrong format")
	}

	*s, err = VMStateFromString(string(data[1 : l-1]))
	return
}
