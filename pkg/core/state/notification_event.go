package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/util"
)

const (
	// MaxEventNameLen is the maximum length of a notification name.
	MaxEventNameLen = 32
	// MaxEventPayloadLen is the maximum length of a serialized notification
	// payload.
	MaxEventPayloadLen = 1024 * 1024
	// MaxEventsPerExecution is the maximum number of notifications a single
	// execution can emit.
	MaxEventsPerExecution = 512
)

// ErrEventTooBig is set on the writer when a notification or an execution
// result exceeds the limits DecodeBinary enforces.
var ErrEventTooBig = errors.New("event exceeds decoding limits")

// NotificationEvent is a tuple of the scripthash that has emitted the Payload as a
// notification and the payload itself.
type NotificationEvent struct {
	ScriptHash util.Uint160 `json:"contract"`
	Name       string       `json:"eventname"`
	Payload    []byte       `json:"state"`
}

// AppExecResult represents the result of the transaction script execution,
// gathering together all resulting notifications, state and other metadata.
// It's the Neo flavour of a receipt.
type AppExecResult struct {
	Container      util.Uint256
	VMState        VMState
	GasConsumed    int64
	Events         []NotificationEvent
	FaultException string
}

// EncodeBinary implements the Serializable interface.
func (ne *NotificationEvent) EncodeBinary(w *io.BinWriter) {
	if w.Err != nil {
		return
	}
	if len(ne.Name) > MaxEventNameLen {
		w.Err = fmt.Errorf("%w: name length %d exceeds %d", ErrEventTooBig, len(ne.Name), MaxEventNameLen)
		return
	}
	if len(ne.Payload) > MaxEventPayloadLen {
		w.Err = fmt.Errorf("%w: payload length %d exceeds %d", ErrEventTooBig, len(ne.Payload), MaxEventPayloadLen)
		return
	}
	ne.ScriptHash.EncodeBinary(w)
	w.WriteString(ne.Name)
	w.WriteVarBytes(ne.Payload)
}

// DecodeBinary implements the Serializable interface.
func (ne *NotificationEvent) DecodeBinary(r *io.BinReader) {
	ne.ScriptHash.DecodeBinary(r)
	ne.Name = r.ReadString(MaxEventNameLen)
	ne.Payload = r.ReadVarBytes(MaxEventPayloadLen)
}

// TxHash returns the hash of the transaction this result belongs to.
func (aer *AppExecResult) TxHash() util.Uint256 {
	return aer.Container
}

// GasUsed returns the amount of GAS burnt by the execution.
func (aer *AppExecResult) GasUsed() int64 {
	return aer.GasConsumed
}

// EncodeBinary implements the Serializable interface.
func (aer *AppExecResult) EncodeBinary(w *io.BinWriter) {
	if w.Err != nil {
		return
	}
	if len(aer.Events) > MaxEventsPerExecution {
		w.Err = fmt.Errorf("%w: %d events exceed %d", ErrEventTooBig, len(aer.Events), MaxEventsPerExecution)
		return
	}
	if aer.GasConsumed < 0 {
		w.Err = errors.New("negative gas consumed")
		return
	}
	aer.Container.EncodeBinary(w)
	w.WriteB(byte(aer.VMState))
	w.WriteU64LE(uint64(aer.GasConsumed))
	io.WriteArray(w, aer.Events)
	w.WriteString(aer.FaultException)
}

// DecodeBinary implements the Serializable interface.
func (aer *AppExecResult) DecodeBinary(r *io.BinReader) {
	aer.Container.DecodeBinary(r)
	aer.VMState = VMState(r.ReadB())
	aer.GasConsumed = int64(r.ReadU64LE())
	aer.Events = io.ReadArray[NotificationEvent](r, MaxEventsPerExecution)
	aer.FaultException = r.ReadString()
	if r.Err == nil && aer.GasConsumed < 0 {
		r.Err = errors.New("negative gas consumed")
	}
}

// appExecResultAux is an auxiliary struct for JSON marshalling.
type appExecResultAux struct {
	Container      util.Uint256        `json:"container"`
	VMState        VMState             `json:"vmstate"`
	GasConsumed    string              `json:"gasconsumed"`
	Events         []NotificationEvent `json:"notifications"`
	FaultException *string             `json:"exception"`
}

// MarshalJSON implements the json.Marshaler interface.
func (aer *AppExecResult) MarshalJSON() ([]byte, error) {
	var exception *string
	if aer.FaultException != "" {
		exception = &aer.FaultException
	}
	events := aer.Events
	if events == nil {
		events = []NotificationEvent{}
	}
	return json.Marshal(&appExecResultAux{
		Container:      aer.Container,
		VMState:        aer.VMState,
		GasConsumed:    strconv.FormatInt(aer.GasConsumed, 10),
		Events:         events,
		FaultException: exception,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (aer *AppExecResult) UnmarshalJSON(data []byte) error {
	aux := new(appExecResultAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	gas, err := strconv.ParseInt(aux.GasConsumed, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid gasconsumed: %w", err)
	}
	aer.Container = aux.Container
	aer.VMState = aux.VMState
	aer.GasConsumed = gas
	aer.Events = nil
	if len(aux.Events) != 0 {
		aer.Events = aux.Events
	}
	aer.FaultException = ""
	if aux.FaultException != nil {
		aer.FaultException = *aux.FaultException
	}
	return nil
}
