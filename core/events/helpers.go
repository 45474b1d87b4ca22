package events

import (
	"math/big"
	"strconv"

	"qamarket/core/types"
	"qamarket/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func addrToString(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.QAPrefix, addr[:]).String()
}

func boolToString(v bool) string {
	return strconv.FormatBool(v)
}

// typedEvent pairs a raw ledger event with its type tag so engines can emit
// through the generic Emitter interface.
type typedEvent struct {
	evt *types.Event
}

func (t typedEvent) EventType() string {
	if t.evt == nil {
		return ""
	}
	return t.evt.Type
}

// Raw exposes the wrapped ledger event.
func (t typedEvent) Raw() *types.Event { return t.evt }

// Wrap adapts a raw event for emission.
func Wrap(evt *types.Event) Event { return typedEvent{evt: evt} }

// RawEvent unwraps events produced by Wrap or the typed constructors. The
// second return is false when the event does not carry a raw payload.
func RawEvent(evt Event) (*types.Event, bool) {
	switch e := evt.(type) {
	case typedEvent:
		return e.Raw(), e.evt != nil
	case interface{ Event() *types.Event }:
		raw := e.Event()
		return raw, raw != nil
	default:
		return nil, false
	}
}
