package ws

import "sync/atomic"

// state is the WebSocket transport's connection state machine (spec.md
// §4.5):
//
//	DISCONNECTED → CONNECTING → CONNECTED → {
//	    RECONNECTING → CONNECTING | DISCONNECTING → DISCONNECTED }
type state int32

const (
	disconnected state = iota
	connecting
	connected
	reconnecting
	disconnecting
)

func (s state) String() string {
	switch s {
	case disconnected:
		return "disconnected"
	case connecting:
		return "connecting"
	case connected:
		return "connected"
	case reconnecting:
		return "reconnecting"
	case disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) Load() state     { return state(b.v.Load()) }
func (b *stateBox) Store(s state)   { b.v.Store(int32(s)) }
func (b *stateBox) Is(s state) bool { return b.Load() == s }
