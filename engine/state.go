package engine

import "fmt"

// State is the lifecycle state of an Engine.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
