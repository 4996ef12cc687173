// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package agent

import "sync/atomic"

// State names the agent's lifecycle state (spec.md §4.2 State machine).
type State int32

const (
	// StateInitializing is the state from process start until the
	// persisted mirror has been read.
	StateInitializing State = iota
	// StateRestoring is entered once the mirror is read and surfaces 1+2
	// are being reapplied; IPC is not yet accepted.
	StateRestoring
	// StateServing is the only state that accepts IPC requests.
	StateServing
	// StateDraining is entered on a termination signal: the socket is
	// closed and state flushed before exit.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRestoring:
		return "restoring"
	case StateServing:
		return "serving"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) Load() State     { return State(b.v.Load()) }
func (b *stateBox) Store(s State)   { b.v.Store(int32(s)) }
