/*
NAME
  term.go

DESCRIPTION
  The joint-termination rendezvous shared by every pipeline stage. The
  original C++ engine keeps users/remaining/highest_pkt as global mutable
  state under one mutex (see spec Design Note 9); here that state lives in
  one Coordinator value owned by the Pipeline Controller, and each stage
  holds a *StageHandle rather than touching a package-level variable.
  Grounded on revid.Revid's err-chan/WaitGroup/stop-chan triad in
  revid/revid.go, generalized into an explicit rendezvous object.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package term implements the pipeline's termination coordinator: the
// individual/joint/ignore-joint rendezvous described in spec section 4.7.
package term

import (
	"fmt"
	"math"
	"sync"
)

// State is a stage's position in the termination state machine:
// Idle -> Running -> (IndividualEnd | JointRequested -> JointEnd) -> Exited.
type State int

const (
	Idle State = iota
	Running
	IndividualEnd
	JointRequested
	JointEnd
	Exited
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case IndividualEnd:
		return "IndividualEnd"
	case JointRequested:
		return "JointRequested"
	case JointEnd:
		return "JointEnd"
	case Exited:
		return "Exited"
	default:
		return "State(?)"
	}
}

// ErrInvalidTransition reports an attempt to move a stage into a state its
// current state cannot reach directly.
type ErrInvalidTransition struct {
	From, To State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("term: cannot transition from %s to %s", e.From, e.To)
}

// Coordinator holds the single process-wide (per pipeline run) rendezvous
// state: how many stages have opted into joint termination, how many of
// those remain, and the highest total-packet count any of them has
// observed at the moment it called JointTerminate. All three are guarded
// by one mutex, per spec section 4.7.
type Coordinator struct {
	mu          sync.Mutex
	users       int
	remaining   int
	highestPkt  uint64
	ignoreJoint bool
	done        chan struct{}
}

// NewCoordinator returns a fresh Coordinator for one pipeline run.
func NewCoordinator() *Coordinator { return &Coordinator{done: make(chan struct{})} }

// Done returns a channel that closes once every stage opted into joint
// termination (as of the last Arm call) has called JointTerminate. A
// Coordinator with no opted-in users never closes it. The Pipeline
// Controller watches this to know when to cancel every stage, including
// ones that never opted into joint termination themselves.
func (c *Coordinator) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// SetIgnoreJointTermination turns joint termination into individual
// termination process-wide: a stage's JointTerminate call still succeeds,
// but never contributes to or triggers the rendezvous.
func (c *Coordinator) SetIgnoreJointTermination(ignore bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ignoreJoint = ignore
}

// TotalPacketsBeforeJointTermination returns the highest totalPackets
// value observed across all joint users' JointTerminate calls once every
// opted-in stage has called it (remaining == 0). Before that point it
// returns math.MaxUint64, so callers comparing a stage's own packet count
// against the cutoff never cut off prematurely.
func (c *Coordinator) TotalPacketsBeforeJointTermination() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > 0 || c.users == 0 {
		return math.MaxUint64
	}
	return c.highestPkt
}

// NewStageHandle returns a handle bound to this coordinator for one
// pipeline stage. Stages start out not opted in to joint termination and
// in the Idle state.
func (c *Coordinator) NewStageHandle() *StageHandle {
	return &StageHandle{coord: c, state: Idle}
}

// StageHandle is the per-stage view of a Coordinator: the surface a
// plugin.Handle exposes to plugin code, plus the stage's own state-machine
// position.
type StageHandle struct {
	coord   *Coordinator
	mu      sync.Mutex
	optedIn bool
	state   State
}

// State returns the stage's current position in the termination state
// machine.
func (h *StageHandle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// OptedIn reports whether this stage is currently opted into the joint
// termination rendezvous.
func (h *StageHandle) OptedIn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.optedIn
}

// SetRunning transitions Idle -> Running. It is a no-op if already
// Running.
func (h *StageHandle) SetRunning() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case Idle:
		h.state = Running
		return nil
	case Running:
		return nil
	default:
		return &ErrInvalidTransition{From: h.state, To: Running}
	}
}

// UseJointTermination opts this stage in or out of the joint termination
// rendezvous, adjusting the coordinator's user count accordingly.
func (h *StageHandle) UseJointTermination(on bool) {
	h.mu.Lock()
	wasIn := h.optedIn
	h.optedIn = on
	h.mu.Unlock()

	if on == wasIn {
		return
	}
	h.coord.mu.Lock()
	defer h.coord.mu.Unlock()
	if on {
		h.coord.users++
	} else {
		h.coord.users--
	}
}

// RequestIndividualEnd transitions Running -> IndividualEnd. The stage
// drains its current window and exits; the rest of the pipeline continues
// unaffected.
func (h *StageHandle) RequestIndividualEnd() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Running {
		return &ErrInvalidTransition{From: h.state, To: IndividualEnd}
	}
	h.state = IndividualEnd
	return nil
}

// JointTerminate declares that this stage has reached its intended
// stopping point at the given total packet count. It requires the stage
// to be opted in at the time of the call; if SetIgnoreJointTermination(true)
// is in effect process-wide, the call still transitions this stage's own
// state machine but never decrements the coordinator's remaining count.
func (h *StageHandle) JointTerminate(totalPackets uint64) error {
	h.mu.Lock()
	if h.state != Running {
		defer h.mu.Unlock()
		return &ErrInvalidTransition{From: h.state, To: JointRequested}
	}
	if !h.optedIn {
		defer h.mu.Unlock()
		return fmt.Errorf("term: JointTerminate called by a stage that is not opted in")
	}
	h.state = JointRequested
	h.mu.Unlock()

	h.coord.mu.Lock()
	if !h.coord.ignoreJoint {
		h.coord.remaining--
		if totalPackets > h.coord.highestPkt {
			h.coord.highestPkt = totalPackets
		}
		if h.coord.remaining == 0 {
			select {
			case <-h.coord.done:
			default:
				close(h.coord.done)
			}
		}
	}
	h.coord.mu.Unlock()

	h.mu.Lock()
	h.state = JointEnd
	h.mu.Unlock()
	return nil
}

// SetExited transitions into the terminal Exited state from any
// non-Idle state.
func (h *StageHandle) SetExited() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Idle {
		return &ErrInvalidTransition{From: h.state, To: Exited}
	}
	h.state = Exited
	return nil
}

// opt-in bookkeeping must happen before the rendezvous begins: Coordinator
// tracks remaining == users at the moment the pipeline starts running,
// which the controller establishes by calling this once all stages have
// called UseJointTermination during setup.
func (c *Coordinator) arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = c.users
	if c.remaining == 0 {
		// No stages opted in: nothing to rendezvous on, so Done must
		// never fire.
		c.done = make(chan struct{})
	}
}

// Arm freezes the current opt-in count as the rendezvous target. The
// Pipeline Controller calls this once, after every stage has had a chance
// to call UseJointTermination during startup and before any stage begins
// processing packets.
func (c *Coordinator) Arm() { c.arm() }

// Users reports how many stages are currently opted into joint
// termination.
func (c *Coordinator) Users() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users
}

// Remaining reports how many opted-in stages have yet to call
// JointTerminate since Arm was called.
func (c *Coordinator) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}
