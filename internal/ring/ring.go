/*
NAME
  ring.go

DESCRIPTION
  The packet ring: a fixed-size circular buffer shared by one input stage
  and an ordered chain of processor/output stages, each advancing through
  the buffer at its own pace. A slot cannot be overwritten by the
  producer until every stage has released it, and a stage can never read
  ahead of the producer or ahead of an already-committed write, which
  together give the ring ordering and no-overwrite properties from spec
  section 8.

  Grounded on the buffered-channel-of-fixed-capacity pattern revid.Revid
  builds its filter chain on (revid/pipeline.go), generalized from a
  single-consumer channel into a multi-stage shared buffer with explicit
  per-stage cursors, since the spec requires every stage to see every
  packet rather than distributing packets across consumers.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ring implements the pipeline's packet ring buffer: one
// producer cursor and N chained stage cursors (each stage reads only what
// the stage before it has released) sharing one fixed-size slot array,
// per spec section 5.
package ring

import (
	"fmt"
	"sync"

	"github.com/ausocean/tsp/internal/tspacket"
)

// ErrClosed is returned by StageAcquire once the ring is closed and the
// calling stage has drained every packet the producer committed before
// closing.
var ErrClosed = fmt.Errorf("ring: closed and drained")

// Ring is a fixed-capacity circular buffer of tspacket.Packet slots
// shared between one producer (the input stage) and a fixed number of
// consumer stages, each tracked by its own monotonic cursor.
type Ring struct {
	mu         sync.Mutex
	producerOK *sync.Cond // signalled when a stage releases a slot
	stageOK    []*sync.Cond

	slots []tspacket.Packet

	write  uint64   // count of packets committed by the producer
	read   []uint64 // per-stage count of packets released
	done   []bool   // per-stage: stage has exited and releases no more
	closed bool
}

// New returns a Ring with the given slot capacity, serving numStages
// chained consumer cursors. Capacity and numStages must both be at
// least 1.
func New(capacity, numStages int) *Ring {
	if capacity < 1 {
		panic("ring: capacity must be at least 1")
	}
	if numStages < 1 {
		panic("ring: numStages must be at least 1")
	}
	r := &Ring{
		slots: make([]tspacket.Packet, capacity),
		read:  make([]uint64, numStages),
		done:  make([]bool, numStages),
	}
	r.producerOK = sync.NewCond(&r.mu)
	r.stageOK = make([]*sync.Cond, numStages)
	for i := range r.stageOK {
		r.stageOK[i] = sync.NewCond(&r.mu)
	}
	return r
}

// Cap returns the ring's slot capacity.
func (r *Ring) Cap() int { return len(r.slots) }

// Stages returns the number of consumer cursors the ring serves.
func (r *Ring) Stages() int { return len(r.read) }

// minRead returns the slowest still-running stage cursor, the point
// before which every live stage has released every slot. A stage that
// has exited individually (done[i] true) no longer gates the overwrite
// point: its cursor is frozen and would otherwise stall the producer
// forever.
func (r *Ring) minRead() uint64 {
	min := r.write
	for i, v := range r.read {
		if r.done[i] {
			continue
		}
		if v < min {
			min = v
		}
	}
	return min
}

// effectiveLimit returns the sequence number stage's StageAcquire may
// read up to: the upstream stage's released cursor, or the producer's
// write cursor for stage 0. A stage that exited individually is
// transparent to this lookup, so the chain walks back past it to
// whichever live stage (or the producer) comes before it, per the
// pos_0 >= pos_1 >= ... >= pos_{n-1} ordering invariant.
func (r *Ring) effectiveLimit(stage int) uint64 {
	for j := stage - 1; j >= 0; j-- {
		if !r.done[j] {
			return r.read[j]
		}
	}
	return r.write
}

// InputReserve blocks until a slot is free for the producer to write
// into (i.e. the ring is not full) or the ring is closed, whichever
// comes first. ok is false if the ring was closed before a slot became
// available, in which case the caller must not write or call Commit.
// Otherwise the caller must populate the returned slot and then call
// Commit with the returned sequence number; InputReserve must not be
// called again before the matching Commit.
func (r *Ring) InputReserve() (slot *tspacket.Packet, seq uint64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.write-r.minRead() >= uint64(len(r.slots)) && !r.closed {
		r.producerOK.Wait()
	}
	if r.closed {
		return nil, 0, false
	}
	seq = r.write
	idx := int(seq % uint64(len(r.slots)))
	return &r.slots[idx], seq, true
}

// Commit publishes the slot reserved by InputReserve, making it visible
// to every stage cursor, and wakes any stage blocked waiting for new
// data.
func (r *Ring) Commit(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.write {
		panic("ring: Commit called out of order")
	}
	r.write++
	for _, c := range r.stageOK {
		c.Broadcast()
	}
}

// Close marks the ring closed: the producer will write no further
// packets. Stages continue to drain already-committed packets; once a
// stage's cursor catches up to the final write, its StageAcquire calls
// return ErrClosed.
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.producerOK.Broadcast()
	for _, c := range r.stageOK {
		c.Broadcast()
	}
}

// StageAcquire blocks until the given stage index has a packet to read
// that the nearest live upstream stage has released (or, for stage 0 or
// when no upstream stage is live, that the producer has committed), then
// returns a pointer to that slot and its sequence number. It returns
// ErrClosed once the ring is closed and this stage has caught up with
// that upstream limit.
func (r *Ring) StageAcquire(stage int) (*tspacket.Packet, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.read[stage] >= r.effectiveLimit(stage) {
		if r.closed {
			return nil, 0, ErrClosed
		}
		r.stageOK[stage].Wait()
	}
	seq := r.read[stage]
	idx := int(seq % uint64(len(r.slots)))
	return &r.slots[idx], seq, nil
}

// StageRelease advances the given stage's cursor past seq, signifying
// the stage is done reading that slot. Once every stage has released a
// slot, it becomes eligible for the producer to overwrite.
func (r *Ring) StageRelease(stage int, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.read[stage] {
		panic("ring: StageRelease called out of order")
	}
	r.read[stage]++
	r.producerOK.Broadcast()
	for _, c := range r.stageOK {
		c.Broadcast()
	}
}

// StageDone marks stage as having exited individually: it will call
// StageRelease no more. Stages downstream of it read straight through to
// whichever live stage (or the producer) precedes it instead of waiting
// on its now-frozen cursor, and the producer's overwrite gate stops
// waiting on it too. Safe to call more than once.
func (r *Ring) StageDone(stage int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[stage] = true
	r.producerOK.Broadcast()
	for _, c := range r.stageOK {
		c.Broadcast()
	}
}

// Written reports the total number of packets committed by the producer
// so far. Stages use this (or their own cursor) as the totalPackets
// argument to term.StageHandle.JointTerminate.
func (r *Ring) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write
}
