/*
NAME
  plugin.go

DESCRIPTION
  The pipeline plugin contract: the three roles (Input, Processor, Output)
  a pipeline stage can wrap, and the per-packet verdict a Processor returns.
  Grounded on device.AVDevice (the one interface-per-role abstraction the
  teacher already has) and filter.Filter, generalized to the three roles
  and the joint-termination handle a plugin may hold.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package plugin defines the pipeline plugin contract (Input, Processor,
// Output) and a process-wide registry mapping plugin names to allocators,
// mirroring a name -> constructor lookup rather than static
// self-registration.
package plugin

import "github.com/ausocean/tsp/internal/tspacket"

// Verdict is a Processor's disposition for a single packet.
type Verdict int

const (
	// Ok forwards the packet as-is.
	Ok Verdict = iota
	// Null marks the slot as filler without dropping it from the ring.
	Null
	// Drop marks the slot as filler and counts it as dropped.
	Drop
	// End requests that the stage stop after releasing its current window.
	End
)

func (v Verdict) String() string {
	switch v {
	case Ok:
		return "Ok"
	case Null:
		return "Null"
	case Drop:
		return "Drop"
	case End:
		return "End"
	default:
		return "Verdict(?)"
	}
}

// Handle is the per-stage control surface a plugin may use to participate
// in joint termination. A stage hands its plugin a Handle before Start is
// called.
type Handle interface {
	// UseJointTermination opts this stage's plugin in or out of the joint
	// termination rendezvous.
	UseJointTermination(on bool)
	// JointTerminate declares that this plugin has reached its intended
	// stopping point; the pipeline terminates all joint users once every
	// opted-in stage has called this.
	JointTerminate()
}

// HandleSetter is implemented by plugins that want their stage Handle
// before Start is called. Plugins that never use joint termination need
// not implement it.
type HandleSetter interface {
	SetHandle(h Handle)
}

// OptionSetter is implemented by plugins that accept a free-form options
// string (see config.PluginSpec.Options) before Start is called. A
// plugin with no configurable options need not implement it.
type OptionSetter interface {
	SetOptions(s string)
}

// Input produces packets to fill the ring.
type Input interface {
	Start() error
	Stop() error
	// Receive fills as much of buf as data allows and returns the number
	// of packets written. io.EOF signals a clean end of input.
	Receive(buf []tspacket.Packet) (int, error)
}

// Processor inspects and optionally mutates one packet at a time.
type Processor interface {
	Start() error
	Stop() error
	Process(pkt *tspacket.Packet) (Verdict, error)
}

// Output drains packets from the ring.
type Output interface {
	Start() error
	Stop() error
	// Send writes count packets from buf and reports whether the stage
	// should keep running.
	Send(buf []tspacket.Packet, count int) (bool, error)
}

// Role identifies which of the three plugin interfaces a registry entry
// implements.
type Role int

const (
	RoleInput Role = iota
	RoleProcessor
	RoleOutput
)

func (r Role) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleProcessor:
		return "processor"
	case RoleOutput:
		return "output"
	default:
		return "role(?)"
	}
}

// InputAllocator constructs a new Input plugin instance.
type InputAllocator func() Input

// ProcessorAllocator constructs a new Processor plugin instance.
type ProcessorAllocator func() Processor

// OutputAllocator constructs a new Output plugin instance.
type OutputAllocator func() Output
