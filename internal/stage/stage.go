/*
NAME
  stage.go

DESCRIPTION
  The stage runtime: the acquire/process/release loop that drives one
  plugin (input, processor, or output) against the packet ring, turning
  plugin.Verdict values into ring and termination-coordinator actions.

  Grounded on revid.Revid's filterChan goroutine loop in revid/revid.go
  (a for-select loop reading from an upstream channel, invoking a
  filter.Filter, and writing downstream), generalized from revid's single
  linear channel chain into the ring's acquire/release cursor protocol so
  that many stages can share one buffer.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package stage implements the per-plugin runtime loop that drives
// input, processor, and output plugins against the packet ring and the
// termination coordinator, per spec section 5.
package stage

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ausocean/tsp/internal/ioclass"
	"github.com/ausocean/tsp/internal/plugin"
	"github.com/ausocean/tsp/internal/ring"
	"github.com/ausocean/tsp/internal/term"
	"github.com/ausocean/tsp/internal/tspacket"
)

// Logger is the minimal structured-logging surface the stage runtime
// needs; *ausocean/utils/logging.Logger satisfies it directly, matching
// the logger field threaded through revid.Revid.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warning(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})   {}
func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Warning(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{})   {}

// handleAdapter exposes a term.StageHandle through the plugin.Handle
// interface plugins hold, resolving JointTerminate's missing argument
// from whatever sequence number the runtime was last at.
type handleAdapter struct {
	h   *term.StageHandle
	seq func() uint64
}

func (a handleAdapter) UseJointTermination(on bool) { a.h.UseJointTermination(on) }
func (a handleAdapter) JointTerminate()             { _ = a.h.JointTerminate(a.seq()) }

// Input drives a plugin.Input into the ring: it reserves a slot, asks
// the plugin to fill it, and commits.
type Input struct {
	Name    string
	Ring    *ring.Ring
	Plugin  plugin.Input
	Options string

	// IgnoreAborts demotes a broken-pipe read failure to a clean end of
	// stream instead of a Fatal; see internal/ioclass.
	IgnoreAborts bool

	Handle *term.StageHandle
	Log    Logger

	seq uint64
}

func (s *Input) logger() Logger {
	if s.Log != nil {
		return s.Log
	}
	return nopLogger{}
}

// Run starts the plugin, then reserves, fills, and commits packets one
// at a time until ctx is cancelled, the plugin returns io.EOF, or it
// returns another error. On return it always closes the ring, and stops
// the plugin if it started, so a single failing input stage tears the
// whole pipeline down.
func (s *Input) Run(ctx context.Context) error {
	if setter, ok := s.Plugin.(plugin.HandleSetter); ok {
		setter.SetHandle(handleAdapter{h: s.Handle, seq: func() uint64 { return s.seq }})
	}
	if setter, ok := s.Plugin.(plugin.OptionSetter); ok {
		setter.SetOptions(s.Options)
	}
	defer s.Ring.Close()
	if err := s.Plugin.Start(); err != nil {
		return errors.Wrap(err, "stage: input Start")
	}
	defer func() { _ = s.Plugin.Stop() }()

	if err := s.Handle.SetRunning(); err != nil {
		return errors.Wrap(err, "stage: input SetRunning")
	}
	defer func() { _ = s.Handle.SetExited() }()

	buf := make([]tspacket.Packet, 1)
	for {
		select {
		case <-ctx.Done():
			s.logger().Info("input stage cancelled", "stage", s.Name)
			return ctx.Err()
		default:
		}

		n, err := s.Plugin.Receive(buf)
		if errors.Is(err, io.EOF) {
			s.logger().Info("input stage reached end of stream", "stage", s.Name)
			return nil
		}
		if err != nil {
			if ioerr := ioclass.Classify(err, s.IgnoreAborts); ioerr.BrokenPipe {
				s.logger().Warning("input stage demoted broken pipe to end of stream", "stage", s.Name, "error", err)
				return nil
			}
			s.logger().Error("input stage read failed", "stage", s.Name, "error", err)
			return errors.Wrap(err, "stage: input Receive")
		}
		if n == 0 {
			continue
		}

		slot, commitSeq, ok := s.Ring.InputReserve()
		if !ok {
			s.logger().Info("input stage stopped: ring closed", "stage", s.Name)
			return nil
		}
		*slot = buf[0]
		s.seq = commitSeq
		s.Ring.Commit(commitSeq)
	}
}

// Consumer drives a plugin.Processor or plugin.Output against the ring
// at one cursor index. A non-nil Out makes this the final (output)
// stage; a non-nil Proc makes it an intermediate processing stage whose
// verdicts are applied in place for the next stage to observe. Both may
// be set for a combined processor/sink stage.
type Consumer struct {
	Name     string
	Ring     *ring.Ring
	Index    int
	Proc     plugin.Processor
	ProcOpts string
	Out      plugin.Output
	OutOpts  string

	// IgnoreAborts demotes a broken-pipe write failure from Out.Send to
	// an individual (or joint, if opted in) end instead of a Fatal.
	IgnoreAborts bool

	Handle *term.StageHandle
	Log    Logger

	seq     uint64
	dropped uint64
}

// Dropped reports how many packets this stage has returned plugin.Drop
// for since it started.
func (s *Consumer) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }

func (s *Consumer) logger() Logger {
	if s.Log != nil {
		return s.Log
	}
	return nopLogger{}
}

// Run starts the plugin(s), then acquires, processes, and releases
// packets until ctx is cancelled, a plugin signals End, or the ring
// closes and drains.
func (s *Consumer) Run(ctx context.Context) error {
	adapter := handleAdapter{h: s.Handle, seq: func() uint64 { return s.seq }}
	if setter, ok := s.Proc.(plugin.HandleSetter); ok {
		setter.SetHandle(adapter)
	}
	if setter, ok := s.Out.(plugin.HandleSetter); ok {
		setter.SetHandle(adapter)
	}
	if setter, ok := s.Proc.(plugin.OptionSetter); ok {
		setter.SetOptions(s.ProcOpts)
	}
	if setter, ok := s.Out.(plugin.OptionSetter); ok {
		setter.SetOptions(s.OutOpts)
	}
	if s.Proc != nil {
		if err := s.Proc.Start(); err != nil {
			return errors.Wrap(err, "stage: processor Start")
		}
		defer func() { _ = s.Proc.Stop() }()
	}
	if s.Out != nil {
		if err := s.Out.Start(); err != nil {
			return errors.Wrap(err, "stage: output Start")
		}
		defer func() { _ = s.Out.Stop() }()
	}

	if err := s.Handle.SetRunning(); err != nil {
		return errors.Wrap(err, "stage: consumer SetRunning")
	}
	defer func() { _ = s.Handle.SetExited() }()
	// Once this stage stops calling StageRelease, its ring cursor must
	// stop gating the producer's overwrite point and stop blocking
	// whatever stage reads from it next.
	defer s.Ring.StageDone(s.Index)

	buf := make([]tspacket.Packet, 1)
	for {
		select {
		case <-ctx.Done():
			s.logger().Info("consumer stage cancelled", "stage", s.Name)
			return ctx.Err()
		default:
		}

		pkt, seq, err := s.Ring.StageAcquire(s.Index)
		if errors.Is(err, ring.ErrClosed) {
			s.logger().Info("consumer stage drained closed ring", "stage", s.Name)
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "stage: StageAcquire")
		}
		s.seq = seq

		v, perr := s.process(pkt)
		if perr != nil {
			s.Ring.StageRelease(s.Index, seq)
			return errors.Wrapf(perr, "stage: %s processing failed", s.Name)
		}

		drop, end := false, false
		switch v {
		case plugin.Ok:
		case plugin.Null:
			*pkt = tspacket.MakeNull()
		case plugin.Drop:
			drop = true
			atomic.AddUint64(&s.dropped, 1)
			if s.Out == nil {
				*pkt = tspacket.MakeNull()
			}
		case plugin.End:
			// The End packet itself is still passed on, as it is to the
			// next stage when Proc and Out run as separate stages.
			end = true
		}

		if !drop && s.Out != nil {
			buf[0] = *pkt
			more, werr := s.Out.Send(buf, 1)
			if werr != nil {
				s.Ring.StageRelease(s.Index, seq)
				if ioerr := ioclass.Classify(werr, s.IgnoreAborts); ioerr.BrokenPipe {
					s.logger().Warning("consumer stage demoted broken pipe", "stage", s.Name, "error", werr)
					return s.terminate(seq + 1)
				}
				return errors.Wrap(werr, "stage: Output.Send")
			}
			if !more {
				s.Ring.StageRelease(s.Index, seq)
				return s.terminate(seq + 1)
			}
		}

		s.Ring.StageRelease(s.Index, seq)
		if end {
			return s.terminate(seq + 1)
		}
	}
}

func (s *Consumer) process(pkt *tspacket.Packet) (plugin.Verdict, error) {
	if s.Proc != nil {
		return s.Proc.Process(pkt)
	}
	return plugin.Ok, nil
}

// terminate ends this stage's own loop. A stage opted into joint
// termination registers its total packet count with the coordinator and
// stops immediately; the Pipeline Controller is responsible for
// cancelling every other stage once the rendezvous resolves (see
// term.Coordinator.Done), not this stage. A stage that never opted in
// simply stops on its own, leaving the rest of the pipeline running.
func (s *Consumer) terminate(totalPackets uint64) error {
	if s.Handle.State() != term.Running {
		return nil
	}
	if s.Handle.OptedIn() {
		_ = s.Handle.JointTerminate(totalPackets)
		return nil
	}
	return s.Handle.RequestIndividualEnd()
}
