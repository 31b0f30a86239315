/*
NAME
  pipeline.go

DESCRIPTION
  The pipeline controller: builds a packet ring and one stage goroutine
  per input/processor/output plugin, runs them to completion or abort,
  and reports why the run ended.

  Grounded on revid.Revid's Start/Stop/Burst trio in revid/revid.go (a
  running flag, a sync.WaitGroup tracking stage goroutines, an err
  channel fanned in by handleErrors, and a stop channel for cooperative
  cancellation) and on revid/pipeline.go's setupPipeline, generalized
  from revid's fixed lex/filter/encode/send chain into an arbitrary list
  of named processor stages sharing one ring.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pipeline implements the pipeline controller described in spec
// section 5: ring construction, stage goroutine fan-out, and run/abort
// lifecycle management.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ausocean/tsp/internal/plugin"
	"github.com/ausocean/tsp/internal/ring"
	"github.com/ausocean/tsp/internal/stage"
	"github.com/ausocean/tsp/internal/term"
)

// ExitStatus reports why a pipeline Run returned.
type ExitStatus int

const (
	// ExitSuccess means every stage reached a clean end of its own accord
	// (input end of stream) without a joint termination resolving.
	ExitSuccess ExitStatus = iota
	// ExitAborted means the context passed to Run was cancelled.
	ExitAborted
	// ExitJointTerminated means the joint termination rendezvous resolved
	// and every opted-in stage stopped at the agreed cutoff.
	ExitJointTerminated
	// ExitFatal means a stage returned an unrecoverable error.
	ExitFatal
)

func (e ExitStatus) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitAborted:
		return "aborted"
	case ExitJointTerminated:
		return "joint-terminated"
	case ExitFatal:
		return "fatal"
	default:
		return "ExitStatus(?)"
	}
}

// ProcessorStage names one processor plugin instance in the chain, in
// the order it should see each packet.
type ProcessorStage struct {
	Name             string
	Plugin           plugin.Processor
	Options          string
	JointTermination bool
}

// Spec describes everything the controller needs to build and run one
// pipeline: an input, an ordered chain of processors, and a final
// output, all sharing one ring.
type Spec struct {
	InputName         string
	Input             plugin.Input
	InputOptions      string
	InputIgnoreAborts bool
	Processors        []ProcessorStage

	OutputName             string
	Output                 plugin.Output
	OutputOptions          string
	OutputJointTermination bool
	OutputIgnoreAborts     bool

	// RingSize is the number of slots in the shared ring. It must be at
	// least 2 so the producer and the slowest consumer are never forced
	// into lockstep.
	RingSize int

	Log stage.Logger
}

// Pipeline owns one built ring, termination coordinator, and the stage
// goroutines driving Spec's plugins against them.
type Pipeline struct {
	spec  Spec
	ring  *ring.Ring
	coord *term.Coordinator

	input      *stage.Input
	processors []*stage.Consumer
	output     *stage.Consumer

	wg sync.WaitGroup
}

// Build validates spec and constructs a Pipeline ready to Run. It does
// not start any goroutine.
func Build(spec Spec) (*Pipeline, error) {
	if spec.Input == nil {
		return nil, fmt.Errorf("pipeline: Spec.Input is required")
	}
	if spec.Output == nil {
		return nil, fmt.Errorf("pipeline: Spec.Output is required")
	}
	if spec.RingSize < 2 {
		spec.RingSize = 2
	}

	numStages := len(spec.Processors) + 1
	r := ring.New(spec.RingSize, numStages)
	coord := term.NewCoordinator()

	p := &Pipeline{spec: spec, ring: r, coord: coord}

	p.input = &stage.Input{
		Name:         nameOr(spec.InputName, "input"),
		Ring:         r,
		Plugin:       spec.Input,
		Options:      spec.InputOptions,
		IgnoreAborts: spec.InputIgnoreAborts,
		Handle:       coord.NewStageHandle(),
		Log:          spec.Log,
	}

	for i, ps := range spec.Processors {
		h := coord.NewStageHandle()
		h.UseJointTermination(ps.JointTermination)
		p.processors = append(p.processors, &stage.Consumer{
			Name:     nameOr(ps.Name, fmt.Sprintf("processor[%d]", i)),
			Ring:     r,
			Index:    i,
			Proc:     ps.Plugin,
			ProcOpts: ps.Options,
			Handle:   h,
			Log:      spec.Log,
		})
	}

	outHandle := coord.NewStageHandle()
	outHandle.UseJointTermination(spec.OutputJointTermination)
	p.output = &stage.Consumer{
		Name:         nameOr(spec.OutputName, "output"),
		Ring:         r,
		Index:        numStages - 1,
		Out:          spec.Output,
		OutOpts:      spec.OutputOptions,
		IgnoreAborts: spec.OutputIgnoreAborts,
		Handle:       outHandle,
		Log:          spec.Log,
	}

	coord.Arm()
	return p, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// Run starts every stage goroutine and blocks until they all exit,
// either because the input reached end of stream, the joint termination
// rendezvous resolved, ctx was cancelled, or a stage returned a fatal
// error. It returns the corresponding ExitStatus.
func (p *Pipeline) Run(ctx context.Context) ExitStatus {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The ring's blocking calls know nothing about ctx; closing the ring
	// is what actually wakes a stage blocked in InputReserve or
	// StageAcquire once the run is cancelled for any reason.
	go func() {
		<-runCtx.Done()
		p.ring.Close()
	}()

	// Once every stage opted into joint termination has reported, cancel
	// the whole run so stages that never opted in also stop, all at the
	// same cutoff.
	jointTerminated := make(chan struct{})
	go func() {
		select {
		case <-p.coord.Done():
			close(jointTerminated)
			cancel()
		case <-runCtx.Done():
		}
	}()

	n := 1 + len(p.processors) + 1
	errs := make(chan error, n)

	run := func(r func(context.Context) error) {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			errs <- r(runCtx)
		}()
	}

	run(p.input.Run)
	for _, c := range p.processors {
		run(c.Run)
	}
	run(p.output.Run)

	go func() {
		p.wg.Wait()
		close(errs)
	}()

	var fatal error
	for err := range errs {
		if err != nil && err != context.Canceled {
			fatal = err
			cancel()
		}
	}

	select {
	case <-jointTerminated:
		return ExitJointTerminated
	default:
	}

	switch {
	case ctx.Err() != nil:
		return ExitAborted
	case fatal != nil:
		return ExitFatal
	default:
		return ExitSuccess
	}
}

// Abort cancels every stage goroutine started by Run and waits for them
// to exit. It is safe to call even if Run has already returned.
func (p *Pipeline) Abort() {
	p.ring.Close()
	p.wg.Wait()
}
