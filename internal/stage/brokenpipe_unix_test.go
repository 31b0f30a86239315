//go:build linux || darwin

package stage

import (
	"context"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/ausocean/tsp/internal/ring"
	"github.com/ausocean/tsp/internal/term"
	"github.com/ausocean/tsp/internal/tspacket"
)

// brokenPipeOutput fails every Send with a wrapped syscall.EPIPE.
type brokenPipeOutput struct{}

func (brokenPipeOutput) Start() error { return nil }
func (brokenPipeOutput) Stop() error  { return nil }
func (brokenPipeOutput) Send(buf []tspacket.Packet, count int) (bool, error) {
	return false, fmt.Errorf("write: %w", syscall.EPIPE)
}

func TestConsumerDemotesBrokenPipeWhenIgnoringAborts(t *testing.T) {
	r := ring.New(4, 1)
	coord := term.NewCoordinator()

	in := &Input{Name: "in", Ring: r, Plugin: &fixedInput{count: 5}, Handle: coord.NewStageHandle()}
	handle := coord.NewStageHandle()
	c := &Consumer{Name: "out", Ring: r, Index: 0, Out: brokenPipeOutput{}, IgnoreAborts: true, Handle: handle}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() { _ = in.Run(ctx) }()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Consumer.Run: %v, want nil (broken pipe should be demoted)", err)
	}
	if got := handle.State(); got != term.IndividualEnd && got != term.Exited {
		t.Errorf("handle state = %s, want IndividualEnd or Exited", got)
	}
}

func TestConsumerPropagatesBrokenPipeWhenNotIgnoringAborts(t *testing.T) {
	r := ring.New(4, 1)
	coord := term.NewCoordinator()

	in := &Input{Name: "in", Ring: r, Plugin: &fixedInput{count: 5}, Handle: coord.NewStageHandle()}
	handle := coord.NewStageHandle()
	c := &Consumer{Name: "out", Ring: r, Index: 0, Out: brokenPipeOutput{}, Handle: handle}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() { _ = in.Run(ctx) }()
	if err := c.Run(ctx); err == nil {
		t.Fatal("Consumer.Run returned nil, want a propagated error")
	}
}
