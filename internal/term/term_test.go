package term

import (
	"sync"
	"testing"
)

// TestS4JointTerminationCutoff is scenario S4 from the spec: two stages
// opt into joint termination; the rendezvous only resolves once both have
// called JointTerminate, and the resulting cutoff is the higher of the two
// reported packet counts.
func TestS4JointTerminationCutoff(t *testing.T) {
	c := NewCoordinator()
	a := c.NewStageHandle()
	b := c.NewStageHandle()

	a.UseJointTermination(true)
	b.UseJointTermination(true)
	c.Arm()

	if got := c.Users(); got != 2 {
		t.Fatalf("Users() = %d, want 2", got)
	}

	if err := a.SetRunning(); err != nil {
		t.Fatal(err)
	}
	if err := b.SetRunning(); err != nil {
		t.Fatal(err)
	}

	if got := c.TotalPacketsBeforeJointTermination(); got != ^uint64(0) {
		t.Fatalf("cutoff before any JointTerminate = %d, want max uint64", got)
	}

	if err := a.JointTerminate(100); err != nil {
		t.Fatal(err)
	}
	if got := c.TotalPacketsBeforeJointTermination(); got != ^uint64(0) {
		t.Fatalf("cutoff after only one stage terminated = %d, want max uint64", got)
	}

	if err := b.JointTerminate(150); err != nil {
		t.Fatal(err)
	}
	if got := c.TotalPacketsBeforeJointTermination(); got != 150 {
		t.Fatalf("cutoff = %d, want 150 (the higher of 100 and 150)", got)
	}

	if got := a.State(); got != JointEnd {
		t.Errorf("stage a state = %s, want JointEnd", got)
	}
	if got := b.State(); got != JointEnd {
		t.Errorf("stage b state = %s, want JointEnd", got)
	}
}

func TestIndividualTerminationDoesNotAffectJoint(t *testing.T) {
	c := NewCoordinator()
	joint := c.NewStageHandle()
	solo := c.NewStageHandle()

	joint.UseJointTermination(true)
	c.Arm()

	if err := solo.SetRunning(); err != nil {
		t.Fatal(err)
	}
	if err := solo.RequestIndividualEnd(); err != nil {
		t.Fatal(err)
	}
	if got := solo.State(); got != IndividualEnd {
		t.Errorf("solo state = %s, want IndividualEnd", got)
	}
	if got := c.TotalPacketsBeforeJointTermination(); got != ^uint64(0) {
		t.Errorf("individual termination must not resolve the joint rendezvous")
	}
	_ = joint
}

func TestIgnoreJointTerminationNeverResolves(t *testing.T) {
	c := NewCoordinator()
	c.SetIgnoreJointTermination(true)
	a := c.NewStageHandle()
	a.UseJointTermination(true)
	c.Arm()

	if err := a.SetRunning(); err != nil {
		t.Fatal(err)
	}
	if err := a.JointTerminate(42); err != nil {
		t.Fatal(err)
	}
	if got := c.Remaining(); got != 1 {
		t.Errorf("Remaining() = %d, want 1 (ignore-joint must not decrement it)", got)
	}
	if got := c.TotalPacketsBeforeJointTermination(); got != ^uint64(0) {
		t.Errorf("cutoff must never resolve while ignore-joint is set")
	}
}

func TestJointTerminateRequiresOptIn(t *testing.T) {
	c := NewCoordinator()
	h := c.NewStageHandle()
	c.Arm()
	if err := h.SetRunning(); err != nil {
		t.Fatal(err)
	}
	if err := h.JointTerminate(10); err == nil {
		t.Error("expected error calling JointTerminate without opting in")
	}
}

func TestInvalidTransitions(t *testing.T) {
	c := NewCoordinator()
	h := c.NewStageHandle()
	if err := h.RequestIndividualEnd(); err == nil {
		t.Error("expected error requesting IndividualEnd from Idle")
	}
	if err := h.SetExited(); err == nil {
		t.Error("expected error exiting from Idle")
	}
	if err := h.SetRunning(); err != nil {
		t.Fatal(err)
	}
	if err := h.SetExited(); err != nil {
		t.Fatal(err)
	}
	if err := h.RequestIndividualEnd(); err == nil {
		t.Error("expected error requesting IndividualEnd after Exited")
	}
}

// TestConcurrentJointTermination exercises the rendezvous under
// concurrent JointTerminate calls from many stages, matching property 3
// (joint-cutoff is race-free under concurrent access).
func TestConcurrentJointTermination(t *testing.T) {
	const n = 50
	c := NewCoordinator()
	handles := make([]*StageHandle, n)
	for i := range handles {
		handles[i] = c.NewStageHandle()
		handles[i].UseJointTermination(true)
	}
	c.Arm()

	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(h *StageHandle, pkt uint64) {
			defer wg.Done()
			if err := h.SetRunning(); err != nil {
				t.Error(err)
				return
			}
			if err := h.JointTerminate(pkt); err != nil {
				t.Error(err)
			}
		}(h, uint64(i))
	}
	wg.Wait()

	if got := c.TotalPacketsBeforeJointTermination(); got != n-1 {
		t.Errorf("cutoff = %d, want %d", got, n-1)
	}
}
