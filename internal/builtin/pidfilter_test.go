package builtin

import (
	"testing"

	"github.com/ausocean/tsp/internal/plugin"
	"github.com/ausocean/tsp/internal/tspacket"
)

func makePacket(pid uint16) tspacket.Packet {
	var p tspacket.Packet
	p[0] = tspacket.SyncByte
	p.SetPID(pid)
	return p
}

func TestPIDFilterKeepsAllowedPID(t *testing.T) {
	f := NewPIDFilter(256)
	pkt := makePacket(256)
	v, err := f.Process(&pkt)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v != plugin.Ok {
		t.Errorf("verdict = %v, want Ok", v)
	}
}

func TestPIDFilterNullsUnlistedPID(t *testing.T) {
	f := NewPIDFilter(256)
	pkt := makePacket(99)
	v, err := f.Process(&pkt)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v != plugin.Null {
		t.Errorf("verdict = %v, want Null", v)
	}
}

func TestPIDFilterAlwaysKeepsPAT(t *testing.T) {
	f := NewPIDFilter(256)
	pkt := makePacket(0)
	v, _ := f.Process(&pkt)
	if v != plugin.Ok {
		t.Errorf("PAT packet verdict = %v, want Ok", v)
	}
}

func TestPIDFilterSetOptions(t *testing.T) {
	f := &PIDFilter{}
	f.SetOptions("pids=101;202")
	cases := []struct {
		pid  uint16
		want plugin.Verdict
	}{
		{101, plugin.Ok},
		{202, plugin.Ok},
		{303, plugin.Null},
		{0, plugin.Ok},
	}
	for _, c := range cases {
		pkt := makePacket(c.pid)
		v, _ := f.Process(&pkt)
		if v != c.want {
			t.Errorf("PID %d: verdict = %v, want %v", c.pid, v, c.want)
		}
	}
}

func TestPIDFilterRegisteredByName(t *testing.T) {
	alloc, err := plugin.Default.GetProcessor("pidfilter")
	if err != nil {
		t.Fatalf("GetProcessor: %v", err)
	}
	if _, ok := alloc().(*PIDFilter); !ok {
		t.Errorf("GetProcessor(\"pidfilter\") allocator returned %T, want *PIDFilter", alloc())
	}
}
