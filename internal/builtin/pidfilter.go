/*
NAME
  pidfilter.go

DESCRIPTION
  PIDFilter is a Processor that nulls out every packet whose PID is not
  in its allow-list, the TS equivalent of filter.Filter's frame-dropping
  role in the teacher's pipeline.

  Grounded on filter.Filter's Filter(f *frame.Frame) (bool, error)
  contract in filter/filter.go, adapted from "should this frame be kept"
  to plugin.Verdict's finer Ok/Null/Drop/End vocabulary: PIDFilter
  returns Null rather than Drop, since a TS stream must keep its packet
  cadence even when suppressing a PID's content.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package builtin

import (
	"strconv"
	"strings"
	"sync"

	"github.com/ausocean/tsp/internal/plugin"
	"github.com/ausocean/tsp/internal/tspacket"
)

func init() {
	plugin.Default.RegisterProcessor("pidfilter", func() plugin.Processor { return &PIDFilter{} })
}

// PIDFilter keeps packets whose PID is in its allow-list (and the PAT's
// PID 0, always kept) and nulls every other packet.
type PIDFilter struct {
	mu    sync.Mutex
	allow map[uint16]bool
}

// NewPIDFilter returns a PIDFilter keeping exactly the given PIDs, plus
// PID 0 (the PAT).
func NewPIDFilter(pids ...uint16) *PIDFilter {
	p := &PIDFilter{allow: map[uint16]bool{0: true}}
	for _, pid := range pids {
		p.allow[pid] = true
	}
	return p
}

// SetOptions parses a "pids=1;2;3" options string into the allow-list.
// PIDs are separated by ';' because ',' separates options.
func (p *PIDFilter) SetOptions(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allow = map[uint16]bool{0: true}
	opts := parseOptions(s)
	list := opts["pids"]
	if list == "" {
		return
	}
	for _, f := range strings.Split(list, ";") {
		if f == "" {
			continue
		}
		n, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			continue
		}
		p.allow[uint16(n)] = true
	}
}

func (p *PIDFilter) Start() error { return nil }
func (p *PIDFilter) Stop() error  { return nil }

func (p *PIDFilter) Process(pkt *tspacket.Packet) (plugin.Verdict, error) {
	p.mu.Lock()
	keep := p.allow[pkt.PID()]
	p.mu.Unlock()
	if keep {
		return plugin.Ok, nil
	}
	return plugin.Null, nil
}
