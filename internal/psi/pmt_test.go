package psi

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestS1PMTParse is scenario S1 from the spec.
func TestS1PMTParse(t *testing.T) {
	payload := []byte{0xE1, 0x00, 0xF0, 0x00, 0x1B, 0xE1, 0x00, 0xF0, 0x00}
	tbl := &BinaryTable{TableID: TableIDPMT, Payload: payload}

	pmt, err := DeserializePMT(tbl)
	if err != nil {
		t.Fatalf("DeserializePMT: %v", err)
	}
	if !pmt.IsValid() {
		t.Fatal("expected valid PMT")
	}
	if pmt.PCRPID != 0x0100 {
		t.Errorf("PCRPID = 0x%x, want 0x0100", pmt.PCRPID)
	}
	stream, ok := pmt.Streams[0x0100]
	if !ok {
		t.Fatal("expected stream at PID 0x0100")
	}
	if stream.StreamType != 0x1B {
		t.Errorf("StreamType = 0x%x, want 0x1B", stream.StreamType)
	}
	if !stream.IsVideo() {
		t.Error("expected IsVideo() == true for stream_type 0x1B")
	}
}

// TestS2PMTWithAC3 is scenario S2 from the spec.
func TestS2PMTWithAC3(t *testing.T) {
	var s Stream
	s.StreamType = 0x06
	s.Descriptors.Append(Descriptor{Tag: DescTagAC3})
	if !s.IsAudio() {
		t.Error("expected IsAudio() == true for a stream carrying an AC-3 descriptor")
	}
}

// TestS5TeletextSubtitle is scenario S5 from the spec.
func TestS5TeletextSubtitle(t *testing.T) {
	var s Stream
	// language(3 bytes) + type/magazine byte 0x18 -> type = 0x18>>3 = 3 (not subtitle).
	s.Descriptors.Append(Descriptor{Tag: DescTagTeletext, Data: []byte{'e', 'n', 'g', 0x18, 0x01}})
	if s.IsSubtitles() {
		t.Error("type 3 Teletext should not classify as subtitles")
	}

	var s2 Stream
	// type/magazine byte 0x10 -> type = 0x10>>3 = 2 (subtitle).
	s2.Descriptors.Append(Descriptor{Tag: DescTagTeletext, Data: []byte{'e', 'n', 'g', 0x10, 0x01}})
	if !s2.IsSubtitles() {
		t.Error("type 2 Teletext should classify as subtitles")
	}
}

func TestSubtitlingDescriptorAlone(t *testing.T) {
	var s Stream
	s.Descriptors.Append(Descriptor{Tag: DescTagSubtitling, Data: []byte{'e', 'n', 'g', 0x10, 0x00, 0x01, 0x00, 0x01}})
	if !s.IsSubtitles() {
		t.Error("expected IsSubtitles() == true when a Subtitling descriptor is present")
	}
}

// TestPMTRoundTrip is property 4 from the spec: deserialize(serialize(P))
// == P for every validly-sized PMT, including descriptor order and PID
// ordering semantics.
func TestPMTRoundTrip(t *testing.T) {
	p := &PMT{
		Version:   3,
		IsCurrent: true,
		ServiceID: 0x4242,
		PCRPID:    0x0101,
		Streams: map[uint16]Stream{
			0x0102: {StreamType: 0x1B},
			0x0101: {StreamType: 0x0F},
		},
	}
	p.ProgramDescriptors.Append(Descriptor{Tag: 0x05, Data: []byte("HDMV")})
	s := p.Streams[0x0102]
	s.Descriptors.Append(Descriptor{Tag: DescTagAAC, Data: []byte{0x01}})
	p.Streams[0x0102] = s

	tbl, err := p.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	raw, err := tbl.Serialize()
	if err != nil {
		t.Fatalf("section Serialize: %v", err)
	}
	parsedTbl, err := ParseSection(raw)
	if err != nil {
		t.Fatalf("ParseSection: %v", err)
	}

	got, err := DeserializePMT(parsedTbl)
	if err != nil {
		t.Fatalf("DeserializePMT: %v", err)
	}

	if diff := cmp.Diff(p.PCRPID, got.PCRPID); diff != "" {
		t.Errorf("PCRPID mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(p.ServiceID, got.ServiceID); diff != "" {
		t.Errorf("ServiceID mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(len(p.Streams), len(got.Streams)); diff != "" {
		t.Errorf("stream count mismatch (-want +got):\n%s", diff)
	}
	for pid, want := range p.Streams {
		got, ok := got.Streams[pid]
		if !ok {
			t.Errorf("missing stream for PID 0x%x", pid)
			continue
		}
		if got.StreamType != want.StreamType {
			t.Errorf("PID 0x%x: StreamType = 0x%x, want 0x%x", pid, got.StreamType, want.StreamType)
		}
		if diff := cmp.Diff(want.Descriptors.Items(), got.Descriptors.Items()); diff != "" {
			t.Errorf("PID 0x%x descriptors mismatch (-want +got):\n%s", pid, diff)
		}
	}
}

func TestDeserializePMTWrongTableID(t *testing.T) {
	tbl := &BinaryTable{TableID: 0x00, Payload: []byte{0, 0, 0, 0}}
	pmt, err := DeserializePMT(tbl)
	if err == nil {
		t.Fatal("expected error for non-PMT table_id")
	}
	if pmt.IsValid() {
		t.Error("expected invalid PMT on table_id mismatch")
	}
}

func TestDeserializePMTShortPayload(t *testing.T) {
	tbl := &BinaryTable{TableID: TableIDPMT, Payload: []byte{0, 0}}
	pmt, err := DeserializePMT(tbl)
	if err == nil {
		t.Fatal("expected error for short payload")
	}
	if pmt.IsValid() {
		t.Error("expected invalid PMT on short payload")
	}
}

func TestDuplicatePIDLastWins(t *testing.T) {
	p := &PMT{
		Streams: map[uint16]Stream{
			0x0100: {StreamType: 0x02},
		},
	}
	tbl, err := p.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// Manually append a second, duplicate-PID stream entry directly after
	// the first in the payload to simulate an upstream encoder emitting a
	// duplicate (first 0x02, then 0x1B overriding it).
	dup := []byte{0x1B, 0xE1, 0x00, 0xF0, 0x00}
	tbl.Payload = append(tbl.Payload, dup...)

	got, err := DeserializePMT(tbl)
	if err != nil {
		t.Fatalf("DeserializePMT: %v", err)
	}
	stream := got.Streams[0x0100]
	if stream.StreamType != 0x1B {
		t.Errorf("StreamType = 0x%x, want 0x1B (last occurrence should win)", stream.StreamType)
	}
}
