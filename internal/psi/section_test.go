package psi

import (
	"bytes"
	"testing"
)

func TestSectionRoundTrip(t *testing.T) {
	tbl := &BinaryTable{
		TableID:                TableIDPMT,
		SectionSyntaxIndicator: true,
		TableIDExtension:       0x1234,
		Version:                7,
		CurrentNext:            true,
		SectionNumber:          0,
		LastSectionNumber:      0,
		Payload:                []byte{0xE1, 0x00, 0xF0, 0x00, 0x1B, 0xE1, 0x00, 0xF0, 0x00},
	}

	enc, err := tbl.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := ParseSection(enc)
	if err != nil {
		t.Fatalf("ParseSection: %v", err)
	}

	if got.TableID != tbl.TableID || got.TableIDExtension != tbl.TableIDExtension ||
		got.Version != tbl.Version || got.CurrentNext != tbl.CurrentNext ||
		!bytes.Equal(got.Payload, tbl.Payload) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, tbl)
	}
}

func TestParseSectionBadCRC(t *testing.T) {
	tbl := &BinaryTable{TableID: TableIDPMT, SectionSyntaxIndicator: true, Payload: []byte{1, 2, 3, 4}}
	enc, err := tbl.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	enc[len(enc)-1] ^= 0xFF // corrupt the CRC
	if _, err := ParseSection(enc); err == nil {
		t.Error("expected CRC mismatch error")
	}
}

func TestParseSectionShort(t *testing.T) {
	if _, err := ParseSection([]byte{0x02, 0x00}); err == nil {
		t.Error("expected error for short section")
	}
}

func TestSerializeOverflowsInvariantError(t *testing.T) {
	tbl := &BinaryTable{TableID: TableIDPMT, Payload: make([]byte, MaxLongSectionPayloadSize+1)}
	_, err := tbl.Serialize()
	if err == nil {
		t.Fatal("expected InvariantError")
	}
	if _, ok := err.(*InvariantError); !ok {
		t.Errorf("got %T, want *InvariantError", err)
	}
}

func TestDescriptorListAddPreservesOrderAndDiscardsTrailingGarbage(t *testing.T) {
	var l DescriptorList
	// Two valid descriptors followed by one trailing byte that cannot form
	// a full TLV.
	l.Add([]byte{0x01, 0x02, 0xAA, 0xBB, 0x02, 0x01, 0xCC, 0x03})

	items := l.Items()
	if len(items) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(items))
	}
	if items[0].Tag != 0x01 || !bytes.Equal(items[0].Data, []byte{0xAA, 0xBB}) {
		t.Errorf("unexpected first descriptor: %+v", items[0])
	}
	if items[1].Tag != 0x02 || !bytes.Equal(items[1].Data, []byte{0xCC}) {
		t.Errorf("unexpected second descriptor: %+v", items[1])
	}
}

func TestDescriptorListLengthSerializeTruncates(t *testing.T) {
	var l DescriptorList
	l.Append(Descriptor{Tag: 1, Data: []byte{1, 2, 3}})
	l.Append(Descriptor{Tag: 2, Data: []byte{4, 5, 6}})

	// Only enough room for the length prefix and the first descriptor.
	buf, fit := l.LengthSerialize(nil, 2+5)
	if fit != 1 {
		t.Errorf("fit = %d, want 1", fit)
	}
	if len(buf) != 2+5 {
		t.Errorf("len(buf) = %d, want 7", len(buf))
	}

	buf, fit = l.LengthSerialize(nil, 2+5+5)
	if fit != 2 {
		t.Errorf("fit = %d, want 2 (all descriptors fit)", fit)
	}
	if len(buf) != 12 {
		t.Errorf("len(buf) = %d, want 12", len(buf))
	}
}
