/*
NAME
  pmt.go

DESCRIPTION
  Program Map Table deserialize/serialize and the audio/video/subtitle
  classification predicates used to route elementary streams. Field
  parsing order and the "last occurrence wins" duplicate-PID rule are
  grounded on potterxu-gots/psi/pmt.go (a fork of github.com/Comcast/gots);
  the byte-packing conventions (reserved-bit masks on PCR PID and the
  12-bit length fields) follow container/mts/psi/psi.go's PAT/PMT Bytes
  methods.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import (
	"fmt"
	"sort"
)

// TableIDPMT is the table_id value of a Program Map Table.
const TableIDPMT = 0x02

// Descriptor tags used by the audio/subtitle predicates below, per
// ETSI EN 300 468.
const (
	DescTagTeletext     = 0x56
	DescTagSubtitling   = 0x59
	DescTagAC3          = 0x6A
	DescTagDTS          = 0x7B
	DescTagEnhancedAC3  = 0x7A
	DescTagAAC          = 0x7C
)

// Video and audio stream_type values recognised by the classification
// predicates, per ISO/IEC 13818-1 and its common extensions.
var (
	videoStreamTypes = map[byte]bool{
		0x01: true, // MPEG-1 video
		0x02: true, // MPEG-2 video
		0x10: true, // MPEG-4 visual
		0x1B: true, // AVC / H.264
		0x24: true, // HEVC / H.265
		0x20: true, // MPEG-4 video over H.222.0 (MVC base)
	}
	audioStreamTypes = map[byte]bool{
		0x03: true, // MPEG-1 audio
		0x04: true, // MPEG-2 audio
		0x0F: true, // ADTS AAC
		0x11: true, // LATM AAC
		0x81: true, // AC-3 (ATSC private stream_type)
	}
	audioDescriptorTags = map[byte]bool{
		DescTagDTS:         true,
		DescTagAC3:         true,
		DescTagEnhancedAC3: true,
		DescTagAAC:         true,
	}
)

// Stream describes one elementary stream entry in a PMT.
type Stream struct {
	StreamType  byte
	Descriptors DescriptorList
}

// IsVideo reports whether the stream's stream_type is a recognised video
// codec.
func (s *Stream) IsVideo() bool { return videoStreamTypes[s.StreamType] }

// IsAudio reports whether the stream's stream_type is a recognised audio
// codec, or its descriptor list declares one of the codecs (DTS, AC-3,
// Enhanced AC-3, AAC) that PMTs signal only via a descriptor rather than a
// dedicated stream_type.
func (s *Stream) IsAudio() bool {
	if audioStreamTypes[s.StreamType] {
		return true
	}
	for _, d := range s.Descriptors.Items() {
		if audioDescriptorTags[d.Tag] {
			return true
		}
	}
	return false
}

// IsSubtitles reports whether the stream carries a Subtitling descriptor,
// or a Teletext descriptor with at least one per-language entry whose type
// field (the top 5 bits of the type byte) is 2 (subtitle) or 5 (subtitle
// for hearing impaired).
func (s *Stream) IsSubtitles() bool {
	if s.Descriptors.Has(DescTagSubtitling) {
		return true
	}
	_, d := s.Descriptors.Find(DescTagTeletext, 0)
	if d.Tag != DescTagTeletext {
		return false
	}
	// Teletext descriptor: repeated 5-byte entries (3-byte language code,
	// 1 type byte, 1 magazine/page byte); type occupies bits 7..3.
	for i := 0; i+3 < len(d.Data); i += 5 {
		typ := d.Data[i+3] >> 3
		if typ == 2 || typ == 5 {
			return true
		}
	}
	return false
}

// PMT is a Program Map Table: one service's PCR PID, program-level
// descriptors, and its elementary streams keyed by PID.
type PMT struct {
	Version            byte
	IsCurrent          bool
	ServiceID          uint16
	PCRPID             uint16
	ProgramDescriptors DescriptorList
	Streams            map[uint16]Stream

	valid bool
}

// IsValid reports whether this PMT was produced by a successful
// Deserialize call.
func (p *PMT) IsValid() bool { return p.valid }

// DeserializePMT parses a PMT out of a long section. It never panics on
// malformed input: on failure it returns a PMT with IsValid()==false along
// with a descriptive error.
func DeserializePMT(t *BinaryTable) (*PMT, error) {
	p := &PMT{Streams: make(map[uint16]Stream)}

	if t.TableID != TableIDPMT {
		return p, &FormatError{Reason: fmt.Sprintf("table_id 0x%02x is not PMT (0x%02x)", t.TableID, TableIDPMT)}
	}
	if len(t.Payload) < 4 {
		return p, &FormatError{Reason: "PMT payload shorter than the mandatory 4 leading bytes"}
	}

	p.ServiceID = t.TableIDExtension
	p.Version = t.Version
	p.IsCurrent = t.CurrentNext
	p.PCRPID = ((uint16(t.Payload[0]) << 8) | uint16(t.Payload[1])) & 0x1FFF

	progInfoLen := int(((uint16(t.Payload[2]) << 8) | uint16(t.Payload[3])) & 0x0FFF)
	rest := t.Payload[4:]
	if progInfoLen > len(rest) {
		progInfoLen = len(rest)
	}
	p.ProgramDescriptors.Add(rest[:progInfoLen])
	rest = rest[progInfoLen:]

	for len(rest) >= 5 {
		streamType := rest[0]
		pid := ((uint16(rest[1]) << 8) | uint16(rest[2])) & 0x1FFF
		esInfoLen := int(((uint16(rest[3]) << 8) | uint16(rest[4])) & 0x0FFF)
		rest = rest[5:]
		if esInfoLen > len(rest) {
			esInfoLen = len(rest)
		}
		var descs DescriptorList
		descs.Add(rest[:esInfoLen])
		rest = rest[esInfoLen:]

		// Duplicate PID: last occurrence wins.
		p.Streams[pid] = Stream{StreamType: streamType, Descriptors: descs}
	}

	p.valid = true
	return p, nil
}

// Serialize builds the single long section a PMT occupies, per ISO/IEC
// 13818-1's restriction that a PMT never spans more than one section.
// Streams are emitted in ascending PID order so serialization is
// deterministic regardless of map iteration order. It fails with
// InvariantError if the combined payload would exceed
// MaxLongSectionPayloadSize.
func (p *PMT) Serialize() (*BinaryTable, error) {
	payload := make([]byte, 2)
	pcr := (p.PCRPID & 0x1FFF) | 0xE000
	payload[0] = byte(pcr >> 8)
	payload[1] = byte(pcr)

	// program_info_length (12 bits) followed by the program descriptors
	// occupies payload[2:4] onward.
	payload, fit := p.ProgramDescriptors.LengthSerialize(payload, MaxLongSectionPayloadSize-len(payload))
	if fit < len(p.ProgramDescriptors.Items()) {
		return nil, &InvariantError{Reason: fmt.Sprintf("PMT for service %d does not fit in a single section", p.ServiceID)}
	}

	for _, pid := range p.sortedPIDs() {
		s := p.Streams[pid]
		if len(payload)+5 > MaxLongSectionPayloadSize {
			return nil, &InvariantError{Reason: fmt.Sprintf("PMT for service %d does not fit in a single section", p.ServiceID)}
		}
		header := make([]byte, 3)
		header[0] = s.StreamType
		v := (pid & 0x1FFF) | 0xE000
		header[1] = byte(v >> 8)
		header[2] = byte(v)
		payload = append(payload, header...)
		payload, fit = s.Descriptors.LengthSerialize(payload, MaxLongSectionPayloadSize-len(payload))
		if fit < len(s.Descriptors.Items()) {
			return nil, &InvariantError{Reason: fmt.Sprintf("PMT for service %d does not fit in a single section", p.ServiceID)}
		}
	}

	if len(payload) > MaxLongSectionPayloadSize {
		return nil, &InvariantError{Reason: fmt.Sprintf("PMT for service %d exceeds max single-section payload of %d bytes", p.ServiceID, MaxLongSectionPayloadSize)}
	}

	return &BinaryTable{
		TableID:                TableIDPMT,
		SectionSyntaxIndicator: true,
		TableIDExtension:       p.ServiceID,
		Version:                p.Version,
		CurrentNext:            p.IsCurrent,
		SectionNumber:          0,
		LastSectionNumber:      0,
		Payload:                payload,
	}, nil
}

func (p *PMT) sortedPIDs() []uint16 {
	pids := make([]uint16, 0, len(p.Streams))
	for pid := range p.Streams {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}
