/*
NAME
  section.go

DESCRIPTION
  The generic long-section PSI model: 8-byte header, payload, trailing
  CRC-32/MPEG-2. Every table (PMT included) is a sequence of sections
  sharing table_id and table_id_extension; parsing and serialization of
  that shared envelope lives here so each table type need only handle its
  own payload layout.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package psi implements the MPEG-2 PSI binary section model (CRC-32/MPEG-2
// long sections, descriptor lists) and the Program Map Table codec built on
// top of it.
package psi

import (
	"encoding/binary"
	"fmt"

	gotspsi "github.com/Comcast/gots/psi"
)

// FormatError reports malformed binary input: a short section, a bad CRC,
// or a payload that does not match the table it claims to be.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "psi: " + e.Reason }

// InvariantError reports an attempt to serialize a single-section table
// (PMT included) whose payload would exceed the maximum a long section can
// carry.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string { return "psi: " + e.Reason }

// sectionHeaderLen is the length of the long-section header before the
// payload: table_id_extension(2) + version/current_next(1) +
// section_number(1) + last_section_number(1).
const sectionHeaderLen = 5

// MaxLongSectionPayloadSize is the largest payload (the bytes following
// the 8-byte section header, before the CRC) this package serializes into
// a single long section: 1021 bytes. With the 5-byte syntax-section header
// and the 4-byte CRC, such a payload gives a section_length of 1030, which
// fits the 12-bit field Serialize checks.
const MaxLongSectionPayloadSize = 1021

// BinaryTable is a single parsed long PSI section.
type BinaryTable struct {
	TableID                byte
	SectionSyntaxIndicator bool
	TableIDExtension       uint16
	Version                byte
	CurrentNext            bool
	SectionNumber          byte
	LastSectionNumber      byte

	// Payload is the section-specific data: everything between the
	// 8-byte header and the trailing CRC.
	Payload []byte

	CRC uint32
}

// ParseSection parses a single long PSI section out of data. data may
// contain trailing bytes beyond the section (e.g. stuffing); only the
// first section_length+3 bytes are consumed.
func ParseSection(data []byte) (*BinaryTable, error) {
	const headerLen = 3 + sectionHeaderLen
	if len(data) < headerLen+4 {
		return nil, &FormatError{Reason: fmt.Sprintf("section shorter than minimum %d bytes", headerLen+4)}
	}

	// TableID and SectionLength are the same bytes section.go would
	// otherwise decode by hand; gots/psi already owns that bit math, so
	// the fixed-section reader defers to it before handing the payload
	// to the PMT codec this package owns.
	sectionLength := gotspsi.SectionLength(data)
	total := 3 + int(sectionLength)
	if total > len(data) {
		return nil, &FormatError{Reason: "section_length exceeds available data"}
	}
	if total < headerLen+4 {
		return nil, &FormatError{Reason: "section_length too small for syntax section and CRC"}
	}

	t := &BinaryTable{
		TableID:                gotspsi.TableID(data),
		SectionSyntaxIndicator: data[1]&0x80 != 0,
		TableIDExtension:       (uint16(data[3]) << 8) | uint16(data[4]),
		Version:                (data[5] >> 1) & 0x1F,
		CurrentNext:            data[5]&0x01 != 0,
		SectionNumber:          data[6],
		LastSectionNumber:      data[7],
	}

	t.Payload = append([]byte(nil), data[8:total-4]...)
	t.CRC = binary.BigEndian.Uint32(data[total-4 : total])

	if computeCRC(data[:total-4]) != t.CRC {
		return nil, &FormatError{Reason: "CRC-32/MPEG-2 mismatch"}
	}
	return t, nil
}

// Serialize builds the byte encoding of t: header, payload and a freshly
// computed CRC-32/MPEG-2 trailer. It fails with InvariantError if the
// resulting payload would not fit in a single long section.
func (t *BinaryTable) Serialize() ([]byte, error) {
	if len(t.Payload) > MaxLongSectionPayloadSize {
		return nil, &InvariantError{Reason: fmt.Sprintf("payload of %d bytes exceeds max single-section payload of %d", len(t.Payload), MaxLongSectionPayloadSize)}
	}

	body := make([]byte, sectionHeaderLen, sectionHeaderLen+len(t.Payload))
	body[0] = byte(t.TableIDExtension >> 8)
	body[1] = byte(t.TableIDExtension)
	cni := byte(0)
	if t.CurrentNext {
		cni = 0x01
	}
	body[2] = 0xC0 | (t.Version<<1)&0x3E | cni
	body[3] = t.SectionNumber
	body[4] = t.LastSectionNumber
	body = append(body, t.Payload...)

	sectionLength := len(body) + 4 // + CRC
	if sectionLength > 0x0FFF {
		return nil, &InvariantError{Reason: fmt.Sprintf("section_length %d exceeds 12-bit field", sectionLength)}
	}

	ssi := byte(0)
	if t.SectionSyntaxIndicator {
		ssi = 0x80
	}
	out := make([]byte, 3, 3+len(body)+4)
	out[0] = t.TableID
	out[1] = ssi | 0x30 | byte(sectionLength>>8)&0x0F
	out[2] = byte(sectionLength)
	out = append(out, body...)
	return appendCRC(out), nil
}
