/*
NAME
  packet.go

DESCRIPTION
  Package tspacket provides the raw MPEG-TS packet type shared by every
  pipeline stage. The runtime treats packet contents as opaque; the
  accessors here read only the 4-byte header fields and locate the
  payload behind an optional adaptation field.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package tspacket

import "fmt"

// Size is the fixed length of an MPEG-TS packet in bytes.
const Size = 188

// SyncByte is the fixed first octet of every TS packet.
const SyncByte = 0x47

// NullPID is the PID reserved for null (stuffing) packets.
const NullPID = 0x1FFF

// Packet is a single 188-byte MPEG-TS packet.
type Packet [Size]byte

// ErrBadSync is returned by Validate when octet 0 is not 0x47.
var ErrBadSync = fmt.Errorf("tspacket: sync byte is not 0x%02x", SyncByte)

// Validate checks the sync byte. The runtime otherwise treats packet
// contents as opaque, per the spec's data model.
func (p *Packet) Validate() error {
	if p[0] != SyncByte {
		return ErrBadSync
	}
	return nil
}

// TEI reports the transport error indicator bit.
func (p *Packet) TEI() bool { return p[1]&0x80 != 0 }

// PUSI reports the payload unit start indicator bit.
func (p *Packet) PUSI() bool { return p[1]&0x40 != 0 }

// Priority reports the transport priority bit.
func (p *Packet) Priority() bool { return p[1]&0x20 != 0 }

// PID returns the 13-bit packet identifier.
func (p *Packet) PID() uint16 {
	return (uint16(p[1]&0x1f) << 8) | uint16(p[2])
}

// SetPID overwrites the 13-bit packet identifier in place.
func (p *Packet) SetPID(pid uint16) {
	p[1] = (p[1] &^ 0x1f) | byte(pid>>8)&0x1f
	p[2] = byte(pid)
}

// TSC returns the 2-bit transport scrambling control field.
func (p *Packet) TSC() byte { return (p[3] >> 6) & 0x03 }

// AFC returns the 2-bit adaptation field control field.
func (p *Packet) AFC() byte { return (p[3] >> 4) & 0x03 }

// HasAdaptationField reports whether an adaptation field is present.
func (p *Packet) HasAdaptationField() bool {
	afc := p.AFC()
	return afc == 0x2 || afc == 0x3
}

// HasPayload reports whether a payload follows (possibly after an
// adaptation field).
func (p *Packet) HasPayload() bool {
	afc := p.AFC()
	return afc == 0x1 || afc == 0x3
}

// CC returns the 4-bit continuity counter.
func (p *Packet) CC() byte { return p[3] & 0x0f }

// IsNull reports whether this packet is a null/stuffing packet (PID
// 0x1FFF), such as the filler a Processor's Null verdict writes in place
// of a packet (see MakeNull).
func (p *Packet) IsNull() bool { return p.PID() == NullPID }

// Payload returns the packet's payload bytes, accounting for an optional
// adaptation field. It returns nil if AFC indicates no payload.
func (p *Packet) Payload() []byte {
	if !p.HasPayload() {
		return nil
	}
	start := 4
	if p.HasAdaptationField() {
		afLen := int(p[4])
		start = 5 + afLen
		if start > Size {
			return nil
		}
	}
	return p[start:]
}

// MakeNull returns a null packet (PID 0x1FFF) suitable for filling a
// stuffed slot.
func MakeNull() Packet {
	var p Packet
	p[0] = SyncByte
	p.SetPID(NullPID)
	p[3] = 0x10 // AFC = payload only, CC = 0.
	for i := 4; i < Size; i++ {
		p[i] = 0xFF
	}
	return p
}
