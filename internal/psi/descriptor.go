/*
NAME
  descriptor.go

DESCRIPTION
  DescriptorList implements the ordered (tag, length, payload) sequence
  shared by every PSI table: program-level descriptors, per-stream
  descriptors, and so on. Insertion order is preserved by serialization.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

// Descriptor is a single TLV element: tag, length (implicit in len(Data)),
// and payload.
type Descriptor struct {
	Tag  byte
	Data []byte
}

// Bytes returns the tag/length/payload encoding of d.
func (d Descriptor) Bytes() []byte {
	out := make([]byte, 2+len(d.Data))
	out[0] = d.Tag
	out[1] = byte(len(d.Data))
	copy(out[2:], d.Data)
	return out
}

// DescriptorList is an ordered sequence of descriptors.
type DescriptorList struct {
	items []Descriptor
}

// Items returns the descriptors in insertion order.
func (l *DescriptorList) Items() []Descriptor { return l.items }

// Append adds a descriptor to the end of the list.
func (l *DescriptorList) Append(d Descriptor) { l.items = append(l.items, d) }

// Add parses consecutive (tag, length, payload) triples out of b and
// appends them in order. Malformed trailing bytes (fewer than 2 bytes
// left, or a declared length longer than what remains) are discarded
// rather than causing an error, per the binary section model's tolerance
// for partial final descriptors.
func (l *DescriptorList) Add(b []byte) {
	for len(b) >= 2 {
		tag := b[0]
		n := int(b[1])
		if n > len(b)-2 {
			return
		}
		data := make([]byte, n)
		copy(data, b[2:2+n])
		l.items = append(l.items, Descriptor{Tag: tag, Data: data})
		b = b[2+n:]
	}
}

// Find looks up the first descriptor with the given tag at or after
// start, returning its index in Items() and the descriptor, or -1 and
// the zero value if none match.
func (l *DescriptorList) Find(tag byte, start int) (int, Descriptor) {
	for i := start; i < len(l.items); i++ {
		if l.items[i].Tag == tag {
			return i, l.items[i]
		}
	}
	return -1, Descriptor{}
}

// Has reports whether any descriptor with the given tag is present.
func (l *DescriptorList) Has(tag byte) bool {
	i, _ := l.Find(tag, 0)
	return i >= 0
}

// Serialize appends the tag/length/payload encoding of every descriptor,
// in insertion order, to buf and returns the result.
func (l *DescriptorList) Serialize(buf []byte) []byte {
	for _, d := range l.items {
		buf = append(buf, d.Bytes()...)
	}
	return buf
}

// LengthSerialize writes a 12-bit length prefix (top nibble set to 1,
// matching the reserved bits of program_info_length/ES_info_length)
// followed by as many descriptors as fit within remain bytes (the length
// prefix's 2 bytes count against remain). It returns the updated buffer
// and the index of the first descriptor that did not fit, which equals
// len(l.items) on success.
func (l *DescriptorList) LengthSerialize(buf []byte, remain int) ([]byte, int) {
	lenPos := len(buf)
	buf = append(buf, 0, 0)
	remain -= 2

	written := 0
	fit := len(l.items)
	for i, d := range l.items {
		db := d.Bytes()
		if len(db) > remain {
			fit = i
			break
		}
		buf = append(buf, db...)
		remain -= len(db)
		written += len(db)
	}

	buf[lenPos] = 0xF0 | byte(written>>8)&0x0F
	buf[lenPos+1] = byte(written)
	return buf, fit
}
