/*
NAME
  crc.go

DESCRIPTION
  CRC-32/MPEG-2 as used by the trailer of every PSI long section: polynomial
  0x04C11DB7, initial value 0xFFFFFFFF, no final XOR, non-reflected.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import (
	"encoding/binary"
	"hash/crc32"
	"math/bits"
)

var crcTable = crc32MakeTable(bits.Reverse32(crc32.IEEE))

func crc32MakeTable(poly uint32) *crc32.Table {
	var t crc32.Table
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

func crc32Update(crc uint32, tab *crc32.Table, p []byte) uint32 {
	for _, v := range p {
		crc = tab[byte(crc>>24)^v] ^ (crc << 8)
	}
	return crc
}

// computeCRC computes the CRC-32/MPEG-2 checksum of b.
func computeCRC(b []byte) uint32 {
	return crc32Update(0xffffffff, crcTable, b)
}

// appendCRC appends the big-endian CRC-32/MPEG-2 checksum of b to b.
func appendCRC(b []byte) []byte {
	crc := computeCRC(b)
	out := make([]byte, len(b)+4)
	copy(out, b)
	binary.BigEndian.PutUint32(out[len(b):], crc)
	return out
}
