/*
NAME
  mjd.go

DESCRIPTION
  Package mjd provides encoding and decoding of Modified Julian Date values
  as used by DVB/ATSC descriptors that carry a UTC timestamp (e.g. the time
  and date section of an SDT/TDT table companion to a PMT).

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mjd implements the Modified Julian Date codec used by broadcast
// PSI/SI tables to carry a UTC instant in 2, 4 or 5 bytes.
package mjd

import (
	"fmt"
	"time"
)

// FormatError reports malformed MJD input: a size outside {2,4,5} or
// invalid BCD digits in the time-of-day bytes.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "mjd: " + e.Reason }

// epoch is the MJD day-zero instant, 1858-11-17 00:00:00 UTC.
var epoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

// Decode converts 2, 4 or 5 raw bytes into a UTC time.Time. Bytes 0-1 hold
// the MJD day count (big-endian); bytes 2-4, if present, hold BCD-encoded
// hour, minute and second. A 4-byte input carries hour and minute only,
// and its seconds decode as zero.
func Decode(b []byte) (time.Time, error) {
	switch len(b) {
	case 2, 4, 5:
	default:
		return time.Time{}, &FormatError{Reason: fmt.Sprintf("invalid byte length %d, want 2, 4 or 5", len(b))}
	}

	mjd := float64(uint16(b[0])<<8 | uint16(b[1]))

	yPrime := int((mjd - 15078.2) / 365.25)
	mPrime := int((mjd - 14956.1 - float64(int(float64(yPrime)*365.25))) / 30.6001)
	day := int(mjd) - 14956 - int(float64(yPrime)*365.25) - int(float64(mPrime)*30.6001)
	k := 0
	if mPrime == 14 || mPrime == 15 {
		k = 1
	}
	year := 1900 + yPrime + k
	month := mPrime - 1 - 12*k

	var hour, min, sec int
	if len(b) >= 4 {
		var err error
		hour, err = decodeBCD(b[2])
		if err != nil {
			return time.Time{}, err
		}
		min, err = decodeBCD(b[3])
		if err != nil {
			return time.Time{}, err
		}
	}
	if len(b) == 5 {
		var err error
		sec, err = decodeBCD(b[4])
		if err != nil {
			return time.Time{}, err
		}
	}

	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}

// Encode is the inverse of Decode for size in {2,4,5}. It fails if size is
// not one of those, if t predates 1900-03-01 (the earliest date the MJD
// algorithm above round-trips correctly), or if size==2 and t carries a
// non-zero time of day.
func Encode(t time.Time, size int) ([]byte, error) {
	switch size {
	case 2, 4, 5:
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("invalid size %d, want 2, 4 or 5", size)}
	}

	t = t.UTC()
	if t.Before(time.Date(1900, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		return nil, &FormatError{Reason: "date predates 1900-03-01"}
	}
	if size == 2 && (t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0) {
		return nil, &FormatError{Reason: "size 2 cannot carry a non-zero time of day"}
	}

	dateOnly := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	mjd := uint16(dateOnly.Sub(epoch) / (24 * time.Hour))

	out := make([]byte, size)
	out[0] = byte(mjd >> 8)
	out[1] = byte(mjd)
	if size >= 4 {
		out[2] = encodeBCD(t.Hour())
		out[3] = encodeBCD(t.Minute())
	}
	if size == 5 {
		out[4] = encodeBCD(t.Second())
	}
	return out, nil
}

func decodeBCD(b byte) (int, error) {
	hi, lo := b>>4, b&0x0f
	if hi > 9 || lo > 9 {
		return 0, &FormatError{Reason: fmt.Sprintf("invalid BCD byte 0x%02x", b)}
	}
	return int(hi)*10 + int(lo), nil
}

func encodeBCD(v int) byte {
	return byte((v/10)<<4 | (v % 10))
}
