/*
NAME
  ioclass.go

DESCRIPTION
  Classification of plugin I/O failures into the IOError taxonomy: a
  read/write failure either stays a hard error or is demoted to a
  broken-pipe condition a stage chooses to ignore, per the OS-level
  EPIPE/ERROR_BROKEN_PIPE signal. Kept as its own narrow package so the
  platform-specific half (ioclass_unix.go / ioclass_other.go) is the only
  build-tagged surface a caller ever sees, mirroring how the teacher
  isolates device/raspivid behind Pi-only files and audio_linux.go/
  audio_windows.go behind a platform split.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ioclass classifies plugin I/O errors, demoting a broken-pipe
// condition to a recoverable class when the failing stage has opted to
// ignore aborts.
package ioclass

// IOError wraps a plugin read/write failure. BrokenPipe reports whether
// the OS signalled EPIPE (Unix) or ERROR_BROKEN_PIPE (Windows); a stage
// that opted to ignore aborts treats a broken pipe as an individual end
// rather than a Fatal.
type IOError struct {
	Err        error
	BrokenPipe bool
}

func (e *IOError) Error() string { return "ioclass: " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

// Classify wraps err as an IOError, marking BrokenPipe true if the OS
// reports a broken pipe and ignoreAborts requested that demotion. A nil
// err classifies to a nil *IOError.
func Classify(err error, ignoreAborts bool) *IOError {
	if err == nil {
		return nil
	}
	return &IOError{Err: err, BrokenPipe: ignoreAborts && isBrokenPipe(err)}
}
