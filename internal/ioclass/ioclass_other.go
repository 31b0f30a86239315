//go:build !linux && !darwin

/*
NAME
  ioclass_other.go

DESCRIPTION
  Broken-pipe detection on platforms without syscall.EPIPE (Windows),
  matching ERROR_BROKEN_PIPE (109) instead.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ioclass

import (
	"errors"
	"syscall"
)

// errorBrokenPipe is Windows' ERROR_BROKEN_PIPE.
const errorBrokenPipe = syscall.Errno(109)

func isBrokenPipe(err error) bool {
	return errors.Is(err, errorBrokenPipe)
}
