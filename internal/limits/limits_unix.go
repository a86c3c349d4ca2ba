// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build linux || darwin

package limits

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetLimits raises the soft limit on open files to want, or to the hard limit
// when that is lower.  It fails when the hard limit is below least.
func SetLimits(want, least uint64) error {
	var rLimit unix.Rlimit
	err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		return err
	}
	if rLimit.Cur >= want {
		return nil
	}
	if rLimit.Max < least {
		return fmt.Errorf("need at least %v file descriptors, hard "+
			"limit is %v", least, rLimit.Max)
	}
	if rLimit.Max < want {
		rLimit.Cur = rLimit.Max
	} else {
		rLimit.Cur = want
	}
	err = unix.Setrlimit(unix.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		// try min value
		rLimit.Cur = least
		return unix.Setrlimit(unix.RLIMIT_NOFILE, &rLimit)
	}

	return nil
}
