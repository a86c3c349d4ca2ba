// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build linux || darwin

package limits

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSetLimits(t *testing.T) {
	var before unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &before))

	// A limit already met is left alone.
	require.NoError(t, SetLimits(before.Cur, 1))
	var after unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &after))
	require.Equal(t, before, after)

	// A minimum above the hard limit can never be met.
	if before.Max != unix.RLIM_INFINITY {
		err := SetLimits(before.Max+1, before.Max+1)
		require.ErrorContains(t, err, "file descriptors")
	}
}
