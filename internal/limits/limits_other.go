// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !linux && !darwin && !windows && !plan9

package limits

// SetLimits is a no-op on systems whose rlimit fields are not unsigned.
func SetLimits(want, least uint64) error {
	return nil
}
