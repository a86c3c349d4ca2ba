// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package sampleconfig provides a single constant that contains the contents of
the sample configuration file for txverify.  It is written out as the default
configuration file on first run so every option is documented in place.
*/
package sampleconfig
