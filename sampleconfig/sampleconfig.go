// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sampleconfig

// FileContents is a string containing the commented example config for
// txverify.
const FileContents = `[Application Options]

; ------------------------------------------------------------------------------
; Data settings
; ------------------------------------------------------------------------------

; The directory to store the prevout database in.  The network name is
; appended to it.  Environment variables are expanded so they may be used.
; datadir=~/.txverify/data

; Database backend of the prevout store.  One of leveldb, pebble or badger.
; dbtype=leveldb

; Add the outputs listed in a file to the prevout store before verifying.  Each
; line holds 'txid:index amount pkscripthex' and everything after a # is
; ignored.
; importprevouts=


; ------------------------------------------------------------------------------
; Network settings
; ------------------------------------------------------------------------------

; Use testnet.
; testnet=1

; Use regtest.
; regtest=1

; Use signet.
; signet=1

; Connect via a SOCKS5 proxy.  Both the RPC and the Esplora lookups use it.
; proxy=127.0.0.1:9050
; proxyuser=
; proxypass=

; Timeout of a single remote request.
; timeout=30s


; ------------------------------------------------------------------------------
; Prevout lookups
; ------------------------------------------------------------------------------

; Look up unknown prevouts over the websocket RPC server of a btcd node.  The
; default port is used when none is given.
; rpcconnect=localhost
; rpcuser=
; rpcpass=
; rpccert=~/.btcd/rpc.cert
; notls=1

; Look up unknown prevouts through an Esplora API.
; esplora=https://blockstream.info/api

; Number of times a failed Esplora request is retried.
; maxretries=3


; ------------------------------------------------------------------------------
; Verification
; ------------------------------------------------------------------------------

; The maximum number of entries in the signature verification cache.
; sigcachesize=50000

; Verify the inputs concurrently and stop at the first failure.
; parallel=1


; ------------------------------------------------------------------------------
; Debug
; ------------------------------------------------------------------------------

; Debug logging level.
; Valid levels are {trace, debug, info, warn, error, critical, off}
; You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set
; log level for individual subsystems.  Use txverify --debuglevel=show to list
; available subsystems.
; debuglevel=info

; The directory to write the log file to.
; logdir=~/.txverify/logs
`
