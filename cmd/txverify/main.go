// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// txverify checks that a Bitcoin transaction is allowed to spend the outputs
// it references.  Spent outputs come from a local prevout store, which can
// be filled from a file, and unknown ones are looked up over a btcd
// websocket RPC connection and an Esplora API.
//
// The exit status is 0 for a valid transaction, 1 for an invalid one and 2
// when it could not be verified.
package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcverify/internal/limits"
	"github.com/btcsuite/btcverify/internal/log"
	"github.com/btcsuite/btcverify/internal/version"
	"github.com/btcsuite/btcverify/prevout"
	"github.com/btcsuite/btcverify/txscript"
	"github.com/btcsuite/btcverify/validate"
	"github.com/btcsuite/go-socks/socks"
)

var txvfLog = log.TxvfLog

// readTx returns the transaction given with --tx or --txfile, or nil when
// neither was given.
func readTx(cfg *config) (*wire.MsgTx, error) {
	txHex := cfg.Tx
	if cfg.TxFile != "" {
		contents, err := os.ReadFile(cfg.TxFile)
		if err != nil {
			return nil, err
		}
		txHex = string(contents)
	}
	txHex = strings.TrimSpace(txHex)
	if txHex == "" {
		return nil, nil
	}

	serialized, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("transaction is not valid hex: %w", err)
	}
	r := bytes.NewReader(serialized)
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(r); err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("transaction is followed by %d unexpected "+
			"bytes", r.Len())
	}
	return tx, nil
}

// remoteSources returns the configured remote prevout sources, RPC first,
// and a function closing them.
func remoteSources(cfg *config) ([]prevout.ContextFetcher, func(), error) {
	var proxy *socks.Proxy
	if cfg.Proxy != "" {
		proxy = &socks.Proxy{
			Addr:     cfg.Proxy,
			Username: cfg.ProxyUser,
			Password: cfg.ProxyPass,
		}
	}

	var (
		sources []prevout.ContextFetcher
		closers []func() error
	)
	cleanup := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}

	if cfg.RPCConnect != "" {
		var certs []byte
		if !cfg.NoTLS {
			var err error
			certs, err = os.ReadFile(cfg.RPCCert)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, nil, err
			}
		}
		rpc, err := prevout.NewRPCFetcher(&prevout.RPCConfig{
			Host:           cfg.RPCConnect,
			User:           cfg.RPCUser,
			Pass:           cfg.RPCPass,
			Certificates:   certs,
			DisableTLS:     cfg.NoTLS,
			Proxy:          proxy,
			RequestTimeout: cfg.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, rpc)
		closers = append(closers, rpc.Close)
	}

	if cfg.Esplora != "" {
		esplora := prevout.NewEsploraFetcher(&prevout.EsploraConfig{
			URL:            cfg.Esplora,
			RequestTimeout: cfg.Timeout,
			MaxRetries:     cfg.MaxRetries,
			Proxy:          proxy,
		})
		sources = append(sources, esplora)
		closers = append(closers, esplora.Close)
	}

	return sources, cleanup, nil
}

const (
	// fileLimitWant and fileLimitMin bound the open file limit requested
	// before the prevout store is opened.
	fileLimitWant = 2048
	fileLimitMin  = 1024
)

// txverifyMain is the real main function for txverify.  It is necessary to
// work around the fact that deferred functions do not run when os.Exit() is
// called.  It reports whether the transaction, if any, is valid.
func txverifyMain() (bool, error) {
	cfg, _, err := loadConfig(os.Args[1:])
	if err != nil {
		return false, err
	}

	err = log.InitLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err != nil {
		return false, err
	}
	defer log.LogRotator.Close()

	txvfLog.Infof("Version %s (network %s)", version.String(),
		cfg.params.Name)

	tx, err := readTx(cfg)
	if err != nil {
		return false, err
	}

	// The database backends keep many table files open at once.
	if err := limits.SetLimits(fileLimitWant, fileLimitMin); err != nil {
		txvfLog.Warnf("Unable to raise the open file limit: %v", err)
	}

	store, err := prevout.OpenStore(cfg.DbType, cfg.DataDir)
	if err != nil {
		return false, err
	}
	defer store.Close()

	if cfg.ImportPrevOuts != "" {
		n, err := importPrevOuts(store, cfg.ImportPrevOuts)
		if err != nil {
			return false, err
		}
		txvfLog.Infof("Imported %d outputs from %s", n, cfg.ImportPrevOuts)
	}
	if cfg.ListPrevOuts {
		if err := listPrevOuts(store, os.Stdout); err != nil {
			return false, err
		}
	}
	if tx == nil {
		return true, nil
	}

	sources, closeSources, err := remoteSources(cfg)
	if err != nil {
		return false, err
	}
	defer closeSources()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer cancel()

	fetcher := prevout.NewChainFetcher(store, sources...)
	prevOuts, err := prevout.Prefetch(ctx, fetcher, tx)
	if err != nil {
		return false, err
	}
	txvfLog.Debugf("Resolved %d spent outputs", prevOuts.Len())

	sigCache := txscript.NewSigCache(cfg.SigCacheSize)
	report := verifyTx(tx, prevOuts, sigCache, cfg.Parallel)
	if err := report.write(os.Stdout); err != nil {
		return false, err
	}
	if isRuleError(report.err, validate.ErrMissingTxOut) {
		return false, errors.New("not every spent output could be " +
			"resolved")
	}
	return report.valid, nil
}

func main() {
	valid, err := txverifyMain()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if !valid {
		os.Exit(1)
	}
}
