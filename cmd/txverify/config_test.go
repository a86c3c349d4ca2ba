// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcverify/internal/log"
	"github.com/btcsuite/btcverify/prevout"
	"github.com/stretchr/testify/require"
)

// testArgs returns the arguments pointing every directory at a fresh
// temporary one, followed by extra.
func testArgs(t *testing.T, extra ...string) []string {
	t.Helper()

	dir := t.TempDir()
	args := []string{
		"--configfile=" + filepath.Join(dir, "missing.conf"),
		"--datadir=" + filepath.Join(dir, "data"),
		"--logdir=" + filepath.Join(dir, "logs"),
	}
	return append(args, extra...)
}

func TestLoadConfigDefaults(t *testing.T) {
	defer log.SetLogLevels("off")

	args := testArgs(t, "--tx=00")
	cfg, _, err := loadConfig(args)
	require.NoError(t, err)

	require.Equal(t, &chaincfg.MainNetParams, cfg.params)
	require.Equal(t, prevout.DbTypeLevelDB, cfg.DbType)
	require.Equal(t, "mainnet", filepath.Base(cfg.DataDir))
	require.Equal(t, "mainnet", filepath.Base(cfg.LogDir))
	require.Equal(t, prevout.DefaultMaxRetries, cfg.MaxRetries)
	require.Equal(t, prevout.DefaultRequestTimeout, cfg.Timeout)
	require.Equal(t, uint(defaultSigCacheSize), cfg.SigCacheSize)
	require.False(t, cfg.Parallel)
}

func TestLoadConfigOptions(t *testing.T) {
	defer log.SetLogLevels("off")

	args := testArgs(t, "--txfile=tx.hex", "--testnet", "--dbtype=badger",
		"--rpcconnect=127.0.0.1", "--esplora=https://example.com/api",
		"--maxretries=0", "--timeout=5s", "--debuglevel=info,PRVT=debug",
		"--parallel")
	cfg, _, err := loadConfig(args)
	require.NoError(t, err)

	require.Equal(t, &chaincfg.TestNet3Params, cfg.params)
	require.Equal(t, "testnet3", filepath.Base(cfg.DataDir))
	require.Equal(t, prevout.DbTypeBadger, cfg.DbType)
	require.Equal(t, "127.0.0.1:18334", cfg.RPCConnect)
	require.Equal(t, 0, cfg.MaxRetries)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, "tx.hex", cfg.TxFile)
	require.True(t, cfg.Parallel)
}

// TestLoadConfigFile ensures options are read from the config file and the
// command line takes precedence over them.
func TestLoadConfigFile(t *testing.T) {
	defer log.SetLogLevels("off")

	dir := t.TempDir()
	confFile := filepath.Join(dir, "txverify.conf")
	conf := "[Application Options]\ndbtype=pebble\nsigcachesize=10\n"
	require.NoError(t, os.WriteFile(confFile, []byte(conf), 0600))

	cfg, _, err := loadConfig([]string{
		"--configfile=" + confFile,
		"--datadir=" + filepath.Join(dir, "data"),
		"--listprevouts",
		"--sigcachesize=20",
	})
	require.NoError(t, err)
	require.Equal(t, prevout.DbTypePebble, cfg.DbType)
	require.Equal(t, uint(20), cfg.SigCacheSize)
}

func TestLoadConfigErrors(t *testing.T) {
	defer log.SetLogLevels("off")

	tests := []struct {
		name string
		args []string
	}{
		{"no transaction", nil},
		{"tx and txfile", []string{"--tx=00", "--txfile=tx.hex"}},
		{"two networks", []string{"--tx=00", "--testnet", "--regtest"}},
		{"bad dbtype", []string{"--tx=00", "--dbtype=sqlite"}},
		{"bad debuglevel", []string{"--tx=00", "--debuglevel=loud"}},
		{"bad subsystem", []string{"--tx=00", "--debuglevel=NOPE=info"}},
		{"negative retries", []string{"--tx=00", "--maxretries=-1"}},
		{"short timeout", []string{"--tx=00", "--timeout=10ms"}},
		{"esplora scheme", []string{"--tx=00", "--esplora=example.com"}},
		{"proxy user alone", []string{"--tx=00", "--proxyuser=u"}},
		{"unknown flag", []string{"--tx=00", "--nosuchflag"}},
	}
	for _, test := range tests {
		_, _, err := loadConfig(testArgs(t, test.args...))
		require.Errorf(t, err, test.name)
	}
}

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	require.Equal(t, "localhost:8334", normalizeAddress("localhost", "8334"))
	require.Equal(t, "localhost:1234", normalizeAddress("localhost:1234", "8334"))
	require.Equal(t, "38332", defaultRPCPort(&chaincfg.SigNetParams))
	require.Equal(t, "18334", defaultRPCPort(&chaincfg.RegressionNetParams))
	require.Equal(t, "8334", defaultRPCPort(&chaincfg.MainNetParams))
}

// TestCreateDefaultConfigFile ensures the sample config parses and picks up
// the RPC credentials of a local btcd config.
func TestCreateDefaultConfigFile(t *testing.T) {
	defer log.SetLogLevels("off")

	dir := t.TempDir()
	btcdConf := filepath.Join(dir, "btcd.conf")
	require.NoError(t, os.WriteFile(btcdConf,
		[]byte("[Application Options]\nrpcuser=alice\n  rpcpass=secret\n"),
		0600))

	confFile := filepath.Join(dir, "nested", "txverify.conf")
	require.NoError(t, createDefaultConfigFile(confFile, btcdConf))
	require.True(t, fileExists(confFile))

	cfg, _, err := loadConfig(append(testArgs(t, "--tx=00"),
		"--configfile="+confFile))
	require.NoError(t, err)
	require.Equal(t, "alice", cfg.RPCUser)
	require.Equal(t, "secret", cfg.RPCPass)
	require.Equal(t, prevout.DbTypeLevelDB, cfg.DbType)

	// Without a btcd config only the commented sample is written.
	confFile = filepath.Join(dir, "plain.conf")
	err = createDefaultConfigFile(confFile, filepath.Join(dir, "none.conf"))
	require.NoError(t, err)
	cfg, _, err = loadConfig(append(testArgs(t, "--tx=00"),
		"--configfile="+confFile))
	require.NoError(t, err)
	require.Empty(t, cfg.RPCUser)
	require.Equal(t, uint(defaultSigCacheSize), cfg.SigCacheSize)
}
