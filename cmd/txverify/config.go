// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcverify/internal/log"
	"github.com/btcsuite/btcverify/internal/version"
	"github.com/btcsuite/btcverify/prevout"
	"github.com/btcsuite/btcverify/sampleconfig"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "txverify.conf"
	defaultLogFilename    = "txverify.log"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogLevel       = "info"
	defaultDbType         = prevout.DbTypeLevelDB
	defaultSigCacheSize   = 50000
)

var (
	txverifyHomeDir   = btcutil.AppDataDir("txverify", false)
	btcdHomeDir       = btcutil.AppDataDir("btcd", false)
	defaultConfigFile = filepath.Join(txverifyHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(txverifyHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(txverifyHomeDir, defaultLogDirname)
	defaultRPCCert    = filepath.Join(btcdHomeDir, "rpc.cert")
	btcdConfigFile    = filepath.Join(btcdHomeDir, "btcd.conf")
)

// config defines the configuration options for txverify.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion    bool          `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile     string        `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir        string        `short:"b" long:"datadir" description:"Directory to store the prevout database"`
	LogDir         string        `long:"logdir" description:"Directory to log output"`
	DbType         string        `long:"dbtype" description:"Database backend to use for the prevout store {leveldb, pebble, badger}"`
	DebugLevel     string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical, off} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	TestNet3       bool          `long:"testnet" description:"Use the test network"`
	RegressionTest bool          `long:"regtest" description:"Use the regression test network"`
	SigNet         bool          `long:"signet" description:"Use the signet test network"`
	Tx             string        `short:"t" long:"tx" description:"Hex encoded transaction to verify"`
	TxFile         string        `short:"f" long:"txfile" description:"File holding the hex encoded transaction to verify"`
	ImportPrevOuts string        `short:"i" long:"importprevouts" description:"File of 'txid:index amount pkscripthex' lines to add to the prevout store"`
	ListPrevOuts   bool          `long:"listprevouts" description:"List every output in the prevout store"`
	Esplora        string        `long:"esplora" description:"Base URL of an Esplora API used to look up unknown prevouts"`
	RPCConnect     string        `short:"c" long:"rpcconnect" description:"Hostname/IP and port of a btcd websocket RPC server used to look up unknown prevouts"`
	RPCUser        string        `short:"u" long:"rpcuser" description:"Username for RPC connections"`
	RPCPass        string        `short:"P" long:"rpcpass" default-mask:"-" description:"Password for RPC connections"`
	RPCCert        string        `long:"rpccert" description:"RPC server certificate chain for validation"`
	NoTLS          bool          `long:"notls" description:"Disable TLS for the RPC connection"`
	Proxy          string        `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser      string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass      string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	MaxRetries     int           `long:"maxretries" description:"Number of times a failed Esplora request is retried"`
	Timeout        time.Duration `long:"timeout" description:"Timeout of a single remote request.  Valid time units are {s, m, h}"`
	SigCacheSize   uint          `long:"sigcachesize" description:"The maximum number of entries in the signature verification cache"`
	Parallel       bool          `long:"parallel" description:"Verify the inputs concurrently and stop at the first failure"`

	params *chaincfg.Params
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(txverifyHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// createDefaultConfigFile writes the sample config to destinationPath.  The
// RPC credentials of a btcd config at btcdConfigPath, if there is one, are
// appended so lookups against the local node work out of the box.
func createDefaultConfigFile(destinationPath, btcdConfigPath string) error {
	var creds string
	if content, err := os.ReadFile(btcdConfigPath); err == nil {
		rpcUserRegexp := regexp.MustCompile(`(?m)^\s*rpcuser=([^\s]+)`)
		rpcPassRegexp := regexp.MustCompile(`(?m)^\s*rpcpass=([^\s]+)`)
		user := rpcUserRegexp.FindSubmatch(content)
		pass := rpcPassRegexp.FindSubmatch(content)
		if user != nil && pass != nil {
			creds = fmt.Sprintf("\nrpcuser=%s\nrpcpass=%s\n", user[1],
				pass[1])
		}
	}

	// Create the destination directory if it does not exists.
	err := os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	return os.WriteFile(destinationPath,
		[]byte(sampleconfig.FileContents+creds), 0600)
}

// validDbType returns whether or not dbType is a supported database type.
func validDbType(dbType string) bool {
	for _, knownType := range prevout.SupportedDbTypes {
		if dbType == knownType {
			return true
		}
	}
	return false
}

// defaultRPCPort returns the websocket RPC port btcd listens on for params.
func defaultRPCPort(params *chaincfg.Params) string {
	switch params.Net {
	case chaincfg.TestNet3Params.Net, chaincfg.RegressionNetParams.Net:
		return "18334"
	case chaincfg.SigNetParams.Net:
		return "38332"
	}
	return "8334"
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// loadConfig initializes and parses the config using a config file and the
// passed command line arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func loadConfig(args []string) (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile:   defaultConfigFile,
		DataDir:      defaultDataDir,
		LogDir:       defaultLogDir,
		DbType:       defaultDbType,
		DebugLevel:   defaultLogLevel,
		RPCCert:      defaultRPCCert,
		MaxRetries:   prevout.DefaultMaxRetries,
		Timeout:      prevout.DefaultRequestTimeout,
		SigCacheSize: defaultSigCacheSize,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors can be ignored
	// here since they will be caught be the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.None)
	_, _ = preParser.ParseArgs(args)

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		appName := filepath.Base(os.Args[0])
		appName = strings.TrimSuffix(appName, filepath.Ext(appName))
		fmt.Println(appName, "version", version.String())
		os.Exit(0)
	}

	// Write the sample config on first run.
	if preCfg.ConfigFile == defaultConfigFile && !fileExists(defaultConfigFile) {
		err := createDefaultConfigFile(defaultConfigFile, btcdConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a default config "+
				"file: %v\n", err)
		}
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// fail shows the usage and returns an invalid configuration error.
	fail := func(format string, a ...interface{}) (*config, []string, error) {
		parser.WriteHelp(os.Stderr)
		return nil, nil, fmt.Errorf("loadConfig: "+format, a...)
	}

	// Multiple networks can't be selected simultaneously.
	cfg.params = &chaincfg.MainNetParams
	numNets := 0
	if cfg.TestNet3 {
		numNets++
		cfg.params = &chaincfg.TestNet3Params
	}
	if cfg.RegressionTest {
		numNets++
		cfg.params = &chaincfg.RegressionNetParams
	}
	if cfg.SigNet {
		numNets++
		cfg.params = &chaincfg.SigNetParams
	}
	if numNets > 1 {
		return fail("the testnet, regtest and signet params can't be " +
			"used together -- choose one of the three")
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", log.SupportedSubsystems())
		os.Exit(0)
	}

	// Validate and apply the debug level.
	if err := log.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return fail("%v", err)
	}

	// Validate database type.
	if !validDbType(cfg.DbType) {
		return fail("the specified database type [%v] is invalid -- "+
			"supported types %v", cfg.DbType, prevout.SupportedDbTypes)
	}

	// Exactly one transaction source is needed unless only the store is
	// being managed.
	switch {
	case cfg.Tx != "" && cfg.TxFile != "":
		return fail("the --tx and --txfile options can not be mixed")
	case cfg.Tx == "" && cfg.TxFile == "" && cfg.ImportPrevOuts == "" &&
		!cfg.ListPrevOuts:
		return fail("a transaction to verify must be given with --tx " +
			"or --txfile")
	}

	if cfg.MaxRetries < 0 {
		return fail("the maxretries option may not be negative -- "+
			"parsed [%d]", cfg.MaxRetries)
	}
	if cfg.Timeout < time.Second {
		return fail("the timeout option may not be less than 1s -- "+
			"parsed [%v]", cfg.Timeout)
	}
	if cfg.Esplora != "" && !strings.HasPrefix(cfg.Esplora, "http://") &&
		!strings.HasPrefix(cfg.Esplora, "https://") {

		return fail("the esplora option must be an http or https URL "+
			"-- parsed [%v]", cfg.Esplora)
	}
	if cfg.Proxy == "" && (cfg.ProxyUser != "" || cfg.ProxyPass != "") {
		return fail("the --proxyuser and --proxypass options require " +
			"--proxy to be set")
	}

	// Append the network type to the data and log directories so they are
	// "namespaced" per network.  Outputs of one network are meaningless on
	// another.
	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir),
		cfg.params.Name)
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir),
		cfg.params.Name)
	cfg.RPCCert = cleanAndExpandPath(cfg.RPCCert)
	if cfg.TxFile != "" {
		cfg.TxFile = cleanAndExpandPath(cfg.TxFile)
	}
	if cfg.ImportPrevOuts != "" {
		cfg.ImportPrevOuts = cleanAndExpandPath(cfg.ImportPrevOuts)
	}
	if cfg.RPCConnect != "" {
		cfg.RPCConnect = normalizeAddress(cfg.RPCConnect,
			defaultRPCPort(cfg.params))
	}

	return &cfg, remainingArgs, nil
}
