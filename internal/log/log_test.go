// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"
)

func TestSupportedSubsystems(t *testing.T) {
	require.Equal(t, []string{"PRVT", "SCRP", "TXVF", "VALD"},
		SupportedSubsystems())
}

func TestParseAndSetDebugLevels(t *testing.T) {
	tests := []struct {
		debugLevel string
		valid      bool
		want       map[string]btclog.Level
	}{{
		debugLevel: "debug",
		valid:      true,
		want: map[string]btclog.Level{
			"SCRP": btclog.LevelDebug,
			"TXVF": btclog.LevelDebug,
		},
	}, {
		debugLevel: "info,SCRP=trace,PRVT=warn",
		valid:      true,
		want: map[string]btclog.Level{
			"SCRP": btclog.LevelTrace,
			"PRVT": btclog.LevelWarn,
			"VALD": btclog.LevelInfo,
		},
	}, {
		debugLevel: "VALD=error",
		valid:      true,
		want: map[string]btclog.Level{
			"VALD": btclog.LevelError,
		},
	}, {
		debugLevel: "loud",
	}, {
		debugLevel: "info,SCRP",
	}, {
		debugLevel: "info,NOPE=debug",
	}, {
		debugLevel: "SCRP=loud",
	}, {
		debugLevel: "SCRP=debug=info",
	}}

	for _, test := range tests {
		err := ParseAndSetDebugLevels(test.debugLevel)
		if !test.valid {
			require.Errorf(t, err, "debug level %q", test.debugLevel)
			continue
		}
		require.NoErrorf(t, err, "debug level %q", test.debugLevel)
		for subsysID, level := range test.want {
			require.Equalf(t, level, SubsystemLoggers[subsysID].Level(),
				"debug level %q subsystem %s", test.debugLevel,
				subsysID)
		}
	}
	SetLogLevels("off")
}

func TestInitLogRotator(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "txverify.log")
	require.NoError(t, InitLogRotator(logFile))
	defer func() {
		LogRotator.Close()
		LogRotator = nil
	}()

	_, err := logWriter{}.Write([]byte("hello\n"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Dir(logFile))
	require.NoError(t, err)
}
