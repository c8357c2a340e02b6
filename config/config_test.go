package config

import (
	"fadingrose/rosy-ledger/core/rawdb"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[database]
backend = "badger"
path = "/var/lib/rosy"

[runtime]
trace = true

[log]
level = "debug"

[genesis.alloc]
"0x00000000000000000000000000000000000000aa" = "1000"
"0x00000000000000000000000000000000000000bb" = "0x10"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, rawdb.BackendBadger, cfg.Database.Backend)
	require.Equal(t, "/var/lib/rosy", cfg.Database.Path)
	require.True(t, cfg.Runtime.Trace)
	require.Equal(t, Default().Runtime.GasLimit, cfg.Runtime.GasLimit)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, Default().Server.Listen, cfg.Server.Listen)

	alloc, err := cfg.Genesis.Balances()
	require.NoError(t, err)
	require.Len(t, alloc, 2)
	require.EqualValues(t, 1000, alloc[common.HexToAddress("0xaa")].Uint64())
	require.EqualValues(t, 16, alloc[common.HexToAddress("0xbb")].Uint64())
}

func TestLoadRejectsBadSettings(t *testing.T) {
	for name, content := range map[string]string{
		"unknown backend": "[database]\nbackend = \"postgres\"\n",
		"missing path":    "[database]\nbackend = \"leveldb\"\n",
		"bad address":     "[genesis.alloc]\n\"0xzz\" = \"1\"\n",
		"bad balance":     "[genesis.alloc]\n\"0x00000000000000000000000000000000000000aa\" = \"lots\"\n",
		"not toml":        "[database\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	require.EqualValues(t, 1024, Default().Processor().MaxDepth)
}
