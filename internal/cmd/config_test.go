package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/errext/exitcodes"
	"github.com/purplejs/purplejs/internal/cmd/tests"
	"github.com/purplejs/purplejs/js"
	"github.com/purplejs/purplejs/lib/fsext"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	ts := tests.NewGlobalTestState(t)
	flags := serveFlagSet()
	require.NoError(t, flags.Parse(nil))

	conf, err := getConsolidatedConfig(ts.GlobalState, flags)
	require.NoError(t, err)
	assert.Equal(t, null.StringFrom("localhost:8080"), conf.Address)
	assert.Equal(t, js.RunModeProd, conf.Mode())
	assert.Equal(t, int64(4), conf.PoolSize.Int64)
	assert.Equal(t, 30*time.Second, conf.ScriptTimeout.TimeDuration())
	assert.Equal(t, int64(10<<20), conf.MaxBodySize.Int64)
	assert.Equal(t, []string{"br", "zstd", "gzip", "deflate"}, conf.CompressionList())
	assert.Equal(t, "none", conf.TracesOutput.String)
}

func TestConfigConsolidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		file     string
		fileName string
		env      map[string]string
		args     []string
		check    func(t *testing.T, conf Config)
	}{
		{
			name:     "yaml file",
			fileName: "config.yaml",
			file:     "address: ':9000'\npoolSize: 8\nscriptTimeout: 5s\nenv:\n  GREETING: hello\n",
			check: func(t *testing.T, conf Config) {
				assert.Equal(t, ":9000", conf.Address.String)
				assert.Equal(t, int64(8), conf.PoolSize.Int64)
				assert.Equal(t, 5*time.Second, conf.ScriptTimeout.TimeDuration())
				assert.Equal(t, map[string]string{"GREETING": "hello"}, conf.Env)
			},
		},
		{
			name:     "json file",
			fileName: "config.json",
			file:     `{"runMode": "dev", "rateLimit": 2.5, "compression": "none"}`,
			check: func(t *testing.T, conf Config) {
				assert.Equal(t, js.RunModeDev, conf.Mode())
				assert.Equal(t, 2.5, conf.RateLimit.Float64)
				assert.Nil(t, conf.CompressionList())
			},
		},
		{
			name:     "env overrides file",
			fileName: "config.yaml",
			file:     "poolSize: 8\n",
			env:      map[string]string{"PURPLE_POOL_SIZE": "2", "PURPLE_SCRIPT_TIMEOUT": "1500"},
			check: func(t *testing.T, conf Config) {
				assert.Equal(t, int64(2), conf.PoolSize.Int64)
				assert.Equal(t, 1500*time.Millisecond, conf.ScriptTimeout.TimeDuration())
			},
		},
		{
			name:     "flags override env",
			fileName: "config.yaml",
			file:     "env:\n  A: file\n  B: file\n",
			env:      map[string]string{"PURPLE_POOL_SIZE": "2", "PURPLE_COMPRESSION": "gzip"},
			args:     []string{"--pool-size", "3", "-e", "B=flag"},
			check: func(t *testing.T, conf Config) {
				assert.Equal(t, int64(3), conf.PoolSize.Int64)
				assert.Equal(t, []string{"gzip"}, conf.CompressionList())
				assert.Equal(t, map[string]string{"A": "file", "B": "flag"}, conf.Env)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := tests.NewGlobalTestState(t)
			ts.Flags.ConfigFilePath = "/etc/purple/" + tc.fileName
			require.NoError(t, fsext.WriteFile(ts.FS, ts.Flags.ConfigFilePath, []byte(tc.file), 0o644))
			for k, v := range tc.env {
				ts.Env[k] = v
			}

			flags := serveFlagSet()
			require.NoError(t, flags.Parse(tc.args))
			conf, err := getConsolidatedConfig(ts.GlobalState, flags)
			require.NoError(t, err)
			tc.check(t, conf)
		})
	}
}

func TestConfigErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		file string
		env  map[string]string
		args []string
	}{
		{name: "bad run mode", args: []string{"--run-mode", "staging"}},
		{name: "bad pool size", args: []string{"--pool-size", "0"}},
		{name: "bad env flag", args: []string{"-e", "NOVALUE"}},
		{name: "bad env var", env: map[string]string{"PURPLE_POOL_SIZE": "many"}},
		{name: "bad file", file: "poolSize: [1, 2"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := tests.NewGlobalTestState(t)
			if tc.file != "" {
				ts.Flags.ConfigFilePath = "/etc/purple/config.yaml"
				require.NoError(t, fsext.WriteFile(ts.FS, ts.Flags.ConfigFilePath, []byte(tc.file), 0o644))
			}
			for k, v := range tc.env {
				ts.Env[k] = v
			}

			flags := serveFlagSet()
			require.NoError(t, flags.Parse(tc.args))
			_, err := getConsolidatedConfig(ts.GlobalState, flags)
			require.Error(t, err)

			var ecerr errext.HasExitCode
			require.ErrorAs(t, err, &ecerr)
			assert.Equal(t, exitcodes.InvalidConfig, ecerr.ExitCode())
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	t.Parallel()
	ts := tests.NewGlobalTestState(t)
	ts.Flags.ConfigFilePath = "/nowhere/config.yaml"

	_, err := readDiskConfig(ts.GlobalState)
	assert.ErrorContains(t, err, "couldn't read the config file")
}
