package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/purplejs/purplejs/cmd/state"
	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/errext/exitcodes"
	"github.com/purplejs/purplejs/js"
	"github.com/purplejs/purplejs/lib/fsext"
	"github.com/purplejs/purplejs/lib/types"
)

// Config is the configuration of the serve and run commands.
type Config struct {
	Address       null.String        `json:"address" envconfig:"PURPLE_ADDRESS"`
	RunMode       null.String        `json:"runMode" envconfig:"PURPLE_RUN_MODE"`
	PoolSize      null.Int           `json:"poolSize" envconfig:"PURPLE_POOL_SIZE"`
	ScriptTimeout types.NullDuration `json:"scriptTimeout" envconfig:"PURPLE_SCRIPT_TIMEOUT"`
	MaxBodySize   null.Int           `json:"maxBodySize" envconfig:"PURPLE_MAX_BODY_SIZE"`
	RateLimit     null.Float         `json:"rateLimit" envconfig:"PURPLE_RATE_LIMIT"`
	RateBurst     null.Int           `json:"rateBurst" envconfig:"PURPLE_RATE_BURST"`
	Compression   null.String        `json:"compression" envconfig:"PURPLE_COMPRESSION"`
	TracesOutput  null.String        `json:"tracesOutput" envconfig:"PURPLE_TRACES_OUTPUT"`
	CacheTime     types.NullDuration `json:"cacheTime" envconfig:"PURPLE_CACHE_TIME"`

	// Env is passed to scripts.
	Env map[string]string `json:"env" ignored:"true"`
}

// Apply returns c with the valid values of cfg applied on top.
func (c Config) Apply(cfg Config) Config {
	if cfg.Address.Valid {
		c.Address = cfg.Address
	}
	if cfg.RunMode.Valid {
		c.RunMode = cfg.RunMode
	}
	if cfg.PoolSize.Valid {
		c.PoolSize = cfg.PoolSize
	}
	if cfg.ScriptTimeout.Valid {
		c.ScriptTimeout = cfg.ScriptTimeout
	}
	if cfg.MaxBodySize.Valid {
		c.MaxBodySize = cfg.MaxBodySize
	}
	if cfg.RateLimit.Valid {
		c.RateLimit = cfg.RateLimit
	}
	if cfg.RateBurst.Valid {
		c.RateBurst = cfg.RateBurst
	}
	if cfg.Compression.Valid {
		c.Compression = cfg.Compression
	}
	if cfg.TracesOutput.Valid {
		c.TracesOutput = cfg.TracesOutput
	}
	if cfg.CacheTime.Valid {
		c.CacheTime = cfg.CacheTime
	}
	if len(cfg.Env) > 0 {
		env := make(map[string]string, len(c.Env)+len(cfg.Env))
		for k, v := range c.Env {
			env[k] = v
		}
		for k, v := range cfg.Env {
			env[k] = v
		}
		c.Env = env
	}
	return c
}

// Mode returns the parsed run mode.
func (c Config) Mode() js.RunMode {
	mode, _ := js.ParseRunMode(c.RunMode.String)
	return mode
}

// CompressionList returns the configured encodings in order of preference.
func (c Config) CompressionList() []string {
	if !c.Compression.Valid || c.Compression.String == "" || c.Compression.String == "none" {
		return nil
	}
	var list []string
	for _, enc := range strings.Split(c.Compression.String, ",") {
		if enc = strings.TrimSpace(enc); enc != "" {
			list = append(list, strings.ToLower(enc))
		}
	}
	return list
}

// Validate checks the consolidated configuration.
func (c Config) Validate() []error {
	var errs []error
	if _, err := js.ParseRunMode(c.RunMode.String); err != nil {
		errs = append(errs, err)
	}
	if c.PoolSize.Int64 < 1 {
		errs = append(errs, fmt.Errorf("the pool size must be at least 1, got %d", c.PoolSize.Int64))
	}
	if c.ScriptTimeout.Duration < 0 {
		errs = append(errs, errors.New("the script timeout can't be negative"))
	}
	if c.MaxBodySize.Int64 < 0 {
		errs = append(errs, errors.New("the max body size can't be negative"))
	}
	if c.RateLimit.Float64 < 0 {
		errs = append(errs, errors.New("the rate limit can't be negative"))
	}
	return errs
}

func serveFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", 0)
	flags.SortFlags = false
	flags.StringP("address", "a", "localhost:8080", "address the server listens on")
	flags.Int64("pool-size", 4, "number of script engines serving requests concurrently")
	flags.Int64("max-body-size", 10<<20, "maximum size of request bodies in bytes")
	flags.Float64("rate-limit", 0, "maximum number of requests per second, 0 disables it")
	flags.Int64("rate-burst", 0, "number of requests accepted at once above the rate limit")
	flags.String("compression", "br,zstd,gzip,deflate",
		"response encodings in order of preference, or none")
	flags.String("traces-output", "none", "where request spans are sent: none or otel[=<endpoint>,<opts>]")
	flags.AddFlagSet(engineFlagSet())
	return flags
}

func engineFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", 0)
	flags.SortFlags = false
	flags.String("run-mode", "prod", "run mode of the application: `prod`, dev or test")
	flags.Duration("script-timeout", 30*time.Second, "interrupt scripts running longer than this, 0 disables it")
	flags.Duration("cache-time", 0, "how long script files are cached, 0 caches them until restart")
	flags.StringArrayP("env", "e", nil, "add an environment variable for scripts: `VAR=value`")
	return flags
}

// getConfig gets configuration from CLI flags. Commands may define only
// some of the config flags.
func getConfig(flags *pflag.FlagSet) (Config, error) {
	var conf Config
	has := func(key string) bool { return flags.Lookup(key) != nil }

	if has("address") {
		conf.Address = getNullString(flags, "address")
	}
	if has("run-mode") {
		conf.RunMode = getNullString(flags, "run-mode")
	}
	if has("pool-size") {
		conf.PoolSize = getNullInt64(flags, "pool-size")
	}
	if has("script-timeout") {
		conf.ScriptTimeout = getNullDuration(flags, "script-timeout")
	}
	if has("max-body-size") {
		conf.MaxBodySize = getNullInt64(flags, "max-body-size")
	}
	if has("rate-limit") {
		conf.RateLimit = getNullFloat64(flags, "rate-limit")
	}
	if has("rate-burst") {
		conf.RateBurst = getNullInt64(flags, "rate-burst")
	}
	if has("compression") {
		conf.Compression = getNullString(flags, "compression")
	}
	if has("traces-output") {
		conf.TracesOutput = getNullString(flags, "traces-output")
	}
	if has("cache-time") {
		conf.CacheTime = getNullDuration(flags, "cache-time")
	}
	if !has("env") {
		return conf, nil
	}

	envVars, err := flags.GetStringArray("env")
	if err != nil {
		return conf, err
	}
	for _, kv := range envVars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return conf, fmt.Errorf("invalid environment variable %q, it should be in the form VAR=value", kv)
		}
		if conf.Env == nil {
			conf.Env = make(map[string]string)
		}
		conf.Env[k] = v
	}
	return conf, nil
}

// readDiskConfig reads a YAML or JSON configuration file. A missing file at
// the default location is not an error.
func readDiskConfig(gs *state.GlobalState) (Config, error) {
	path := gs.Flags.ConfigFilePath
	data, err := fsext.ReadFile(gs.FS, path)
	if errors.Is(err, fs.ErrNotExist) && path == gs.DefaultFlags.ConfigFilePath {
		return Config{}, nil
	} else if err != nil {
		return Config{}, fmt.Errorf("couldn't read the config file %q: %w", path, err)
	}

	var conf Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &conf)
	} else {
		err = unmarshalYAML(data, &conf)
	}
	if err != nil {
		return Config{}, fmt.Errorf("couldn't parse the config file %q: %w", path, err)
	}
	return conf, nil
}

// unmarshalYAML decodes YAML through JSON, so the null types read it the
// same way they read JSON.
func unmarshalYAML(data []byte, v interface{}) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// readEnvConfig reads configuration variables from the environment.
func readEnvConfig(env map[string]string) (Config, error) {
	var conf Config
	err := envconfig.Process("", &conf, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	return conf, err
}

// getConsolidatedConfig merges the configuration sources. The flag defaults
// are the lowest priority, followed by the config file, the environment and
// the flags that were set explicitly.
func getConsolidatedConfig(gs *state.GlobalState, flags *pflag.FlagSet) (Config, error) {
	cliConf, err := getConfig(flags)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	fileConf, err := readDiskConfig(gs)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	envConf, err := readEnvConfig(gs.Env)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	defaults, err := getConfig(serveFlagSet())
	if err != nil {
		return Config{}, err
	}
	conf := withDefaults(defaults).Apply(fileConf).Apply(envConf).Apply(cliConf)

	if errs := conf.Validate(); len(errs) > 0 {
		return conf, errext.WithExitCodeIfNone(
			fmt.Errorf("the configuration is invalid: %w", errors.Join(errs...)), exitcodes.InvalidConfig)
	}
	return conf, nil
}

// withDefaults marks every value of conf as set, so the flag defaults it
// holds become the base of the consolidation.
func withDefaults(conf Config) Config {
	conf.Address.Valid = true
	conf.RunMode.Valid = true
	conf.PoolSize.Valid = true
	conf.ScriptTimeout.Valid = true
	conf.MaxBodySize.Valid = true
	conf.RateLimit.Valid = true
	conf.RateBurst.Valid = true
	conf.Compression.Valid = true
	conf.TracesOutput.Valid = true
	conf.CacheTime.Valid = true
	return conf
}
