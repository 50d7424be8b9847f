package state

import "path/filepath"

const defaultConfigFileName = "config.yaml"

// GlobalOptions contains global config values that apply for all purple sub-commands.
type GlobalOptions struct {
	ConfigFilePath string
	Quiet          bool
	NoColor        bool
	LogOutput      string
	LogFormat      string
	Verbose        bool
}

// GetDefaultGlobalOptions returns the default global flags.
func GetDefaultGlobalOptions(confDir string) GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: filepath.Join(confDir, "purple", defaultConfigFileName),
		LogOutput:      "stderr",
	}
}

func consolidateGlobalFlags(defaultFlags GlobalOptions, env map[string]string) GlobalOptions {
	result := defaultFlags

	if val, ok := env["PURPLE_CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := env["PURPLE_LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := env["PURPLE_LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	if env["PURPLE_NO_COLOR"] != "" {
		result.NoColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.NoColor = true
	}
	if env["PURPLE_VERBOSE"] != "" {
		result.Verbose = true
	}
	return result
}
