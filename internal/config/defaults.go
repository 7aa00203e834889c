package config

const (
	defaultDataDir        = "~/.local/share/crabmigrate"
	defaultLibraryDir     = "~/.local/share/crabmigrate/library"
	defaultLogDir         = "~/.local/share/crabmigrate/logs"
	defaultAPIBind        = "127.0.0.1:7496"
	defaultPublicBaseURL  = "http://127.0.0.1:7496"
	defaultFormat         = "avif"
	defaultSpeed          = 10
	defaultEncoderBinary  = "crabenc"
	defaultEncoderTimeout = 120
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			LibraryDir:    defaultLibraryDir,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
			PublicBaseURL: defaultPublicBaseURL,
		},
		Optimize: Optimize{
			Format:        defaultFormat,
			Speed:         defaultSpeed,
			ExcludedTypes: []string{"svg", "gif", "ico"},
			KeepOriginals: true,
		},
		Encoder: Encoder{
			Binary:         defaultEncoderBinary,
			TimeoutSeconds: defaultEncoderTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
