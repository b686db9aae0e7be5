package config

const (
	defaultLogDir           = "~/.local/share/lectern/logs"
	defaultStateDir         = "~/.local/share/lectern/state"
	defaultSocketPath       = "~/.local/share/lectern/lectern.sock"
	defaultConverterBinary  = "ffmpeg"
	defaultEngineBinary     = "whisper-cli"
	defaultThreads          = 4
	defaultEventBuffer      = 2048
	defaultHistoryKeep      = 200
	defaultWatchSettle      = 5
	defaultWatchInterval    = 30
	defaultNotifyTimeout    = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
			Socket:   defaultSocketPath,
		},
		Engines: Engines{
			Converter: defaultConverterBinary,
			Engine:    defaultEngineBinary,
			Threads:   defaultThreads,
		},
		Runner: Runner{
			EventBuffer: defaultEventBuffer,
			HistoryKeep: defaultHistoryKeep,
		},
		Watch: Watch{
			SettleSeconds:   defaultWatchSettle,
			IntervalSeconds: defaultWatchInterval,
		},
		Notify: Notify{
			TimeoutSeconds: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
