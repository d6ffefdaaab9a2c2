package config

const (
	defaultConfigPath           = "~/.config/screensolve/config.toml"
	defaultStateDir             = "~/.local/state/screensolve"
	defaultLogDir               = "~/.local/state/screensolve/logs"
	defaultTriggerCommand       = "capture-solve"
	defaultUdevAction           = "add"
	defaultActiveSurfaceCommand = "xdotool getactivewindow"
	defaultCaptureCommand       = "import -window {surface} png:-"
	defaultCaptureTimeout       = 10
	defaultWorkerIdleSeconds    = 30
	defaultReadyTimeoutSeconds  = 10
	defaultSolverURL            = "http://127.0.0.1:8000/screen-solve"
	defaultViewerBind           = "127.0.0.1:7621"
	defaultNotifyTimeout        = 10
	defaultServerBind           = "127.0.0.1:8000"
	defaultProvider             = ProviderOllama
	defaultOllamaModel          = "llava"
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultCacheSize            = 128
	defaultServerTimeout        = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 14
)

// Solve API model providers.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Trigger: Trigger{
			Command:    defaultTriggerCommand,
			UdevAction: defaultUdevAction,
		},
		Capture: Capture{
			ActiveSurfaceCommand: defaultActiveSurfaceCommand,
			Command:              defaultCaptureCommand,
			TimeoutSeconds:       defaultCaptureTimeout,
		},
		Transcode: Transcode{
			WorkerIdleSeconds:   defaultWorkerIdleSeconds,
			ReadyTimeoutSeconds: defaultReadyTimeoutSeconds,
		},
		Solver: Solver{
			URL: defaultSolverURL,
		},
		Overlay: Overlay{
			ViewerEnabled: true,
			ViewerBind:    defaultViewerBind,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Results:        true,
			Errors:         true,
		},
		Server: Server{
			Bind:                  defaultServerBind,
			Provider:              defaultProvider,
			CacheSize:             defaultCacheSize,
			RequestTimeoutSeconds: defaultServerTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
