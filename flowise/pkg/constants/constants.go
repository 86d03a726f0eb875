package constants

const (
	// Configuration layout under the framework root
	ConfigDirName          = "configs"
	GlobalSettingsFileName = "global_settings.yaml"
	DotenvFileName         = ".env"

	// Configuration section consumed by the client
	FlowiseSectionKey = "flowise"

	// Section keys
	KeyEnabled        = "enabled"
	KeyBaseURL        = "base_url"
	KeyDefaultTimeout = "default_timeout"
	KeyAPIKeyEnv      = "api_key_env"

	// Default values
	DefaultBaseURL        = "http://localhost:3000"
	DefaultTimeoutSeconds = 60

	// Streaming
	StreamBufferSize = 8 * 1024

	// Client identification
	SDKName = "flowise-go"
)
