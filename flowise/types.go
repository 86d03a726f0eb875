package flowise

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/architect-ai/flowise-go/flowise/pkg/config"
	"github.com/architect-ai/flowise-go/flowise/pkg/constants"
	"github.com/architect-ai/flowise-go/flowise/pkg/logger"
)

var validate = validator.New()

// Settings holds the resolved flowise configuration section. Settings are
// fixed at client construction and never mutated afterwards.
type Settings struct {
	// Enabled is advisory: a disabled integration still accepts calls but
	// each call logs a warning.
	Enabled bool

	// BaseURL is the engine address relative endpoints are joined to.
	BaseURL string `validate:"required,url"`

	// DefaultTimeout bounds each call, in seconds.
	DefaultTimeout int `validate:"required,gt=0"`

	// APIKeyEnv names the environment variable holding the bearer
	// credential. Empty means unauthenticated.
	APIKeyEnv string
}

// DefaultSettings returns the documented defaults applied when the flowise
// section is missing or incomplete.
func DefaultSettings() Settings {
	return Settings{
		Enabled:        false,
		BaseURL:        constants.DefaultBaseURL,
		DefaultTimeout: constants.DefaultTimeoutSeconds,
		APIKeyEnv:      "",
	}
}

// settingsFromSection resolves Settings from a configuration section,
// applying defaults for absent keys and reverting invalid resolved values to
// their defaults with a warning. Resolution never fails.
func settingsFromSection(section map[string]any, log logger.Logger) Settings {
	defaults := DefaultSettings()

	settings := Settings{
		Enabled:        config.GetBool(section, constants.KeyEnabled, defaults.Enabled),
		BaseURL:        config.GetString(section, constants.KeyBaseURL, defaults.BaseURL),
		DefaultTimeout: config.GetInt(section, constants.KeyDefaultTimeout, defaults.DefaultTimeout),
		APIKeyEnv:      config.GetString(section, constants.KeyAPIKeyEnv, defaults.APIKeyEnv),
	}

	if err := validate.Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				switch fieldErr.Field() {
				case "BaseURL":
					log.Warn("configured base_url is not a valid URL, using default",
						"base_url", settings.BaseURL, "default", defaults.BaseURL)
					settings.BaseURL = defaults.BaseURL
				case "DefaultTimeout":
					log.Warn("configured default_timeout must be a positive number of seconds, using default",
						"default_timeout", settings.DefaultTimeout, "default", defaults.DefaultTimeout)
					settings.DefaultTimeout = defaults.DefaultTimeout
				}
			}
		}
	}

	return settings
}
