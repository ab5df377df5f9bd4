package ratelimit

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	ActionAPIKeyCreation = "api_key_creation"
	ActionLogin          = "login"
	ActionPasswordReset  = "password_reset"
	ActionFileUpload     = "file_upload"
	ActionAICommand      = "ai_command"
)

type Policy struct {
	Limit         int `mapstructure:"limit" json:"limit"`
	WindowSeconds int `mapstructure:"window_seconds" json:"window_seconds"`
}

func (p Policy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("rate limit policy requires a positive limit, got %d", p.Limit)
	}
	if p.WindowSeconds <= 0 {
		return fmt.Errorf("rate limit policy requires a positive window, got %ds", p.WindowSeconds)
	}
	return nil
}

// DefaultPresets returns a fresh copy of the built-in policies.
func DefaultPresets() map[string]Policy {
	return map[string]Policy{
		ActionAPIKeyCreation: {Limit: 5, WindowSeconds: 3600},
		ActionLogin:          {Limit: 10, WindowSeconds: 900},
		ActionPasswordReset:  {Limit: 3, WindowSeconds: 3600},
		ActionFileUpload:     {Limit: 100, WindowSeconds: 3600},
		ActionAICommand:      {Limit: 60, WindowSeconds: 60},
	}
}

// DecodePresets layers loosely typed overrides (config files, env) on top of
// DefaultPresets. Unknown preset names are added as new policies.
func DecodePresets(raw map[string]interface{}) (map[string]Policy, error) {
	presets := DefaultPresets()
	for name, value := range raw {
		policy := presets[name]
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &policy,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(value); err != nil {
			return nil, fmt.Errorf("invalid rate limit preset %q: %w", name, err)
		}
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rate limit preset %q: %w", name, err)
		}
		presets[name] = policy
	}
	return presets, nil
}
