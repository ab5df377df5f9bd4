package sanitizer

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// MergeSettings decodes a loosely typed settings object on top of base. Keys
// absent from settings keep the value from base.
func MergeSettings(base Options, settings map[string]interface{}) (Options, error) {
	if len(settings) == 0 {
		return base, nil
	}
	merged := base
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &merged,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return base, fmt.Errorf("failed to build sanitizer options decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return base, fmt.Errorf("invalid sanitizer options: %w", err)
	}
	if merged.MaxLength < 0 {
		return base, fmt.Errorf("invalid sanitizer options: max_length must not be negative")
	}
	return merged, nil
}

// ClientOverrides are the only options an untrusted request may set. Detection
// and strict mode stay with the server configuration.
type ClientOverrides struct {
	MaxLength *int  `mapstructure:"max_length"`
	StripHTML *bool `mapstructure:"strip_html"`
}

// MergeClientSettings applies request supplied overrides on top of base.
// max_length can only lower the configured limit.
func MergeClientSettings(base Options, settings map[string]interface{}) (Options, error) {
	if len(settings) == 0 {
		return base, nil
	}
	var overrides ClientOverrides
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &overrides,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return base, fmt.Errorf("failed to build sanitizer options decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return base, fmt.Errorf("invalid sanitizer options: %w", err)
	}

	merged := base
	if overrides.MaxLength != nil {
		n := *overrides.MaxLength
		if n < 0 {
			return base, fmt.Errorf("invalid sanitizer options: max_length must not be negative")
		}
		limit := base.MaxLength
		if limit <= 0 {
			limit = DefaultMaxLength
		}
		if n > 0 && n < limit {
			merged.MaxLength = n
		}
	}
	if overrides.StripHTML != nil {
		merged.StripHTML = *overrides.StripHTML
	}
	return merged, nil
}
