package request

import (
	"errors"
	"strings"
)

type SanitizeRequest struct {
	Text    string                 `json:"text"`
	Options map[string]interface{} `json:"options,omitempty"`
}

func (r *SanitizeRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text is required")
	}
	return nil
}

type SanitizeSystemPromptRequest struct {
	Prompt  string                 `json:"prompt"`
	Options map[string]interface{} `json:"options,omitempty"`
}

func (r *SanitizeSystemPromptRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	return nil
}
