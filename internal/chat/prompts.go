package chat

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptConfig carries the instruction templates the orchestrator feeds the
// model, plus the canned reply used when the model is unreachable. A YAML
// file at DOCCHAT_PROMPTS_PATH overrides any subset of the fields.
type PromptConfig struct {
	System          string `yaml:"system"`
	FallbackMessage string `yaml:"fallback_message"`
}

func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		System: strings.TrimSpace(`
You are a document assistant. Answer the user's question using ONLY the
numbered source excerpts provided. Cite the excerpts you use inline as
[Source N]. If the sources do not contain the answer, say so plainly
instead of guessing. Keep answers concise.`),
		FallbackMessage: "I'm unable to generate an answer right now. " +
			"The document has been processed, so please try again in a moment.",
	}
}

// LoadPromptConfig returns defaults merged with the optional override file.
func LoadPromptConfig() (PromptConfig, error) {
	cfg := DefaultPromptConfig()
	path := strings.TrimSpace(os.Getenv("DOCCHAT_PROMPTS_PATH"))
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read prompts file: %w", err)
	}
	var override PromptConfig
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return cfg, fmt.Errorf("parse prompts file: %w", err)
	}
	if strings.TrimSpace(override.System) != "" {
		cfg.System = strings.TrimSpace(override.System)
	}
	if strings.TrimSpace(override.FallbackMessage) != "" {
		cfg.FallbackMessage = strings.TrimSpace(override.FallbackMessage)
	}
	return cfg, nil
}
