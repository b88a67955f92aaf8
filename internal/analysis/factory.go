package analysis

import (
	"fmt"
	"strings"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// New creates the configured extractor. An empty provider disables keyword
// extraction and returns nil.
func New(cfg model.LLMConfig, httpCfg model.HTTPConfig) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		e, err := NewOpenAIExtractor(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "ollama":
		e, err := NewOllamaExtractor(cfg, httpCfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}
