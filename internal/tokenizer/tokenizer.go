// Package tokenizer estimates token counts for digest content.
package tokenizer

import (
	"fmt"
	"strings"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters provided by the CLI.
type Config struct {
	Model string
}

const (
	defaultModel        = "gpt-4o"
	defaultEncodingName = "cl100k_base"
)

// NewCounter returns a Counter for the requested model, falling back to the
// default encoding when the model is unknown. The second return value is the
// resolved model or encoding name.
func NewCounter(counterConfiguration Config) (Counter, string, error) {
	model := strings.TrimSpace(counterConfiguration.Model)
	if model == "" {
		model = defaultModel
	}
	loweredModel := strings.ToLower(model)

	counter, counterError := newTiktokenCounter(loweredModel)
	if counterError == nil {
		return counter, loweredModel, nil
	}

	fallbackCounter, fallbackError := newEncodingCounter(defaultEncodingName)
	if fallbackError != nil {
		return nil, "", fmt.Errorf("initialize fallback tokenizer: %w", fallbackError)
	}
	return fallbackCounter, defaultEncodingName, nil
}
