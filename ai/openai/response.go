package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const maxParseAttempts = 3

// ErrEmptyResponse is returned when the model returns no choices.
var ErrEmptyResponse = errors.New("empty response from model")

var (
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	singleQuotedKey      = regexp.MustCompile(`'([A-Za-z_][A-Za-z0-9_]*)'\s*:`)
)

// generateJSON sends the messages and decodes the reply into out, retrying
// when the reply cannot be parsed. Transport errors are returned at once.
func generateJSON(ctx context.Context, client llms.Model, logger *slog.Logger, messages []llms.MessageContent, out any) error {
	var lastErr error
	for attempt := 1; attempt <= maxParseAttempts; attempt++ {
		resp, err := client.GenerateContent(ctx, messages,
			llms.WithTemperature(0.0),
			llms.WithJSONMode(),
		)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			lastErr = ErrEmptyResponse
			continue
		}

		content := cleanResponse(resp.Choices[0].Content)
		if err = json.Unmarshal([]byte(content), out); err == nil {
			return nil
		}
		repaired := repairJSON(content)
		if err = json.Unmarshal([]byte(repaired), out); err == nil {
			logger.Debug("decoded repaired JSON", "attempt", attempt)
			return nil
		}
		lastErr = err
		logger.Debug("unparseable model response", "attempt", attempt, "err", err)
	}
	return fmt.Errorf("failed to parse model response after %d attempts: %w", maxParseAttempts, lastErr)
}

// cleanResponse strips markdown fences and any text around the outermost object.
func cleanResponse(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

// repairJSON fixes the mistakes small models make most often: trailing
// commas, single-quoted keys and unclosed objects or arrays.
func repairJSON(content string) string {
	content = trailingCommaPattern.ReplaceAllString(content, "$1")
	content = singleQuotedKey.ReplaceAllString(content, `"$1":`)

	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case (c == '}' || c == ']') && len(stack) > 0:
			stack = stack[:len(stack)-1]
		}
	}

	var b strings.Builder
	b.WriteString(content)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return trailingCommaPattern.ReplaceAllString(b.String(), "$1")
}

// clamp01 bounds a model-provided score.
func clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
