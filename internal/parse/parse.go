// Package parse extracts forecasts from free-form model output. Models are
// expected to return (timestamp, value) pairs between <forecast> tags, but
// malformed output is common; every failure mode collapses into a single
// FormatError that the engine treats as a rejected candidate.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FormatError signals that one candidate completion could not be parsed
// into a forecast. Raw preserves the offending text for diagnostics.
type FormatError struct {
	Reason string
	Raw    string
}

func (e *FormatError) Error() string {
	return "invalid forecast format: " + e.Reason
}

var forecastPattern = regexp.MustCompile(`(?s)<forecast>(.*?)</forecast>`)

// extractForecasts returns the inner bodies of every <forecast> block in
// text, in order. Matching spans newlines and is non-greedy.
func extractForecasts(text string) []string {
	matches := forecastPattern.FindAllStringSubmatch(text, -1)
	var bodies []string
	for _, m := range matches {
		bodies = append(bodies, m[1])
	}
	return bodies
}

// Forecast parses raw model output into one value per target timestamp, in
// target order. Pairs may appear in any order; extra timestamps the model
// hallucinated are ignored, missing ones are an error. The function is pure
// and idempotent.
func Forecast(raw string, targets []string) ([]float64, error) {
	blocks := extractForecasts(raw)
	if len(blocks) == 0 {
		return nil, &FormatError{Reason: "no <forecast> block found", Raw: raw}
	}

	block := strings.NewReplacer("(", "", ")", "").Replace(blocks[0])
	byTimestamp := make(map[string]float64)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			return nil, &FormatError{
				Reason: fmt.Sprintf("line %q does not split into a timestamp and a value", line),
				Raw:    raw,
			}
		}

		key := strings.NewReplacer("'", "", `"`, "").Replace(strings.TrimSpace(parts[0]))
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, &FormatError{
				Reason: fmt.Sprintf("value %q is not a number", strings.TrimSpace(parts[1])),
				Raw:    raw,
			}
		}
		byTimestamp[key] = value
	}

	values := make([]float64, len(targets))
	for i, target := range targets {
		v, ok := byTimestamp[target]
		if !ok {
			return nil, &FormatError{
				Reason: fmt.Sprintf("timestamp %q missing from forecast", target),
				Raw:    raw,
			}
		}
		values[i] = v
	}
	return values, nil
}
