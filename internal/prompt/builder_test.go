package prompt

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/llm"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/parse"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/task"
)

func testInstance() *task.Instance {
	return &task.Instance{
		Name: "electricity-hourly",
		PastTime: []task.Observation{
			{Timestamp: "2024-01-01 00:00:00", Value: 12.5},
			{Timestamp: "2024-01-01 01:00:00", Value: 13.25},
			{Timestamp: "2024-01-01 02:00:00", Value: 1250000},
		},
		FutureTime:  []string{"2024-01-01 03:00:00", "2024-01-01 04:00:00"},
		Background:  "Hourly electricity demand in MW.",
		Constraints: "Values are non-negative.",
		Scenario:    "A heat wave is expected.",
	}
}

func TestBuildMessageShape(t *testing.T) {
	inst := testInstance()
	messages, targets := Build(inst, task.FullContext(), true, DefaultMaxDigits)

	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, SystemInstruction, messages[0].Content)
	assert.Equal(t, llm.RoleUser, messages[1].Role)

	user := messages[1].Content
	assert.Contains(t, user, "(2024-01-01 00:00:00, 12.5)")
	assert.Contains(t, user, "Background: Hourly electricity demand in MW.")
	assert.Contains(t, user, "Constraints: Values are non-negative.")
	assert.Contains(t, user, "Scenario: A heat wave is expected.")
	assert.Contains(t, user, "['2024-01-01 03:00:00' '2024-01-01 04:00:00']")
	assert.Equal(t, inst.FutureTime, targets)
}

func TestBuildLargeValueAvoidsScientificNotation(t *testing.T) {
	inst := testInstance()
	messages, _ := Build(inst, task.FullContext(), true, DefaultMaxDigits)

	user := messages[1].Content
	assert.Contains(t, user, "(2024-01-01 02:00:00, 1250000)")
	assert.NotContains(t, user, "e+06")
}

func TestBuildContextProfiles(t *testing.T) {
	inst := testInstance()

	t.Run("constraints only", func(t *testing.T) {
		profile := task.ContextProfile{Constraints: true}
		messages, _ := Build(inst, profile, true, DefaultMaxDigits)
		user := messages[1].Content
		assert.Contains(t, user, "Constraints:")
		assert.NotContains(t, user, "Background:")
		assert.NotContains(t, user, "Scenario:")
	})

	t.Run("use context disabled", func(t *testing.T) {
		messages, _ := Build(inst, task.FullContext(), false, DefaultMaxDigits)
		user := messages[1].Content
		assert.NotContains(t, user, "Background:")
		assert.NotContains(t, user, "Constraints:")
		assert.NotContains(t, user, "Scenario:")
	})

	t.Run("empty field leaves no placeholder", func(t *testing.T) {
		noBackground := testInstance()
		noBackground.Background = ""
		messages, _ := Build(noBackground, task.FullContext(), true, DefaultMaxDigits)
		assert.NotContains(t, messages[1].Content, "Background:")
	})
}

func TestBuildDeterministic(t *testing.T) {
	inst := testInstance()
	first, _ := Build(inst, task.FullContext(), true, DefaultMaxDigits)
	second, _ := Build(inst, task.FullContext(), true, DefaultMaxDigits)
	assert.Equal(t, first, second)
}

// Values formatted for the prompt must survive the model echoing them back
// through the forecast parser without meaningful loss.
func TestFormatValueRoundTrip(t *testing.T) {
	values := []float64{0, 1, 12.5, 0.001234, 99999.9, 123456, 1e7, 2.5e9}

	for _, v := range values {
		formatted := FormatValue(v, DefaultMaxDigits)

		raw := fmt.Sprintf("<forecast>\n(2024-01-01 00:00:00, %s)\n</forecast>", formatted)
		got, err := parse.Forecast(raw, []string{"2024-01-01 00:00:00"})
		require.NoError(t, err, "value %v formatted as %q", v, formatted)
		require.Len(t, got, 1)

		tolerance := 5e-6 * math.Abs(v)
		if v == 0 {
			tolerance = 1e-9
		}
		assert.InDelta(t, v, got[0], tolerance, "value %v formatted as %q", v, formatted)
	}
}

func TestFormatValueSignificantDigits(t *testing.T) {
	assert.Equal(t, "123.457", FormatValue(123.45678, 6))

	// At the threshold the format switches to fixed-point.
	formatted := FormatValue(1_000_000, 6)
	assert.False(t, strings.ContainsAny(formatted, "eE"), "got %q", formatted)
}
