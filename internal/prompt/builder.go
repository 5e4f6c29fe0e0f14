// Package prompt serializes a task instance into the conversation sent to
// the model. Building is a pure function of its inputs: the same instance,
// profile and digit budget always yield the same messages, so a
// conversation can be built once and reused verbatim across retries.
package prompt

import (
	"fmt"
	"math"
	"strings"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/llm"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/task"
)

// SystemInstruction is the fixed system message for every forecast request.
const SystemInstruction = "You are a useful forecasting assistant."

// DefaultMaxDigits is the significant-digit budget for history values.
const DefaultMaxDigits = 6

const promptTemplate = `
I have a time series forecasting task for you.

Here is some context about the task. Make sure to factor in any background knowledge,
satisfy any constraints, and respect any scenarios.
<context>
%s
</context>

Here is a historical time series in (timestamp, value) format:
<history>
%s
</history>

Now please predict the value at the following timestamps: %s.

Return the forecast in (timestamp, value) format in between <forecast> and </forecast> tags.
Do not include any other information (e.g., comments) in the forecast.

Example:
<history>
(t1, v1)
(t2, v2)
(t3, v3)
</history>
<forecast>
(t4, v4)
(t5, v5)
</forecast>

`

// Build serializes inst into the conversation for one forecast request and
// returns it together with the target timestamps the model must cover.
// Context fields are included only when useContext is set and the profile
// enables them; omitted fields leave no placeholder behind.
func Build(inst *task.Instance, profile task.ContextProfile, useContext bool, maxDigits int) ([]llm.Message, []string) {
	if maxDigits <= 0 {
		maxDigits = DefaultMaxDigits
	}

	lines := make([]string, len(inst.PastTime))
	for i, obs := range inst.PastTime {
		lines[i] = fmt.Sprintf("(%s, %s)", obs.Timestamp, FormatValue(obs.Value, maxDigits))
	}
	history := strings.Join(lines, "\n")

	var context strings.Builder
	if useContext {
		if profile.Background && inst.Background != "" {
			fmt.Fprintf(&context, "Background: %s\n", inst.Background)
		}
		if profile.Constraints && inst.Constraints != "" {
			fmt.Fprintf(&context, "Constraints: %s\n", inst.Constraints)
		}
		if profile.Scenario && inst.Scenario != "" {
			fmt.Fprintf(&context, "Scenario: %s\n", inst.Scenario)
		}
	}

	targets := make([]string, len(inst.FutureTime))
	copy(targets, inst.FutureTime)

	user := fmt.Sprintf(promptTemplate, context.String(), history, formatTargets(targets))

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: SystemInstruction},
		{Role: llm.RoleUser, Content: user},
	}
	return messages, targets
}

// FormatValue renders a history value with up to maxDigits significant
// digits. General format flips to scientific notation for large magnitudes,
// which models mis-copy, so values at or above 10^maxDigits switch to
// fixed-point with no decimals.
func FormatValue(v float64, maxDigits int) string {
	if v < math.Pow(10, float64(maxDigits)) {
		return fmt.Sprintf("%.*g", maxDigits, v)
	}
	return fmt.Sprintf("%.0f", v)
}

func formatTargets(targets []string) string {
	quoted := make([]string, len(targets))
	for i, t := range targets {
		quoted[i] = "'" + t + "'"
	}
	return "[" + strings.Join(quoted, " ") + "]"
}
