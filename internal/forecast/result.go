package forecast

import "time"

// Usage accumulates backend-reported token counts across every retry round
// of one acquisition call, including rounds whose candidates were all
// rejected. Counters only grow and reset per call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result is the outcome of one acquisition call.
type Result struct {
	// Samples has shape [n, H, 1]: n sample paths over the H target
	// timestamps. The trailing axis is reserved for a multivariate
	// extension and is always size 1 today.
	Samples [][][]float64 `json:"samples"`

	Usage Usage `json:"usage"`

	// RawOutputs holds every generated text in emission order, the
	// rejected ones included, for logging and analysis.
	RawOutputs []string `json:"raw_outputs"`

	// Cost is the estimated price of the call in the configured currency,
	// or -1 when no token pricing was configured.
	Cost float64 `json:"cost"`

	// TotalTime is wall clock for the whole call; ClientTime is the part
	// spent inside generation requests.
	TotalTime  time.Duration `json:"total_time"`
	ClientTime time.Duration `json:"client_time"`
}

// NumSamples returns the number of sample paths in the result.
func (r *Result) NumSamples() int { return len(r.Samples) }

// Values flattens the trailing unit axis, returning [n, H] paths.
func (r *Result) Values() [][]float64 {
	out := make([][]float64, len(r.Samples))
	for i, path := range r.Samples {
		row := make([]float64, len(path))
		for j, v := range path {
			row[j] = v[0]
		}
		out[i] = row
	}
	return out
}
