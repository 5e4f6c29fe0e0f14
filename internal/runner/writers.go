package runner

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
)

// WriteCSV writes one row per task result, overwriting path.
func WriteCSV(path string, results []TaskResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"run_id", "task", "samples", "horizon",
		"input_tokens", "output_tokens", "cost",
		"total_time_s", "client_time_s", "cache_hit", "error",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		// A negative cost marks disabled pricing; leave the cell empty so
		// downstream aggregation doesn't sum sentinels.
		cost := ""
		if r.Cost >= 0 {
			cost = fmt.Sprintf("%.2f", r.Cost)
		}
		record := []string{
			r.RunID,
			r.Task,
			fmt.Sprintf("%d", r.Samples),
			fmt.Sprintf("%d", r.Horizon),
			fmt.Sprintf("%d", r.InputTokens),
			fmt.Sprintf("%d", r.OutputTokens),
			cost,
			fmt.Sprintf("%.4f", r.TotalTime.Seconds()),
			fmt.Sprintf("%.4f", r.ClientTime.Seconds()),
			fmt.Sprintf("%t", r.CacheHit),
			r.Error,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteJSON writes results as JSON Lines, one result per line, which stays
// append-friendly for downstream tooling.
func WriteJSON(path string, results []TaskResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create json file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
