package tools

import (
	"fmt"
	"math"
	"time"
)

// HistoryPoint is one input reading for AnalyzeHeatingRate.
type HistoryPoint struct {
	Timestamp   string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
}

// AnalyzeHeatingRate computes the average heating rate across a
// temperature history. It is a pure calculation: no buffer access, no
// network. The decision of what to do with the rate belongs to the
// caller. Input problems never raise; they come back as an error field in
// the result.
func AnalyzeHeatingRate(deviceID string, history []HistoryPoint) map[string]any {
	if len(history) < 2 {
		return map[string]any{
			"error":        "Need at least 2 data points",
			"heating_rate": 0.0,
			"message":      fmt.Sprintf("Only %d point(s) provided", len(history)),
		}
	}

	first := history[0]
	last := history[len(history)-1]

	firstTime, err := time.Parse(time.RFC3339, first.Timestamp)
	if err != nil {
		return invalidTimestamp(err)
	}
	lastTime, err := time.Parse(time.RFC3339, last.Timestamp)
	if err != nil {
		return invalidTimestamp(err)
	}

	tempDiff := last.Temperature - first.Temperature
	timeDiff := lastTime.Sub(firstTime).Seconds()

	heatingRate := 0.0
	if timeDiff > 0 {
		heatingRate = tempDiff / (timeDiff / 60)
	}

	return map[string]any{
		"device_id":         deviceID,
		"heating_rate":      round(heatingRate, 2),
		"unit":              "celsius_per_minute",
		"temp_diff":         round(tempDiff, 2),
		"time_diff_seconds": round(timeDiff, 1),
		"data_points":       len(history),
	}
}

func invalidTimestamp(err error) map[string]any {
	return map[string]any{
		"error":        fmt.Sprintf("Invalid timestamp format: %v", err),
		"heating_rate": 0.0,
	}
}

func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
