// Package predlog is the append-only audit trail of served predictions.
package predlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"heartrisk/ml"
)

// Header is the first row of every CSV prediction log.
var Header = []string{"timestamp", "inputs", "prediction", "probability"}

const timeLayout = time.RFC3339Nano

type LogEntry struct {
	Timestamp   time.Time        `json:"timestamp"`
	Inputs      ml.FeatureVector `json:"inputs"`
	Prediction  int              `json:"prediction"`
	Probability float64          `json:"probability"`
}

// Store persists log entries. Append must be safe for concurrent use and must
// write each entry atomically with respect to other appends.
type Store interface {
	Append(ctx context.Context, entry LogEntry) error
	Close() error
}

// Record renders the entry as a CSV row in Header order.
func (e LogEntry) Record() ([]string, error) {
	inputs, err := json.Marshal([]float64(e.Inputs))
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}
	return []string{
		e.Timestamp.UTC().Format(timeLayout),
		string(inputs),
		strconv.Itoa(e.Prediction),
		strconv.FormatFloat(e.Probability, 'g', -1, 64),
	}, nil
}

// ParseRecord is the inverse of Record.
func ParseRecord(record []string) (LogEntry, error) {
	if len(record) != len(Header) {
		return LogEntry{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(record))
	}
	ts, err := time.Parse(timeLayout, record[0])
	if err != nil {
		return LogEntry{}, fmt.Errorf("timestamp: %w", err)
	}
	var inputs []float64
	if err := json.Unmarshal([]byte(record[1]), &inputs); err != nil {
		return LogEntry{}, fmt.Errorf("inputs: %w", err)
	}
	prediction, err := strconv.Atoi(record[2])
	if err != nil {
		return LogEntry{}, fmt.Errorf("prediction: %w", err)
	}
	probability, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return LogEntry{}, fmt.Errorf("probability: %w", err)
	}
	return LogEntry{
		Timestamp:   ts,
		Inputs:      inputs,
		Prediction:  prediction,
		Probability: probability,
	}, nil
}
