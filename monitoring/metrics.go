package monitoring

import (
	"sync"
	"time"
)

// Snapshot point-in-time view of the prediction counters
type Snapshot struct {
	Requests            int64     `json:"requests"`
	Predictions         int64     `json:"predictions"`
	PositivePredictions int64     `json:"positive_predictions"`
	ValidationFailures  int64     `json:"validation_failures"`
	ClassifierFailures  int64     `json:"classifier_failures"`
	LogWriteFailures    int64     `json:"log_write_failures"`
	MeanProbability     float64   `json:"mean_probability"`
	MeanScoreLatencyMs  float64   `json:"mean_score_latency_ms"`
	MaxScoreLatencyMs   float64   `json:"max_score_latency_ms"`
	StartTime           time.Time `json:"start_time"`
	Uptime              string    `json:"uptime"`
}

// Metrics prediction service counters, safe for concurrent use
type Metrics struct {
	mu sync.Mutex

	requests           int64
	predictions        int64
	positives          int64
	validationFailures int64
	classifierFailures int64
	logWriteFailures   int64
	probabilitySum     float64
	latencySum         time.Duration
	latencyMax         time.Duration

	startTime time.Time
	now       func() time.Time
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now(), now: time.Now}
}

// RecordRequest counts an incoming predict call.
func (m *Metrics) RecordRequest() {
	m.mu.Lock()
	m.requests++
	m.mu.Unlock()
}

// RecordPrediction counts a successfully scored request.
func (m *Metrics) RecordPrediction(label int, probability float64, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
	if label == 1 {
		m.positives++
	}
	m.probabilitySum += probability
	m.latencySum += latency
	if latency > m.latencyMax {
		m.latencyMax = latency
	}
}

func (m *Metrics) RecordValidationFailure() {
	m.mu.Lock()
	m.validationFailures++
	m.mu.Unlock()
}

func (m *Metrics) RecordClassifierFailure() {
	m.mu.Lock()
	m.classifierFailures++
	m.mu.Unlock()
}

func (m *Metrics) RecordLogWriteFailure() {
	m.mu.Lock()
	m.logWriteFailures++
	m.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Requests:            m.requests,
		Predictions:         m.predictions,
		PositivePredictions: m.positives,
		ValidationFailures:  m.validationFailures,
		ClassifierFailures:  m.classifierFailures,
		LogWriteFailures:    m.logWriteFailures,
		MaxScoreLatencyMs:   durationMs(m.latencyMax),
		StartTime:           m.startTime,
		Uptime:              m.now().Sub(m.startTime).Round(time.Second).String(),
	}
	if m.predictions > 0 {
		s.MeanProbability = m.probabilitySum / float64(m.predictions)
		s.MeanScoreLatencyMs = durationMs(m.latencySum) / float64(m.predictions)
	}
	return s
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
