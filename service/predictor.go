// Package service holds the prediction use case: validate a feature vector,
// score it, record it, answer.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"heartrisk/ml"
	"heartrisk/monitoring"
	"heartrisk/predlog"
)

const HealthMessage = "Heart Disease Prediction API is running!"

// Scorer is satisfied by *ml.Classifier.
type Scorer interface {
	Score(vector ml.FeatureVector) (ml.PredictionResult, error)
	Arity() int
}

// Publisher receives every served prediction; *monitoring.Hub implements it.
type Publisher interface {
	PublishPrediction(event monitoring.PredictionEvent)
}

type Response struct {
	Prediction      int     `json:"prediction"`
	RiskProbability float64 `json:"risk_probability"`
}

type Options struct {
	Metrics *monitoring.Metrics
	Feed    Publisher
	Logger  *zap.Logger
	Clock   func() time.Time
}

type Predictor struct {
	classifier Scorer
	log        predlog.Store
	metrics    *monitoring.Metrics
	feed       Publisher
	logger     *zap.Logger
	now        func() time.Time
}

func NewPredictor(classifier Scorer, log predlog.Store, opts Options) *Predictor {
	p := &Predictor{
		classifier: classifier,
		log:        log,
		metrics:    opts.Metrics,
		feed:       opts.Feed,
		logger:     opts.Logger,
		now:        opts.Clock,
	}
	if p.metrics == nil {
		p.metrics = monitoring.NewMetrics()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

func (p *Predictor) Health() string { return HealthMessage }

func (p *Predictor) Metrics() *monitoring.Metrics { return p.metrics }

// Predict decodes {"features": [...]} from body and serves it. Validation
// failures return before the classifier or the log is touched.
func (p *Predictor) Predict(ctx context.Context, body io.Reader) (*Response, error) {
	p.metrics.RecordRequest()

	vector, err := p.decode(body)
	if err != nil {
		p.metrics.RecordValidationFailure()
		return nil, err
	}
	return p.serve(ctx, vector)
}

// PredictVector serves an already decoded vector.
func (p *Predictor) PredictVector(ctx context.Context, vector ml.FeatureVector) (*Response, error) {
	p.metrics.RecordRequest()
	if err := vector.Validate(p.classifier.Arity()); err != nil {
		p.metrics.RecordValidationFailure()
		return nil, err
	}
	return p.serve(ctx, vector.Clone())
}

func (p *Predictor) serve(ctx context.Context, vector ml.FeatureVector) (*Response, error) {
	start := time.Now()
	result, err := p.classifier.Score(vector)
	if err != nil {
		if errors.Is(err, ml.ErrInvalidInput) {
			p.metrics.RecordValidationFailure()
			return nil, err
		}
		p.metrics.RecordClassifierFailure()
		p.logger.Error("classifier failed", zap.Error(err))
		return nil, fmt.Errorf("score: %w", err)
	}
	p.metrics.RecordPrediction(result.Label, result.Probability, time.Since(start))

	entry := predlog.LogEntry{
		Timestamp:   p.now(),
		Inputs:      vector,
		Prediction:  result.Label,
		Probability: result.Probability,
	}
	// a client hanging up must not cancel the audit row
	logged := true
	if err := p.log.Append(context.WithoutCancel(ctx), entry); err != nil {
		logged = false
		p.metrics.RecordLogWriteFailure()
		p.logger.Warn("prediction log append failed; response still returned",
			zap.Error(err),
			zap.Int("prediction", result.Label),
			zap.Float64("probability", result.Probability))
	}

	if p.feed != nil {
		p.feed.PublishPrediction(monitoring.PredictionEvent{
			Prediction:      result.Label,
			RiskProbability: result.Probability,
			Logged:          logged,
		})
	}

	return &Response{Prediction: result.Label, RiskProbability: result.Probability}, nil
}

func (p *Predictor) decode(body io.Reader) (ml.FeatureVector, error) {
	if body == nil {
		return nil, &MalformedRequestError{Reason: "request body is empty"}
	}
	var req struct {
		Features json.RawMessage `json:"features"`
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MalformedRequestError{Reason: "request body is empty"}
		}
		return nil, &MalformedRequestError{Reason: "request body is not a valid JSON object", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &MalformedRequestError{Reason: "request body has trailing data", Err: err}
	}
	if len(req.Features) == 0 || bytes.Equal(req.Features, []byte("null")) {
		return nil, &MalformedRequestError{Reason: "features is required"}
	}

	var raw []any
	dec = json.NewDecoder(bytes.NewReader(req.Features))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &MalformedRequestError{Reason: "features must be an array of numbers", Err: err}
	}

	arity := p.classifier.Arity()
	if len(raw) != arity {
		return nil, &ml.InvalidInputError{Expected: arity, Received: len(raw), Index: -1}
	}

	vector := make(ml.FeatureVector, len(raw))
	for i, v := range raw {
		num, ok := v.(json.Number)
		if !ok {
			return nil, &ml.InvalidInputError{
				Expected: arity,
				Received: len(raw),
				Index:    i,
				Reason:   fmt.Sprintf("feature %d must be a number, got %s", i, jsonKind(v)),
			}
		}
		x, err := num.Float64()
		if err != nil {
			return nil, &ml.InvalidInputError{
				Expected: arity,
				Received: len(raw),
				Index:    i,
				Reason:   fmt.Sprintf("feature %d is not a finite number", i),
			}
		}
		vector[i] = x
	}
	return vector, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
