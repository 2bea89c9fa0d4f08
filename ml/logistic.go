package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const ModelTypeLogistic = "logistic_regression"

// LogisticRegression scores sigmoid(bias + w·z) where z is x standardized by
// Mean and Scale when the training pipeline exported them.
type LogisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Mean    []float64 `json:"mean,omitempty"`
	Scale   []float64 `json:"scale,omitempty"`
}

func (lr *LogisticRegression) Type() string { return ModelTypeLogistic }

func (lr *LogisticRegression) Arity() int { return len(lr.Weights) }

func (lr *LogisticRegression) PredictProba(features []float64) (float64, error) {
	if len(features) != len(lr.Weights) {
		return 0, fmt.Errorf("expected %d features, got %d", len(lr.Weights), len(features))
	}
	// terms are clamped so finite inputs can only saturate the sigmoid
	limit := math.MaxFloat64 / float64(len(features)+1)
	z := clamp(lr.Bias, limit)
	for i, x := range features {
		if lr.Weights[i] == 0 {
			continue
		}
		if lr.Mean != nil {
			x = (x - lr.Mean[i]) / lr.Scale[i]
		}
		z += clamp(lr.Weights[i]*x, limit)
	}
	return sigmoid(z), nil
}

func clamp(x, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, x))
}

func (lr *LogisticRegression) validate() error {
	if len(lr.Weights) == 0 {
		return errors.New("logistic regression has no weights")
	}
	if (lr.Mean == nil) != (lr.Scale == nil) {
		return errors.New("mean and scale must be provided together")
	}
	if lr.Mean != nil && (len(lr.Mean) != len(lr.Weights) || len(lr.Scale) != len(lr.Weights)) {
		return fmt.Errorf("mean/scale length does not match %d weights", len(lr.Weights))
	}
	for i, s := range lr.Scale {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("scale[%d] must be a non-zero finite number", i)
		}
	}
	for i, w := range lr.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight[%d] is not finite", i)
		}
	}
	if math.IsNaN(lr.Bias) || math.IsInf(lr.Bias, 0) {
		return errors.New("bias is not finite")
	}
	return nil
}

func decodeLogistic(params json.RawMessage) (MLModel, error) {
	var lr LogisticRegression
	if err := json.Unmarshal(params, &lr); err != nil {
		return nil, err
	}
	if err := lr.validate(); err != nil {
		return nil, err
	}
	return &lr, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
