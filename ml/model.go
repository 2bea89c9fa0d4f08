package ml

// MLModel is a trained binary classifier. Implementations are immutable after
// decoding and safe for concurrent use.
type MLModel interface {
	Type() string
	Arity() int
	// PredictProba returns the positive-class probability.
	PredictProba(features []float64) (float64, error)
}

type PredictionResult struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}
