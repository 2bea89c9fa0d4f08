package ml

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Options struct {
	ModelPath string
	ModelType string
	// Arity is the expected feature count; 0 accepts the model's own arity.
	Arity int
	// CacheSize enables an LRU of recent scores when positive.
	CacheSize int
}

// Classifier is the process-wide scoring handle. It is created once and never
// mutated, so concurrent callers share it without locking.
type Classifier struct {
	model     MLModel
	arity     int
	threshold float64
	cache     *lru.Cache[string, PredictionResult]
}

func Load(opts Options) (*Classifier, error) {
	model, threshold, err := LoadModel(opts.ModelType, opts.ModelPath)
	if err != nil {
		return nil, err
	}
	if opts.Arity != 0 && opts.Arity != model.Arity() {
		return nil, &ModelLoadError{
			Path: opts.ModelPath,
			Err:  fmt.Errorf("model expects %d features, service is configured for %d", model.Arity(), opts.Arity),
		}
	}
	c, err := NewClassifier(model, threshold, opts.CacheSize)
	if err != nil {
		return nil, &ModelLoadError{Path: opts.ModelPath, Err: err}
	}
	return c, nil
}

// NewClassifier wraps an already decoded model.
func NewClassifier(model MLModel, threshold float64, cacheSize int) (*Classifier, error) {
	if model == nil {
		return nil, fmt.Errorf("nil model")
	}
	if !(threshold > 0 && threshold < 1) {
		return nil, fmt.Errorf("threshold %v must be inside (0,1)", threshold)
	}
	c := &Classifier{
		model:     model,
		arity:     model.Arity(),
		threshold: threshold,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, PredictionResult](cacheSize)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}
	return c, nil
}

func (c *Classifier) Arity() int { return c.arity }

func (c *Classifier) Threshold() float64 { return c.threshold }

func (c *Classifier) ModelType() string { return c.model.Type() }

// Score classifies vector. label is 1 iff probability >= Threshold().
func (c *Classifier) Score(vector FeatureVector) (PredictionResult, error) {
	if err := vector.Validate(c.arity); err != nil {
		return PredictionResult{}, err
	}

	var key string
	if c.cache != nil {
		key = cacheKey(vector)
		if result, ok := c.cache.Get(key); ok {
			return result, nil
		}
	}

	prob, err := c.model.PredictProba(vector)
	if err != nil {
		return PredictionResult{}, fmt.Errorf("score %s: %w", c.model.Type(), err)
	}
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return PredictionResult{}, fmt.Errorf("score %s: probability %v outside [0,1]", c.model.Type(), prob)
	}

	result := PredictionResult{Label: c.label(prob), Probability: prob}
	if c.cache != nil {
		c.cache.Add(key, result)
	}
	return result, nil
}

func (c *Classifier) label(prob float64) int {
	if prob >= c.threshold {
		return 1
	}
	return 0
}

// cacheKey uses the exact bit pattern so -0 and 0 stay distinct keys.
func cacheKey(vector FeatureVector) string {
	var b strings.Builder
	b.Grow(len(vector) * 17)
	for _, x := range vector {
		b.WriteString(strconv.FormatUint(math.Float64bits(x), 16))
		b.WriteByte(',')
	}
	return b.String()
}
