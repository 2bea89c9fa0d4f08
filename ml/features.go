package ml

import (
	"fmt"
	"math"
)

// FeatureCount is the arity the bundled heart-disease models are trained on.
const FeatureCount = 16

var featureNames = []string{
	"age",
	"sex",
	"chest_pain",
	"rest_blood_pressure",
	"cholesterol",
	"fasting_blood_sugar",
	"rest_ecg",
	"max_heart_rate",
	"exercise_angina",
	"oldpeak",
	"slope",
	"vessels",
	"thal",
	"smoking",
	"diabetes",
	"bmi",
}

// FeatureVector is positional: index i must match training column i.
type FeatureVector []float64

func FeatureNames() []string {
	names := make([]string, len(featureNames))
	copy(names, featureNames)
	return names
}

// Validate checks arity and that every element is a finite number.
func (v FeatureVector) Validate(arity int) error {
	if len(v) != arity {
		return &InvalidInputError{Expected: arity, Received: len(v), Index: -1}
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return &InvalidInputError{
				Expected: arity,
				Received: len(v),
				Index:    i,
				Reason:   fmt.Sprintf("feature %d is not a finite number", i),
			}
		}
	}
	return nil
}

func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}
