package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const DefaultThreshold = 0.5

// Artifact is the on-disk envelope written by the training pipeline.
type Artifact struct {
	ModelType    string          `json:"model_type"`
	FeatureCount int             `json:"feature_count"`
	Threshold    *float64        `json:"threshold,omitempty"`
	Params       json.RawMessage `json:"params"`
}

type decoder func(params json.RawMessage) (MLModel, error)

var decoders = map[string]decoder{
	ModelTypeDecisionTree: decodeDecisionTree,
	ModelTypeLogistic:     decodeLogistic,
}

// LoadModel reads the artifact at path. An empty modelType accepts whatever the
// artifact declares; otherwise the two must agree.
func LoadModel(modelType, path string) (MLModel, float64, error) {
	fail := func(err error) (MLModel, float64, error) {
		return nil, 0, &ModelLoadError{Path: path, Err: err}
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return fail(fmt.Errorf("malformed artifact: %w", err))
	}
	if artifact.ModelType == "" {
		return fail(errors.New("artifact has no model_type"))
	}
	if modelType != "" && modelType != artifact.ModelType {
		return fail(fmt.Errorf("artifact is %q, configured model type is %q", artifact.ModelType, modelType))
	}
	decode, ok := decoders[artifact.ModelType]
	if !ok {
		return fail(fmt.Errorf("unsupported model type %q", artifact.ModelType))
	}
	if len(artifact.Params) == 0 {
		return fail(errors.New("artifact has no params"))
	}

	threshold := DefaultThreshold
	if artifact.Threshold != nil {
		threshold = *artifact.Threshold
	}
	if !(threshold > 0 && threshold < 1) {
		return fail(fmt.Errorf("threshold %v must be inside (0,1)", threshold))
	}

	model, err := decode(artifact.Params)
	if err != nil {
		return fail(fmt.Errorf("decode %s params: %w", artifact.ModelType, err))
	}
	if artifact.FeatureCount != 0 && artifact.FeatureCount != model.Arity() {
		return fail(fmt.Errorf("artifact declares %d features but model uses %d", artifact.FeatureCount, model.Arity()))
	}
	return model, threshold, nil
}
