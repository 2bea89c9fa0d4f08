package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const ModelTypeDecisionTree = "decision_tree"

// DecisionTree is a tree exported by the training pipeline as a flattened
// node array; children always sit at a higher index than their parent.
type DecisionTree struct {
	nodes    []TreeNode
	features int
}

type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	Probability float64 `json:"probability"`
	IsLeaf      bool    `json:"is_leaf"`
}

type treeParams struct {
	FeatureCount int        `json:"feature_count"`
	Nodes        []TreeNode `json:"nodes"`
}

func (dt *DecisionTree) Type() string { return ModelTypeDecisionTree }

func (dt *DecisionTree) Arity() int { return dt.features }

func (dt *DecisionTree) PredictProba(features []float64) (float64, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("decision tree has no nodes")
	}
	if len(features) != dt.features {
		return 0, fmt.Errorf("expected %d features, got %d", dt.features, len(features))
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Probability, nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

func decodeDecisionTree(params json.RawMessage) (MLModel, error) {
	var p treeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	dt := &DecisionTree{nodes: p.Nodes, features: p.FeatureCount}
	if err := dt.validate(); err != nil {
		return nil, err
	}
	return dt, nil
}

// validate guarantees PredictProba terminates and never indexes out of range.
func (dt *DecisionTree) validate() error {
	if dt.features <= 0 {
		return errors.New("decision tree feature_count must be positive")
	}
	if len(dt.nodes) == 0 {
		return errors.New("decision tree has no nodes")
	}
	for i, node := range dt.nodes {
		if node.IsLeaf {
			if math.IsNaN(node.Probability) || node.Probability < 0 || node.Probability > 1 {
				return fmt.Errorf("node %d: leaf probability %v outside [0,1]", i, node.Probability)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= dt.features {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(dt.nodes) {
				return fmt.Errorf("node %d: invalid child index %d", i, child)
			}
		}
	}
	return nil
}
