package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/message"

	"heartrisk/ml"
)

type predictResponse struct {
	Prediction      int     `json:"prediction"`
	RiskProbability float64 `json:"risk_probability"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ExpectedFeatures int    `json:"expected_features"`
	ReceivedFeatures *int   `json:"received_features"`
}

func newPredictCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "predict v1 v2 ... v16",
		Short: "Score one feature vector",
		Long: "Score one feature vector. Values are given in training column order:\n  " +
			strings.Join(ml.FeatureNames(), ", ") + "\n" +
			"A single comma-separated argument is also accepted.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			features, err := parseFeatures(args)
			if err != nil {
				return err
			}
			resp, err := predict(cmd.Context(), opts.client(), opts.server, features)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPrediction(opts.printer(), resp))
			return nil
		},
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := health(cmd.Context(), opts.client(), opts.server)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

// parseFeatures accepts either one value per argument or a single
// comma-separated list.
func parseFeatures(args []string) ([]float64, error) {
	if len(args) == 1 && strings.Contains(args[0], ",") {
		args = strings.Split(args[0], ",")
	}
	features := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil {
			return nil, fmt.Errorf("feature %d (%s): %q is not a number", i, featureName(i), arg)
		}
		features[i] = v
	}
	return features, nil
}

func featureName(i int) string {
	names := ml.FeatureNames()
	if i < len(names) {
		return names[i]
	}
	return "extra"
}

func predict(ctx context.Context, client *http.Client, server string, features []float64) (*predictResponse, error) {
	body, err := json.Marshal(map[string][]float64{"features": features})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func health(ctx context.Context, client *http.Client, server string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	msg, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("service unhealthy: %s", resp.Status)
	}
	return strings.TrimSpace(string(msg)), nil
}

func decodeError(resp *http.Response) error {
	var e errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e); err != nil || e.Error == "" {
		return fmt.Errorf("service returned %s", resp.Status)
	}
	if e.ReceivedFeatures != nil {
		return fmt.Errorf("%s (expected %d features, sent %d)", e.Error, e.ExpectedFeatures, *e.ReceivedFeatures)
	}
	return fmt.Errorf("%s: %s", resp.Status, e.Error)
}

func renderPrediction(p *message.Printer, resp *predictResponse) string {
	verdict := "Low Risk"
	if resp.Prediction == 1 {
		verdict = "High Risk"
	}
	return p.Sprintf("%s (risk probability %.2f)", verdict, resp.RiskProbability)
}
