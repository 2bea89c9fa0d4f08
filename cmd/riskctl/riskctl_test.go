package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestParseFeatures(t *testing.T) {
	got, err := parseFeatures([]string{"63, 1,3"})
	if err != nil {
		t.Fatalf("parseFeatures failed: %v", err)
	}
	if len(got) != 3 || got[0] != 63 || got[2] != 3 {
		t.Fatalf("unexpected features: %v", got)
	}

	if _, err := parseFeatures([]string{"63", "male"}); err == nil || !strings.Contains(err.Error(), "sex") {
		t.Fatalf("expected error naming the feature, got %v", err)
	}
}

func TestPredictAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Features []float64 `json:"features"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || r.URL.Path != "/predict" {
			t.Errorf("unexpected request %s: %v", r.URL.Path, err)
		}
		w.Header().Set("Content-Type", "application/json")
		if len(req.Features) != 16 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": "wrong number of features", "expected_features": 16, "received_features": len(req.Features),
			})
			return
		}
		w.Write([]byte(`{"prediction":1,"risk_probability":0.8765}`))
	}))
	defer server.Close()

	features := make([]float64, 16)
	resp, err := predict(context.Background(), server.Client(), server.URL, features)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	out := renderPrediction(message.NewPrinter(language.English), resp)
	if out != "High Risk (risk probability 0.88)" {
		t.Fatalf("unexpected rendering: %q", out)
	}

	_, err = predict(context.Background(), server.Client(), server.URL, features[:3])
	if err == nil || !strings.Contains(err.Error(), "expected 16 features, sent 3") {
		t.Fatalf("expected arity error, got %v", err)
	}
}

func TestHealthCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Heart Disease Prediction API is running"))
	}))
	defer server.Close()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"health", "--server", server.URL})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if !strings.Contains(out.String(), "running") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestAuditSkipsMalformedRows(t *testing.T) {
	log := "timestamp,inputs,prediction,probability\n" +
		"2024-05-01T10:00:00Z,\"[1,2]\",1,0.9\n" +
		"not-a-time,\"[1,2]\",0,0.1\n" +
		"2024-05-01T10:00:02Z,\"[1,2]\",0,0.3\n"

	summary, err := audit(strings.NewReader(log))
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	if summary.Rows != 2 || summary.Positive != 1 || len(summary.BadRows) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.BadRows[0].Line != 3 {
		t.Fatalf("expected bad row on line 3, got %d", summary.BadRows[0].Line)
	}
	if got := summary.meanProbability(); got < 0.5999 || got > 0.6001 {
		t.Fatalf("unexpected mean probability: %v", got)
	}

	var out bytes.Buffer
	printSummary(&out, message.NewPrinter(language.English), summary)
	if !strings.Contains(out.String(), "high risk:        1 (50.0%)") {
		t.Fatalf("unexpected summary output:\n%s", out.String())
	}
}

func TestAuditRejectsForeignFile(t *testing.T) {
	if _, err := audit(strings.NewReader("a,b\n1,2\n")); err == nil {
		t.Fatal("expected header error")
	}
}
