// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package recognizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zintix-labs/tablewatch/corefmt"
	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/spec"
)

func TestPredictRoundTrip(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		got, err := corefmt.DecodeJSONBytes(req.Image)
		if err != nil || string(got) != string(image) {
			t.Errorf("image payload mismatch: %v %q", err, got)
		}
		_ = json.NewEncoder(w).Encode(Prediction{Rank: 12, Suit: "d", Confidence: 0.91})
	}))
	defer srv.Close()

	rec, err := NewHTTP(spec.RecognizeSetting{Endpoint: srv.URL, TimeoutMS: 2000})
	if err != nil {
		t.Fatalf("new recognizer: %v", err)
	}
	pred, err := rec.Predict(context.Background(), image)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Rank != 12 || pred.Suit != "d" || pred.Confidence != 0.91 {
		t.Fatalf("unexpected prediction: %+v", pred)
	}
}

func TestPredictSidecarErrorIsWarn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec, err := NewHTTP(spec.RecognizeSetting{Endpoint: srv.URL, TimeoutMS: 2000})
	if err != nil {
		t.Fatalf("new recognizer: %v", err)
	}
	_, err = rec.Predict(context.Background(), []byte{1})
	if err == nil {
		t.Fatalf("expected error")
	}
	if errs.IsFatal(err) {
		t.Fatalf("sidecar failure must stay warn-level: %v", err)
	}
}

func TestPredictEmptyImage(t *testing.T) {
	rec, err := NewHTTP(spec.RecognizeSetting{Endpoint: "http://localhost:0", TimeoutMS: 100})
	if err != nil {
		t.Fatalf("new recognizer: %v", err)
	}
	if _, err := rec.Predict(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestPredictionFaceThresholds(t *testing.T) {
	strict, loose := 0.2, 0.5

	p := Prediction{Rank: 7, Suit: "h", Confidence: 0.3}
	if _, ok := p.Face(strict); !ok {
		t.Fatalf("0.3 confidence must pass 0.2 threshold")
	}
	if _, ok := p.Face(loose); ok {
		t.Fatalf("0.3 confidence must fail 0.5 threshold")
	}

	if _, ok := (Prediction{Rank: 0, Confidence: 0.9}).Face(strict); ok {
		t.Fatalf("rank 0 must never yield a face")
	}
	if _, ok := (Prediction{Rank: 14, Confidence: 0.9}).Face(strict); ok {
		t.Fatalf("rank out of range must never yield a face")
	}

	face, ok := (Prediction{Rank: 13, Suit: "s", Confidence: 0.99}).Face(loose)
	if !ok || face.Rank != 13 || face.Suit != "s" {
		t.Fatalf("unexpected face: %+v ok=%v", face, ok)
	}
}

func TestNewHTTPRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTP(spec.RecognizeSetting{}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
