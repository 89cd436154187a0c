package easyocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wudi/unicodefix/ocr"
)

func TestRecognizePicksBestResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/readtext" {
			t.Errorf("path = %q, want /readtext", r.URL.Path)
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Image == "" {
			t.Error("request carried no image payload")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"text": "8", "confidence": 0.41},
				{"text": "B", "confidence": 0.93},
			},
		})
	}))
	defer srv.Close()

	res, err := New(srv.URL).Recognize(context.Background(), ocr.NewInput("g1", []byte("png-bytes")))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if res.Text != "B" || res.Confidence != 0.93 {
		t.Errorf("Recognize() = %+v, want text B conf 0.93", res)
	}
	if res.InputID != "g1" {
		t.Errorf("InputID = %q, want g1", res.InputID)
	}
}

func TestRecognizeEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	res, err := New(srv.URL).Recognize(context.Background(), ocr.NewInput("g2", []byte("x")))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if _, ok := ocr.ReconcileChar(res, nil); ok {
		t.Error("empty sidecar result reconciled to a character")
	}
}

func TestRecognizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Recognize(context.Background(), ocr.NewInput("g3", []byte("x")))
	if err == nil {
		t.Fatal("Recognize() did not surface server error")
	}
	if _, ok := ocr.ReconcileChar(ocr.Result{}, err); ok {
		t.Error("engine error reconciled to a character")
	}
}
