// Package easyocr provides alternate engine A, a client for an EasyOCR
// sidecar service. EasyOCR itself is a Python library; its reader and model
// weights live in a long-running HTTP sidecar (model loading is outside the
// core, per the engine contract) and this client submits one glyph image per
// request.
package easyocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wudi/unicodefix/ocr"
)

// DefaultEndpoint is the sidecar address used when none is configured.
const DefaultEndpoint = "http://127.0.0.1:8501"

func init() {
	ocr.Register(ocr.EngineEasy, func(opts ocr.Options) (ocr.Engine, error) {
		return New(opts.EasyEndpoint), nil
	})
}

// Engine implements ocr.Engine against an EasyOCR sidecar.
type Engine struct {
	endpoint string
	client   *http.Client
}

// New constructs the engine. An empty endpoint selects DefaultEndpoint.
func New(endpoint string) *Engine {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Engine{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "easyocr" }

type request struct {
	ID        string   `json:"id,omitempty"`
	Image     string   `json:"image"`
	Format    string   `json:"format"`
	Languages []string `json:"languages,omitempty"`
}

// response mirrors the sidecar's readtext output: one entry per detected
// text region, ordered by detection confidence.
type response struct {
	Results []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"results"`
}

// Recognize submits a glyph image to the sidecar's /readtext endpoint.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	body, err := json.Marshal(request{
		ID:        in.ID,
		Image:     base64.StdEncoding.EncodeToString(in.Image),
		Format:    string(in.Format),
		Languages: in.Languages,
	})
	if err != nil {
		return ocr.Result{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/readtext", bytes.NewReader(body))
	if err != nil {
		return ocr.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("easyocr sidecar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ocr.Result{}, fmt.Errorf("easyocr sidecar: status %d", resp.StatusCode)
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Result{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Results) == 0 {
		return ocr.Result{InputID: in.ID}, nil
	}
	best := out.Results[0]
	for _, r := range out.Results[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return ocr.Result{InputID: in.ID, Text: best.Text, Confidence: best.Confidence}, nil
}
