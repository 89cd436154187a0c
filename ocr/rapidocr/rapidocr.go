// Package rapidocr provides alternate engine B, a client for a RapidOCR
// sidecar service. The sidecar runs the ONNX recognition models; detection
// and angle classification are disabled there because the input is already a
// cropped single glyph.
package rapidocr

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
const DefaultEndpoint = "http://127.0.0.1:9003"

// minScore filters out recognitions the sidecar itself considers noise.
const minScore = 0.1

func init() {
	ocr.Register(ocr.EngineRapid, func(opts ocr.Options) (ocr.Engine, error) {
		return New(opts.RapidEndpoint), nil
	})
}

// Engine implements ocr.Engine against a RapidOCR sidecar.
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

func (e *Engine) Name() string { return "rapidocr" }

type request struct {
	ID     string `json:"id,omitempty"`
	Image  string `json:"image"`
	UseDet bool   `json:"use_det"`
	UseCls bool   `json:"use_cls"`
	UseRec bool   `json:"use_rec"`
}

type response struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Recognize submits a glyph image to the sidecar's /ocr endpoint.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	body, err := json.Marshal(request{
		ID:     in.ID,
		Image:  base64.StdEncoding.EncodeToString(in.Image),
		UseDet: false,
		UseCls: false,
		UseRec: true,
	})
	if err != nil {
		return ocr.Result{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/ocr", bytes.NewReader(body))
	if err != nil {
		return ocr.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("rapidocr sidecar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ocr.Result{}, fmt.Errorf("rapidocr sidecar: status %d", resp.StatusCode)
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Result{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Score < minScore {
		return ocr.Result{InputID: in.ID}, nil
	}
	return ocr.Result{InputID: in.ID, Text: out.Text, Confidence: out.Score}, nil
}
