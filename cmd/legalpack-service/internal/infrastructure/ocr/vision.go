package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/conf"
)

// annotateRequest is the Vision images:annotate request format.
type annotateRequest struct {
	Requests []annotateItem `json:"requests"`
}

type annotateItem struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type annotateFeature struct {
	Type string `json:"type"`
}

// annotateResponse is the Vision images:annotate response format.
type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"responses"`
}

// VisionDetector runs OCR through the Google Vision REST API.
type VisionDetector struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     *zap.Logger
}

var _ biz.TextDetector = (*VisionDetector)(nil)

// NewVisionDetector builds the detector from config. Returns nil when no
// API key is configured, which disables the OCR fallback.
func NewVisionDetector(cfg *conf.Config, logger *zap.Logger) *VisionDetector {
	if cfg.OCR.APIKey == "" {
		logger.Warn("ocr api key not configured, scanned pages will use native text only")
		return nil
	}
	return &VisionDetector{
		httpClient: &http.Client{Timeout: cfg.OCR.Timeout},
		endpoint:   cfg.OCR.Endpoint,
		apiKey:     cfg.OCR.APIKey,
		logger:     logger,
	}
}

// DetectText runs document text detection over one image.
func (d *VisionDetector) DetectText(ctx context.Context, image []byte) (string, error) {
	reqBody := annotateRequest{
		Requests: []annotateItem{{
			Image:    annotateImage{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []annotateFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := d.endpoint + "?key=" + d.apiKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var annotated annotateResponse
	if err := json.Unmarshal(respBody, &annotated); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(annotated.Responses) == 0 {
		return "", fmt.Errorf("empty annotation response")
	}
	if annotated.Responses[0].Error != nil {
		return "", fmt.Errorf("vision: %s", annotated.Responses[0].Error.Message)
	}
	return annotated.Responses[0].FullTextAnnotation.Text, nil
}
