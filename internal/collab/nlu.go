package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civicflow/civicflow/internal/models"
)

// NLUClient talks JSON over HTTP to the language analysis service. One
// client implements every analysis collaborator.
type NLUClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewNLUClient creates a client for the service at baseURL.
func NewNLUClient(baseURL, userAgent string, timeout time.Duration) *NLUClient {
	return &NLUClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

var (
	_ Classifier    = (*NLUClient)(nil)
	_ Validator     = (*NLUClient)(nil)
	_ RiskAssessor  = (*NLUClient)(nil)
	_ Transcriber   = (*NLUClient)(nil)
	_ ImageAnalyzer = (*NLUClient)(nil)
	_ Narrator      = (*NLUClient)(nil)
)

type mediaRequest struct {
	FilePath         string           `json:"file_path"`
	MediaType        models.MediaType `json:"media_type"`
	OriginalFilename string           `json:"original_filename,omitempty"`
}

type textResponse struct {
	Text string `json:"text"`
}

// Classify implements Classifier.
func (c *NLUClient) Classify(ctx context.Context, description, mediaText string) (*Classification, error) {
	var out Classification
	err := c.post(ctx, "/classify", map[string]string{"description": description, "media_text": mediaText}, &out)
	if err != nil {
		return nil, err
	}
	out.Category = models.Category(strings.ToUpper(strings.TrimSpace(string(out.Category))))
	return &out, nil
}

// Validate implements Validator.
func (c *NLUClient) Validate(ctx context.Context, description string) (*Validation, error) {
	var out Validation
	if err := c.post(ctx, "/validate", map[string]string{"description": description}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssessRisk implements RiskAssessor.
func (c *NLUClient) AssessRisk(ctx context.Context, description string, category models.Category, mediaText string) (*RiskAssessment, error) {
	var out RiskAssessment
	err := c.post(ctx, "/risk", map[string]string{
		"description": description,
		"category":    string(category),
		"media_text":  mediaText,
	}, &out)
	if err != nil {
		return nil, err
	}
	out.RiskLevel = models.RiskLevel(strings.ToLower(strings.TrimSpace(string(out.RiskLevel))))
	return &out, nil
}

// Transcribe implements Transcriber.
func (c *NLUClient) Transcribe(ctx context.Context, media *models.Media) (string, error) {
	var out textResponse
	req := mediaRequest{FilePath: media.FilePath, MediaType: media.MediaType, OriginalFilename: media.OriginalFilename}
	if err := c.post(ctx, "/transcribe", req, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// AnalyzeImage implements ImageAnalyzer.
func (c *NLUClient) AnalyzeImage(ctx context.Context, media *models.Media) (string, error) {
	var out textResponse
	req := mediaRequest{FilePath: media.FilePath, MediaType: media.MediaType, OriginalFilename: media.OriginalFilename}
	if err := c.post(ctx, "/image", req, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// Narrate implements Narrator.
func (c *NLUClient) Narrate(ctx context.Context, stats models.BriefingStats) (string, error) {
	var out textResponse
	if err := c.post(ctx, "/narrate", stats, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", eris.New("empty narrative")
	}
	return out.Text, nil
}

func (c *NLUClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrapf(err, "encoding %s request", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrapf(err, "building %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "calling %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Errorf("%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "decoding %s response", path)
	}
	return nil
}
