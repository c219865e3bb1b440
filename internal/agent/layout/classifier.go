// Package layout adapts the external layout-aware token classifier.
package layout

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/internal/models"
)

// Prediction is the classifier's raw output: one logit row per emitted
// token and the id-to-label table of the model.
type Prediction struct {
	Tokens   []string          `json:"tokens"`
	Logits   [][]float64       `json:"logits"`
	ID2Label map[string]string `json:"id2label"`
}

// Classifier is a layout-aware token classification model.
type Classifier interface {
	Predict(ctx context.Context, in *models.LayoutInput) (*Prediction, error)
	Health(ctx context.Context) error
}

type predictRequest struct {
	Image  string       `json:"image"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Words  []string     `json:"words"`
	Boxes  []models.Box `json:"boxes"`
}

// HTTPClassifier calls a classifier served over HTTP:
// POST {endpoint}/predict and GET {endpoint}/health.
type HTTPClassifier struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPClassifier(cfg *config.ClassifierConfig) *HTTPClassifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &HTTPClassifier{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClassifier) Predict(ctx context.Context, in *models.LayoutInput) (*Prediction, error) {
	encoded, err := encodeImage(in.Image)
	if err != nil {
		return nil, err
	}
	bounds := in.Image.Bounds()
	body, err := json.Marshal(predictRequest{
		Image:  encoded,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Words:  in.Words,
		Boxes:  in.Boxes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(msg))
	}

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &pred, nil
}

func (c *HTTPClassifier) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func encodeImage(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("layout input has no image")
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
