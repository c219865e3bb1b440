package layout

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/logger"
)

type stubClassifier struct {
	pred      *Prediction
	err       error
	healthErr error
	calls     int
}

func (s *stubClassifier) Predict(ctx context.Context, in *models.LayoutInput) (*Prediction, error) {
	s.calls++
	return s.pred, s.err
}

func (s *stubClassifier) Health(ctx context.Context) error { return s.healthErr }

func readyAdapter(t *testing.T, c Classifier) *Adapter {
	t.Helper()
	a := NewAdapter(c, logger.NewTestLogger())
	require.NoError(t, a.Load(context.Background()))
	return a
}

func sampleInput() *models.LayoutInput {
	return &models.LayoutInput{
		Image: image.NewRGBA(image.Rect(0, 0, 100, 50)),
		Words: []string{"Invoice", "42"},
		Boxes: []models.Box{{1, 2, 30, 12}, {40, 2, 55, 12}},
	}
}

func TestArgMax(t *testing.T) {
	assert.Equal(t, -1, ArgMax(nil))
	assert.Equal(t, 0, ArgMax([]float64{1}))
	assert.Equal(t, 2, ArgMax([]float64{-3, 0.5, 7, 6.9}))
	assert.Equal(t, 1, ArgMax([]float64{0, 2, 2}))
}

func TestClassifyArgMaxLabels(t *testing.T) {
	c := &stubClassifier{pred: &Prediction{
		Tokens:   []string{"<s>", "Inv", "oice", "42"},
		Logits:   [][]float64{{5, 1, 0}, {0.1, 3.2, 0.4}, {0, 0.5, 2.5}, {0, 0, 0, 9}},
		ID2Label: map[string]string{"0": "O", "1": "B-HEADER", "2": "I-HEADER"},
	}}
	a := readyAdapter(t, c)

	labels, err := a.Classify(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, []models.StructuredLabel{
		{Token: "<s>", Label: "O"},
		{Token: "Inv", Label: "B-HEADER"},
		{Token: "oice", Label: "I-HEADER"},
		{Token: "42", Label: "LABEL_3"},
	}, labels)
}

func TestClassifyEmptyInputSkipsClassifier(t *testing.T) {
	c := &stubClassifier{}
	a := readyAdapter(t, c)

	labels, err := a.Classify(context.Background(), &models.LayoutInput{Words: []string{}, Boxes: []models.Box{}})
	require.NoError(t, err)
	assert.NotNil(t, labels)
	assert.Empty(t, labels)
	assert.Zero(t, c.calls)

	labels, err = a.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestClassifyNotReady(t *testing.T) {
	a := NewAdapter(&stubClassifier{}, logger.NewTestLogger())

	_, err := a.Classify(context.Background(), sampleInput())
	assert.ErrorIs(t, err, models.ErrModelNotReady)
}

func TestClassifyRejectsMismatchedOutput(t *testing.T) {
	c := &stubClassifier{pred: &Prediction{Tokens: []string{"a", "b"}, Logits: [][]float64{{1}}}}
	a := readyAdapter(t, c)

	_, err := a.Classify(context.Background(), sampleInput())
	require.Error(t, err)
}

func TestLoadFailsWhenUnhealthy(t *testing.T) {
	a := NewAdapter(&stubClassifier{healthErr: assert.AnError}, logger.NewTestLogger())
	require.Error(t, a.Load(context.Background()))
	assert.False(t, a.Ready())
}

func TestHTTPClassifier(t *testing.T) {
	var got predictRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Prediction{
			Tokens:   []string{"Invoice", "42"},
			Logits:   [][]float64{{0.2, 0.8}, {0.9, 0.1}},
			ID2Label: map[string]string{"0": "O", "1": "B-HEADER"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	classifier := NewHTTPClassifier(&config.ClassifierConfig{Endpoint: srv.URL + "/", Timeout: 5 * time.Second})
	a := readyAdapter(t, classifier)

	labels, err := a.Classify(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, []models.StructuredLabel{{Token: "Invoice", Label: "B-HEADER"}, {Token: "42", Label: "O"}}, labels)

	assert.Equal(t, 100, got.Width)
	assert.Equal(t, 50, got.Height)
	assert.Equal(t, []string{"Invoice", "42"}, got.Words)
	assert.Equal(t, []models.Box{{1, 2, 30, 12}, {40, 2, 55, 12}}, got.Boxes)
	assert.NotEmpty(t, got.Image)
}

func TestHTTPClassifierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(&config.ClassifierConfig{Endpoint: srv.URL})
	require.Error(t, c.Health(context.Background()))
	_, err := c.Predict(context.Background(), sampleInput())
	require.Error(t, err)
}
