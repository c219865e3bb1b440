package layout

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// Adapter is the only caller of the classifier. It turns per-token logits
// into arg-max labels.
type Adapter struct {
	classifier Classifier
	logger     logger.Logger
	ready      atomic.Bool
}

func NewAdapter(classifier Classifier, log logger.Logger) *Adapter {
	return &Adapter{classifier: classifier, logger: log}
}

// Load waits for the classifier to report healthy and marks the adapter ready.
func (a *Adapter) Load(ctx context.Context) error {
	if err := a.classifier.Health(ctx); err != nil {
		return fmt.Errorf("load layout classifier: %w", err)
	}
	a.ready.Store(true)
	a.logger.Info("Layout classifier ready")
	return nil
}

func (a *Adapter) Ready() bool { return a.ready.Load() }

// Classify labels every token the classifier emits. An input without words
// yields an empty result and no classifier call.
func (a *Adapter) Classify(ctx context.Context, in *models.LayoutInput) ([]models.StructuredLabel, error) {
	if !a.ready.Load() {
		return nil, models.ErrModelNotReady
	}
	if in.Len() == 0 {
		return []models.StructuredLabel{}, nil
	}
	if len(in.Words) != len(in.Boxes) {
		return nil, fmt.Errorf("layout input has %d words but %d boxes", len(in.Words), len(in.Boxes))
	}

	pred, err := a.classifier.Predict(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("classify layout tokens: %w", err)
	}
	return Decode(pred)
}

// Decode picks the highest-scoring label for each token. Ties go to the
// lowest class id. Ids missing from the label table become "LABEL_<id>".
func Decode(pred *Prediction) ([]models.StructuredLabel, error) {
	if len(pred.Tokens) != len(pred.Logits) {
		return nil, fmt.Errorf("classifier returned %d tokens but %d logit rows", len(pred.Tokens), len(pred.Logits))
	}

	labels := make([]models.StructuredLabel, 0, len(pred.Tokens))
	for i, tok := range pred.Tokens {
		id := ArgMax(pred.Logits[i])
		if id < 0 {
			return nil, fmt.Errorf("token %d has no logits", i)
		}
		label, ok := pred.ID2Label[strconv.Itoa(id)]
		if !ok {
			label = "LABEL_" + strconv.Itoa(id)
		}
		labels = append(labels, models.StructuredLabel{Token: tok, Label: label})
	}
	return labels, nil
}

// ArgMax returns the index of the largest value, or -1 for an empty slice.
func ArgMax(xs []float64) int {
	best := -1
	for i, x := range xs {
		if best < 0 || x > xs[best] {
			best = i
		}
	}
	return best
}
