package ocr

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	appconfig "github.com/feichai0017/document-chat/config"
	"github.com/feichai0017/document-chat/pkg/logger"
)

// TextractAPI is the subset of the Textract client the engine calls.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// TextractEngine sends images to AWS Textract.
type TextractEngine struct {
	client TextractAPI
	logger logger.Logger
}

func NewTextractEngine(ctx context.Context, cfg *appconfig.TextractConfig, log logger.Logger) (*TextractEngine, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewTextractEngineWithClient(client, log), nil
}

func NewTextractEngineWithClient(client TextractAPI, log logger.Logger) *TextractEngine {
	return &TextractEngine{client: client, logger: log}
}

func (e *TextractEngine) Name() string { return "textract" }

func (e *TextractEngine) detect(ctx context.Context, img image.Image) ([]types.Block, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	out, err := e.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: data},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect document text: %w", err)
	}
	return out.Blocks, nil
}

func (e *TextractEngine) Text(ctx context.Context, img image.Image) (string, error) {
	blocks, err := e.detect(ctx, img)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, block := range blocks {
		if block.BlockType == types.BlockTypeLine && block.Text != nil {
			lines = append(lines, *block.Text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (e *TextractEngine) Words(ctx context.Context, img image.Image) ([]Word, error) {
	blocks, err := e.detect(ctx, img)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	words := make([]Word, 0, len(blocks))
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeWord || block.Text == nil {
			continue
		}
		var confidence float64
		if block.Confidence != nil {
			confidence = float64(*block.Confidence)
		}
		words = append(words, Word{
			Text:       *block.Text,
			Box:        pixelBox(block.Geometry, bounds),
			Confidence: confidence,
		})
	}
	return words, nil
}

// pixelBox converts Textract's page-relative geometry into pixels.
func pixelBox(g *types.Geometry, bounds image.Rectangle) image.Rectangle {
	if g == nil || g.BoundingBox == nil {
		return image.Rectangle{}
	}
	bb := g.BoundingBox
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x0 := bounds.Min.X + int(math.Round(float64(bb.Left)*w))
	y0 := bounds.Min.Y + int(math.Round(float64(bb.Top)*h))
	return image.Rect(x0, y0,
		x0+int(math.Round(float64(bb.Width)*w)),
		y0+int(math.Round(float64(bb.Height)*h)),
	)
}

func (e *TextractEngine) Close() error { return nil }
