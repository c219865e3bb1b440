package image

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImagePreprocessor transforms an image before OCR.
type ImagePreprocessor interface {
	Process(img image.Image) (image.Image, error)
}

type PreprocessConfig struct {
	Denoise           bool
	DenoiseStrength   float64
	ContrastNormalize bool
	ContrastAmount    float64
	Sharpen           bool
	SharpenStrength   float64
	// AdaptiveThreshold binarizes the page; useful for uneven lighting, slow on large scans.
	AdaptiveThreshold bool
	AdaptiveBlockSize int
	AdaptiveConstant  float64
}

func DefaultPreprocessConfig() *PreprocessConfig {
	return &PreprocessConfig{
		Denoise:           true,
		DenoiseStrength:   0.5,
		ContrastNormalize: true,
		ContrastAmount:    20,
		Sharpen:           true,
		SharpenStrength:   0.5,
		AdaptiveBlockSize: 15,
		AdaptiveConstant:  7,
	}
}

// NewPipeline builds the preprocessing chain described by cfg.
func NewPipeline(cfg *PreprocessConfig) []ImagePreprocessor {
	if cfg == nil {
		cfg = DefaultPreprocessConfig()
	}
	chain := []ImagePreprocessor{NewGrayscaleProcessor()}
	if cfg.Denoise {
		chain = append(chain, NewDenoiseProcessor(cfg.DenoiseStrength))
	}
	if cfg.ContrastNormalize {
		chain = append(chain, NewContrastProcessor(cfg.ContrastAmount))
	}
	if cfg.Sharpen {
		chain = append(chain, NewSharpenProcessor(cfg.SharpenStrength))
	}
	if cfg.AdaptiveThreshold {
		chain = append(chain, NewAdaptiveThresholdProcessor(cfg.AdaptiveBlockSize, cfg.AdaptiveConstant))
	}
	return chain
}

type GrayscaleProcessor struct{}

func NewGrayscaleProcessor() *GrayscaleProcessor {
	return &GrayscaleProcessor{}
}

func (p *GrayscaleProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

// DenoiseProcessor applies a light gaussian blur.
type DenoiseProcessor struct {
	strength float64
}

func NewDenoiseProcessor(strength float64) *DenoiseProcessor {
	return &DenoiseProcessor{strength: strength}
}

func (p *DenoiseProcessor) Process(img image.Image) (image.Image, error) {
	if p.strength <= 0 {
		return img, nil
	}
	return imaging.Blur(img, p.strength), nil
}

type ContrastProcessor struct {
	amount float64
}

func NewContrastProcessor(amount float64) *ContrastProcessor {
	return &ContrastProcessor{amount: amount}
}

func (p *ContrastProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.AdjustContrast(img, p.amount), nil
}

type SharpenProcessor struct {
	strength float64
}

func NewSharpenProcessor(strength float64) *SharpenProcessor {
	return &SharpenProcessor{strength: strength}
}

func (p *SharpenProcessor) Process(img image.Image) (image.Image, error) {
	if p.strength <= 0 {
		return img, nil
	}
	return imaging.Sharpen(img, p.strength), nil
}

// AdaptiveThresholdProcessor binarizes against the mean of each pixel's
// neighbourhood, computed from a summed-area table.
type AdaptiveThresholdProcessor struct {
	blockSize int
	constant  float64
}

func NewAdaptiveThresholdProcessor(blockSize int, constant float64) *AdaptiveThresholdProcessor {
	if blockSize < 3 {
		blockSize = 3
	}
	return &AdaptiveThresholdProcessor{blockSize: blockSize, constant: constant}
}

func (p *AdaptiveThresholdProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	lum := func(x, y int) int { return int(gray.Pix[y*gray.Stride+x*4]) }

	// integral[y+1][x+1] holds the sum of lum over [0,x]x[0,y]
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(lum(x, y))
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + row
		}
	}

	half := p.blockSize / 2
	result := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half+1, w)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			mean := float64(sum) / float64((x1-x0)*(y1-y0))
			if float64(lum(x, y)) < mean-p.constant {
				result.SetGray(x, y, color.Gray{Y: 0})
			} else {
				result.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return result, nil
}
