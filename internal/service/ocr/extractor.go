// Package ocr turns a checkpoint camera snapshot into a travel-time status
// string such as "22 mins to JB".
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/martout2002/JBbot/internal/model"
)

// DefaultThreshold is the luma below which a pixel becomes black.
const DefaultThreshold = 128

// ErrDecode is returned when the snapshot is not a decodable image.
var ErrDecode = errors.New("decode image")

// Engine recognizes text in a PNG encoded image laid out as a single
// uniform block of text.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Result carries the normalized status along with the raw OCR text.
type Result struct {
	Status string
	Text   string
}

type Extractor struct {
	engine    Engine
	threshold uint8
}

func NewExtractor(engine Engine) *Extractor {
	return &Extractor{engine: engine, threshold: DefaultThreshold}
}

// Extract returns the normalized status for a snapshot. An unrecognizable
// snapshot yields model.StatusUnavailable, not an error; errors are limited
// to undecodable input and engine failures.
func (e *Extractor) Extract(ctx context.Context, data []byte, cp model.Checkpoint) (string, error) {
	res, err := e.ExtractDetailed(ctx, data, cp)
	return res.Status, err
}

// ExtractDetailed is Extract that also returns the raw OCR text.
func (e *Extractor) ExtractDetailed(ctx context.Context, data []byte, cp model.Checkpoint) (Result, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Preprocess(img, cp.Region, e.threshold), imaging.PNG); err != nil {
		return Result{}, fmt.Errorf("encode preprocessed image: %w", err)
	}

	text, err := e.engine.Recognize(ctx, buf.Bytes())
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return Result{Status: ParseStatus(text), Text: text}, nil
}

// Preprocess crops img to region (relative to the image origin), converts it
// to grayscale and binarizes it. A zero region, or one lying entirely outside
// the image, keeps the full frame.
func Preprocess(img image.Image, region model.Region, threshold uint8) *image.NRGBA {
	src := img
	if !region.IsZero() {
		bounds := img.Bounds()
		rect := region.Rect().Add(bounds.Min).Intersect(bounds)
		if !rect.Empty() {
			src = imaging.Crop(img, rect)
		}
	}

	return imaging.AdjustFunc(imaging.Grayscale(src), func(c color.NRGBA) color.NRGBA {
		v := uint8(255)
		if c.R < threshold {
			v = 0
		}
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	})
}
