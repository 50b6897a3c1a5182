package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultTimeout   = 90 * time.Second
	DefaultThreshold = 0.7
)

// Outcome is one finished recognition.
type Outcome struct {
	Text           string
	Confidence     float64
	Fields         Fields
	MeetsThreshold bool
}

// Processor runs an Engine under a timeout and extracts fields from its text.
type Processor struct {
	engine  Engine
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewProcessor wraps engine. A zero timeout uses DefaultTimeout.
func NewProcessor(engine Engine, timeout time.Duration, logger *slog.Logger) *Processor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{engine: engine, timeout: timeout, now: time.Now, logger: logger}
}

// Process recognises the image at path. threshold decides MeetsThreshold; a
// low confidence is logged but still returns the text.
func (p *Processor) Process(ctx context.Context, path string, threshold float64) (Outcome, error) {
	if p.engine == nil {
		return Outcome{}, fmt.Errorf("no ocr engine configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.engine.Recognize(ctx, path)
	if err != nil {
		return Outcome{}, fmt.Errorf("ocr processing failed: %w", err)
	}

	fields := NewFieldExtractor(p.now()).Extract(res.Text)
	fields.Confidence = res.Confidence

	out := Outcome{
		Text:           CleanText(res.Text),
		Confidence:     res.Confidence,
		Fields:         fields,
		MeetsThreshold: MeetsThreshold(res.Confidence, threshold),
	}
	if !out.MeetsThreshold {
		p.logger.Warn("OCR confidence below threshold", "path", path, "confidence", res.Confidence, "threshold", threshold)
	}
	return out, nil
}
