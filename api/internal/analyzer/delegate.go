package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"nutrilens/api/internal/analyzer/types"
	"nutrilens/api/internal/util"
)

// Delegate turns image bytes into an AnalysisResult through a Generator.
// Every error it returns is an *Error.
type Delegate struct {
	gen         Generator
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
	debug       bool
}

type Option func(*Delegate)

// WithMaxAttempts bounds retries of transient failures; 1 means a single call.
func WithMaxAttempts(n int) Option {
	return func(d *Delegate) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay; attempt k waits k*base.
func WithBackoff(base time.Duration) Option {
	return func(d *Delegate) { d.backoff = base }
}

// WithTimeout limits a whole Analyze call. Zero leaves the transport default.
func WithTimeout(t time.Duration) Option {
	return func(d *Delegate) { d.timeout = t }
}

func WithDebug(on bool) Option {
	return func(d *Delegate) { d.debug = on }
}

func NewDelegate(gen Generator, opts ...Option) *Delegate {
	d := &Delegate{gen: gen, maxAttempts: 1, backoff: 300 * time.Millisecond}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Engine returns the generator name and model, for logs and the journal.
func (d *Delegate) Engine() (name, model string) {
	if d.gen == nil {
		return "", ""
	}
	return d.gen.Name(), d.gen.GetModel()
}

func (d *Delegate) Analyze(ctx context.Context, img []byte, mimeType string) (types.AnalysisResult, error) {
	if d.gen == nil {
		return types.AnalysisResult{}, configurationError(ErrMissingAPIKey)
	}
	if len(img) == 0 {
		return types.AnalysisResult{}, delegateFailure(errors.New("empty image"))
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req := Request{Image: img, MIMEType: mimeType, Prompt: Prompt, Schema: Schema}
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		raw, err := d.gen.Generate(ctx, req)
		if err != nil {
			if errors.Is(err, ErrMissingAPIKey) {
				return types.AnalysisResult{}, configurationError(err)
			}
			lastErr = err
			log.Printf("%s analyze: attempt %d/%d failed: %v", d.gen.Name(), attempt, d.maxAttempts, err)
			if attempt == d.maxAttempts || !Transient(err) || !sleepCtx(ctx, time.Duration(attempt)*d.backoff) {
				break
			}
			continue
		}
		if d.debug {
			log.Printf("%s analyze: %d bytes of JSON in %v", d.gen.Name(), len(raw), time.Since(start))
		}
		out, err := ParseResult(raw)
		if err != nil {
			return types.AnalysisResult{}, delegateFailure(err)
		}
		return out, nil
	}
	return types.AnalysisResult{}, delegateFailure(fmt.Errorf("%s: %w", d.gen.Name(), lastErr))
}

// ParseResult decodes model output and checks it against the AnalysisResult shape.
func ParseResult(raw string) (types.AnalysisResult, error) {
	txt := util.StripCodeFences(raw)
	if txt == "" {
		return types.AnalysisResult{}, errors.New("empty response")
	}
	if err := CheckShape([]byte(txt)); err != nil {
		return types.AnalysisResult{}, err
	}
	var out types.AnalysisResult
	if err := util.DecodeStrict([]byte(txt), &out); err != nil {
		return types.AnalysisResult{}, fmt.Errorf("bad JSON: %w", err)
	}
	if out.Foods == nil {
		out.Foods = []types.FoodItem{}
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
