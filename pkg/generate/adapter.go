// Package generate builds prompts for the translation and summary endpoints,
// calls the generation backend once per request and post-processes its output.
package generate

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lisan-ai/lisan/pkg/models"
)

// Ellipsis is appended to truncated summaries.
const Ellipsis = "..."

// Adapter wraps a Generator with per-endpoint prompt construction and output
// post-processing. It never retries.
type Adapter struct {
	gen     Generator
	timeout time.Duration
	tracer  trace.Tracer
}

// NewAdapter creates an Adapter. A zero timeout leaves the deadline to ctx.
func NewAdapter(gen Generator, timeout time.Duration) *Adapter {
	return &Adapter{
		gen:     gen,
		timeout: timeout,
		tracer:  otel.Tracer("github.com/lisan-ai/lisan/pkg/generate"),
	}
}

// Translate renders text in Arabic using the given formality register.
func (a *Adapter) Translate(ctx context.Context, text, formality string) (string, error) {
	raw, err := a.call(ctx, "translate", translationPrompt(text, formality))
	if err != nil {
		return "", err
	}
	out := FilterArabic(raw)
	if out == "" {
		return "", &Error{Kind: KindEmpty, Err: errors.New("no Arabic text in model output")}
	}
	return out, nil
}

// Summarize summarizes text in style, bounded to maxLength characters.
// The boolean result reports whether the model output had to be cut.
func (a *Adapter) Summarize(ctx context.Context, text, style string, maxLength int, bullets bool) (string, bool, error) {
	if maxLength <= 0 {
		maxLength = models.DefaultMaxLength
	}
	raw, err := a.call(ctx, "summarize", summaryPrompt(text, style, maxLength, bullets))
	if err != nil {
		return "", false, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, &Error{Kind: KindEmpty, Err: errors.New("model returned no summary")}
	}
	summary, truncated := Truncate(raw, maxLength)
	return summary, truncated, nil
}

func (a *Adapter) call(ctx context.Context, op, prompt string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	ctx, span := a.tracer.Start(ctx, "generate."+op,
		trace.WithAttributes(attribute.Int("prompt.length", len(prompt))))
	defer span.End()

	out, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		ge := classify(err)
		span.RecordError(ge)
		span.SetStatus(codes.Error, string(ge.Kind))
		return "", ge
	}
	span.SetAttributes(attribute.Int("output.length", len(out)))
	return out, nil
}

// FilterArabic keeps only characters from the Arabic block (U+0600 to U+06FF)
// and whitespace, then collapses whitespace runs to single spaces.
func FilterArabic(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '\u0600' && r <= '\u06FF':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Truncate bounds s to max characters. When s is longer it is cut at the last
// whitespace at or before max (hard cut if there is none) and Ellipsis is
// appended.
func Truncate(s string, max int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}

	cut := runes[:max]
	if !unicode.IsSpace(runes[max]) {
		for i := len(cut) - 1; i > 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + Ellipsis, true
}
