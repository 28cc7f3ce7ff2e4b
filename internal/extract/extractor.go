// Package extract turns raw paper text into a validated Record with two
// model passes: a free-form understanding pass and a strict formatting pass.
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/plasmarag/plasmarag/internal/llm"
	"github.com/plasmarag/plasmarag/internal/logger"
)

// Completer issues one chat completion.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Stage identifies a state of the extraction machine.
type Stage string

const (
	StageUnderstanding Stage = "understanding"
	StageFormatting    Stage = "formatting"
	StageValidation    Stage = "validation"
)

// StagePolicy is the model and attempt budget for one stage.
type StagePolicy struct {
	Model       string
	MaxAttempts int
}

// Options configures an Extractor.
type Options struct {
	Understanding StagePolicy
	Formatting    StagePolicy
	MaxInputChars int // 0 means no limit
}

// Extractor runs the understanding → formatting → validation machine.
// It has no persistence side effects.
type Extractor struct {
	llm  Completer
	opts Options
	log  *zap.Logger
}

// New creates an Extractor. Attempt counts below one are raised to one.
func New(c Completer, opts Options) *Extractor {
	if opts.Understanding.MaxAttempts < 1 {
		opts.Understanding.MaxAttempts = 1
	}
	if opts.Formatting.MaxAttempts < 1 {
		opts.Formatting.MaxAttempts = 1
	}
	return &Extractor{llm: c, opts: opts, log: logger.Named("extract")}
}

// Extract produces a validated Record from paper text. Any failure is an
// *Error naming the stage; partial records are never returned.
func (e *Extractor) Extract(ctx context.Context, text string) (*Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Stage: StageUnderstanding, Err: ErrEmptyInput}
	}
	text = llm.TruncateRunes(text, e.opts.MaxInputChars)

	var (
		notes string
		rec   *Record
		err   error
	)
	stage := StageUnderstanding
	for {
		switch stage {
		case StageUnderstanding:
			if notes, err = e.understand(ctx, text); err != nil {
				return nil, err
			}
			stage = StageFormatting
		case StageFormatting:
			if rec, err = e.format(ctx, notes); err != nil {
				return nil, err
			}
			stage = StageValidation
		case StageValidation:
			if err := rec.CheckQuality(); err != nil {
				return nil, &Error{Stage: StageValidation, Attempts: 1, Err: err}
			}
			e.log.Debug("extraction complete",
				zap.String("title", rec.Metadata.Title),
				zap.Int("parameters", len(rec.Parameters)),
				zap.Int("force_fields", len(rec.ForceFields)))
			return rec, nil
		}
	}
}

// understand asks the reasoning model for tagged prose notes.
func (e *Extractor) understand(ctx context.Context, text string) (string, error) {
	policy := e.opts.Understanding
	req := llm.Request{
		Model: policy.Model,
		Messages: []llm.Message{
			llm.System(understandingPrompt),
			llm.User(text),
		},
		Temperature: llm.Temperature(0.1),
	}

	var lastErr error
	var raw string
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		out, err := e.llm.Complete(ctx, req)
		if err == nil && strings.TrimSpace(out) == "" {
			err = ErrEmptyOutput
		}
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		raw, lastErr = out, err
		if ctx.Err() != nil {
			return "", &Error{Stage: StageUnderstanding, Attempts: attempt, Raw: raw, Err: ctx.Err()}
		}
		e.log.Warn("understanding attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return "", &Error{Stage: StageUnderstanding, Attempts: policy.MaxAttempts, Raw: raw, Err: lastErr}
}

// format converts notes to a Record, feeding parse errors back to the model.
func (e *Extractor) format(ctx context.Context, notes string) (*Record, error) {
	policy := e.opts.Formatting
	messages := []llm.Message{
		llm.System(formattingPrompt),
		llm.User(formattingInput(notes)),
	}

	var lastErr error
	var raw string
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		out, err := e.llm.Complete(ctx, llm.Request{
			Model:       policy.Model,
			Messages:    messages,
			Temperature: llm.Temperature(0),
			JSONMode:    true,
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, &Error{Stage: StageFormatting, Attempts: attempt, Raw: raw, Err: ctx.Err()}
			}
			e.log.Warn("formatting call failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		raw = out
		rec, err := ParseRecord(out)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		e.log.Warn("formatting output rejected", zap.Int("attempt", attempt), zap.Error(err))
		messages = append(messages, llm.Assistant(out), llm.User(correctionPrompt(err)))
	}
	return nil, &Error{Stage: StageFormatting, Attempts: policy.MaxAttempts, Raw: raw, Err: lastErr}
}
