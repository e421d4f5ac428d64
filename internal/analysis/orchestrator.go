// Package analysis runs the skin analysis pipeline and its sibling ingredient
// and suitability checks.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/raine/telegram-skinwise-bot/internal/imaging"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Result is a completed skin analysis. Severity and Remedies were both derived
// from Condition.
type Result struct {
	ID              string           `json:"id"`
	Condition       string           `json:"condition"`
	Severity        llm.Severity     `json:"severity"`
	Remedies        llm.RemedyBundle `json:"remedies"`
	RemainingTrials int              `json:"remainingTrials"`
	HasPaid         bool             `json:"hasPaid"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Recorder persists completed analyses.
type Recorder interface {
	Record(ctx context.Context, userID string, result *Result) error
}

// Orchestrator sequences classification, the severity and remedies fan-out
// and the trial debit into one Result.
type Orchestrator struct {
	gateway  llm.Gateway
	guard    *entitlement.Guard
	maxBytes int64
	recorder Recorder
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxBytes sets the image size ceiling.
func WithMaxBytes(n int64) Option {
	return func(o *Orchestrator) { o.maxBytes = n }
}

// WithRecorder records every successful analysis.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func NewOrchestrator(gateway llm.Gateway, guard *entitlement.Guard, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:  gateway,
		guard:    guard,
		maxBytes: imaging.DefaultMaxBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func checkImage(img llm.Image, maxBytes int64) *Error {
	if err := imaging.CheckSize(int64(len(img.Data)), maxBytes); err != nil {
		return fail(KindImageTooLarge, err)
	}
	if len(img.Data) == 0 {
		return fail(KindInvalidImage, errors.New("empty image"))
	}
	return nil
}

// entitlementError maps a guard or store error to a failure kind.
func entitlementError(err error) *Error {
	switch {
	case errors.Is(err, entitlement.ErrExhausted):
		return fail(KindEntitlementExhausted, err)
	case errors.Is(err, entitlement.ErrProfileNotFound):
		return fail(KindProfileNotFound, err)
	default:
		return fail(KindProfileUpdateFailed, err)
	}
}

// Analyze runs the full pipeline for userID. On any failure it returns an
// *Error and no trial is consumed. On success exactly one trial is debited
// for unpaid users before the Result is returned.
func (o *Orchestrator) Analyze(ctx context.Context, userID string, img llm.Image) (*Result, error) {
	logger := log.With().Str("userId", userID).Logger()

	if err := checkImage(img, o.maxBytes); err != nil {
		return nil, err
	}

	if _, err := o.guard.Check(ctx, userID); err != nil {
		logger.Info().Err(err).Msg("analysis rejected by entitlement guard")
		return nil, entitlementError(err)
	}

	logger.Debug().Msg("classifying")
	classification, err := o.gateway.Classify(ctx, img)
	if err != nil {
		return nil, fail(KindClassificationFailed, err)
	}
	condition := classification.Label
	if condition == "" {
		return nil, fail(KindClassificationFailed, errors.New("empty classification label"))
	}
	logger.Debug().Str("condition", condition).Msg("classified, assessing severity and remedies")

	var (
		severity llm.Severity
		remedies *llm.RemedyBundle
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := o.gateway.AssessSeverity(gctx, img, condition)
		if err != nil {
			return fail(KindSeverityAssessmentFailed, err)
		}
		if s.Rank() < 0 {
			return fail(KindSeverityAssessmentFailed, fmt.Errorf("severity %q outside scale", s))
		}
		severity = s
		return nil
	})
	g.Go(func() error {
		r, err := o.gateway.GenerateRemedies(gctx, condition)
		if err != nil {
			return fail(KindRemedyGenerationFailed, err)
		}
		if r == nil || len(r.Remedies) == 0 {
			return fail(KindRemedyGenerationFailed, errors.New("empty remedy bundle"))
		}
		remedies = r
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Str("condition", condition).Msg("analysis failed")
		return nil, err
	}

	logger.Debug().Msg("debiting trial")
	state, err := o.guard.Debit(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to debit trial, withholding result")
		return nil, entitlementError(err)
	}

	result := &Result{
		ID:              uuid.NewString(),
		Condition:       condition,
		Severity:        severity,
		Remedies:        *remedies,
		RemainingTrials: state.TrialCount,
		HasPaid:         state.HasPaid,
		CreatedAt:       o.now(),
	}

	logger.Info().
		Str("analysisId", result.ID).
		Str("condition", condition).
		Str("severity", string(severity)).
		Int("remainingTrials", state.TrialCount).
		Msg("analysis completed")

	if o.recorder != nil {
		if err := o.recorder.Record(ctx, userID, result); err != nil {
			logger.Warn().Err(err).Str("analysisId", result.ID).Msg("failed to record analysis")
		}
	}

	return result, nil
}
