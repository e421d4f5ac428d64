package analysis

import (
	"context"
	"strings"

	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/raine/telegram-skinwise-bot/internal/imaging"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
	"github.com/rs/zerolog/log"
)

// IngredientOrchestrator reads ingredient labels, standalone or against a
// previous diagnosis. Neither operation consumes a trial. When gated, both
// require the user to pass the entitlement check first.
type IngredientOrchestrator struct {
	gateway  llm.Gateway
	guard    *entitlement.Guard
	gated    bool
	maxBytes int64
}

func NewIngredientOrchestrator(gateway llm.Gateway, guard *entitlement.Guard, gated bool, maxBytes int64) *IngredientOrchestrator {
	if maxBytes == 0 {
		maxBytes = imaging.DefaultMaxBytes
	}
	return &IngredientOrchestrator{gateway: gateway, guard: guard, gated: gated, maxBytes: maxBytes}
}

func (o *IngredientOrchestrator) precheck(ctx context.Context, userID string, img llm.Image) error {
	if err := checkImage(img, o.maxBytes); err != nil {
		return err
	}
	if o.gated {
		if _, err := o.guard.Check(ctx, userID); err != nil {
			return entitlementError(err)
		}
	}
	return nil
}

// ReadIngredients analyzes a product ingredient label.
func (o *IngredientOrchestrator) ReadIngredients(ctx context.Context, userID string, img llm.Image) (*llm.IngredientReport, error) {
	if err := o.precheck(ctx, userID, img); err != nil {
		return nil, err
	}

	report, err := o.gateway.AnalyzeIngredients(ctx, img)
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("ingredient read failed")
		return nil, fail(KindIngredientReadFailed, err)
	}

	log.Info().Str("userId", userID).Int("ingredients", len(report.Ingredients)).Msg("ingredients read")
	return report, nil
}

// CheckSuitability judges a product against condition, a label from an
// earlier analysis. The verdict is the model's and is not recomputed.
func (o *IngredientOrchestrator) CheckSuitability(ctx context.Context, userID, condition string, img llm.Image) (*llm.SuitabilityReport, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, fail(KindSuitabilityCheckFailed, ErrNoDiagnosis)
	}
	if err := o.precheck(ctx, userID, img); err != nil {
		return nil, err
	}

	report, err := o.gateway.CheckSuitability(ctx, condition, img)
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Str("condition", condition).Msg("suitability check failed")
		return nil, fail(KindSuitabilityCheckFailed, err)
	}

	log.Info().
		Str("userId", userID).
		Str("condition", condition).
		Bool("isGoodMatch", report.IsGoodMatch).
		Msg("suitability checked")
	return report, nil
}
