// Package llmtest provides an in-memory llm.Gateway for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/raine/telegram-skinwise-bot/internal/llm"
)

// Gateway is a test double for llm.Gateway.
// Each method can be overridden with a custom function.
// If not overridden, methods return a valid Eczema analysis.
// Thread-safe for use in concurrent tests.
type Gateway struct {
	ClassifyFunc           func(ctx context.Context, img llm.Image) (*llm.Classification, error)
	AssessSeverityFunc     func(ctx context.Context, img llm.Image, condition string) (llm.Severity, error)
	GenerateRemediesFunc   func(ctx context.Context, condition string) (*llm.RemedyBundle, error)
	AnalyzeIngredientsFunc func(ctx context.Context, img llm.Image) (*llm.IngredientReport, error)
	CheckSuitabilityFunc   func(ctx context.Context, condition string, img llm.Image) (*llm.SuitabilityReport, error)
	FollowUpFunc           func(ctx context.Context, req llm.FollowUpRequest) (string, error)

	mu sync.Mutex

	// Calls tracks all method invocations for assertions
	Calls []Call
}

// Call records a method call for test assertions.
type Call struct {
	Method string
	Args   []any
}

var _ llm.Gateway = (*Gateway)(nil)

// DefaultRemedies is the bundle returned by Gateway when not overridden.
func DefaultRemedies() *llm.RemedyBundle {
	return &llm.RemedyBundle{
		Remedies: []llm.Item{
			{Title: "Fragrance-free moisturizer", Description: "Apply twice daily to damp skin."},
			{Title: "Lukewarm showers", Description: "Avoid hot water, which strips natural oils."},
		},
		Routine: llm.Routine{
			AM: []string{"Gentle cleanser", "Moisturizer", "Sunscreen"},
			PM: []string{"Gentle cleanser", "Thick cream"},
		},
		Lifestyle: []llm.Item{{Title: "Cotton clothing", Description: "Wear breathable fabrics."}},
	}
}

func (m *Gateway) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Method: method, Args: args})
}

// CallCount returns how many times method was invoked.
func (m *Gateway) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// TotalCalls returns the number of invocations across all methods.
func (m *Gateway) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *Gateway) Classify(ctx context.Context, img llm.Image) (*llm.Classification, error) {
	m.record("Classify", img)
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, img)
	}
	return &llm.Classification{Label: "Eczema"}, nil
}

func (m *Gateway) AssessSeverity(ctx context.Context, img llm.Image, condition string) (llm.Severity, error) {
	m.record("AssessSeverity", img, condition)
	if m.AssessSeverityFunc != nil {
		return m.AssessSeverityFunc(ctx, img, condition)
	}
	return llm.SeverityMild, nil
}

func (m *Gateway) GenerateRemedies(ctx context.Context, condition string) (*llm.RemedyBundle, error) {
	m.record("GenerateRemedies", condition)
	if m.GenerateRemediesFunc != nil {
		return m.GenerateRemediesFunc(ctx, condition)
	}
	return DefaultRemedies(), nil
}

func (m *Gateway) AnalyzeIngredients(ctx context.Context, img llm.Image) (*llm.IngredientReport, error) {
	m.record("AnalyzeIngredients", img)
	if m.AnalyzeIngredientsFunc != nil {
		return m.AnalyzeIngredientsFunc(ctx, img)
	}
	return &llm.IngredientReport{
		Ingredients: []llm.Ingredient{
			{Name: "Aqua", ShortDescription: "Solvent"},
			{Name: "Glycerin", ShortDescription: "Humectant", IsBeneficial: true},
		},
		Summary: "A simple, gentle formula.",
	}, nil
}

func (m *Gateway) CheckSuitability(ctx context.Context, condition string, img llm.Image) (*llm.SuitabilityReport, error) {
	m.record("CheckSuitability", condition, img)
	if m.CheckSuitabilityFunc != nil {
		return m.CheckSuitabilityFunc(ctx, condition, img)
	}
	return &llm.SuitabilityReport{
		IsGoodMatch: true,
		Summary:     "Suitable for " + condition + ".",
		IngredientAnalyses: []llm.IngredientAnalysis{
			{Name: "Glycerin", IsHelpful: true, Reason: "Hydrates the skin barrier."},
		},
	}, nil
}

func (m *Gateway) FollowUp(ctx context.Context, req llm.FollowUpRequest) (string, error) {
	m.record("FollowUp", req)
	if m.FollowUpFunc != nil {
		return m.FollowUpFunc(ctx, req)
	}
	return "Keep the area moisturized. " + llm.Disclaimer, nil
}
