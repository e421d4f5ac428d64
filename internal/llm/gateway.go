package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport is returned when the model call itself fails (network,
	// quota, server error, cancelled context).
	ErrTransport = errors.New("inference transport error")
	// ErrInvalidResponse is returned when the model answered but the
	// structured output is missing a required field or does not parse.
	ErrInvalidResponse = errors.New("invalid structured response")
)

// Image is an encoded raster image handed to the model.
type Image struct {
	Data     []byte
	MIMEType string
}

// Severity is the ordered severity scale of a detected condition.
type Severity string

const (
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

// Severities lists the scale in ascending order.
var Severities = []Severity{SeverityMild, SeverityModerate, SeveritySevere}

// ParseSeverity matches s case-insensitively against the scale.
func ParseSeverity(s string) (Severity, error) {
	s = strings.TrimSpace(s)
	for _, sev := range Severities {
		if strings.EqualFold(s, string(sev)) {
			return sev, nil
		}
	}
	return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidResponse, s)
}

// Rank returns the position of the severity on the scale, or -1.
func (s Severity) Rank() int {
	for i, sev := range Severities {
		if s == sev {
			return i
		}
	}
	return -1
}

// Classification is the detected condition label.
type Classification struct {
	Label string
}

// Item is a titled piece of advice (a remedy or a lifestyle tip).
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Routine is a daily skincare routine. AM and PM are ordered steps and may be
// empty but are always present in a valid bundle.
type Routine struct {
	AM []string `json:"am"`
	PM []string `json:"pm"`
}

// RemedyBundle is the remedy, routine and lifestyle advice for a condition.
type RemedyBundle struct {
	Remedies  []Item  `json:"remedies"`
	Routine   Routine `json:"routine"`
	Lifestyle []Item  `json:"lifestyle"`
}

// Ingredient is one entry read from a product label. IsBeneficial and
// IsIrritant are independent; both may be false.
type Ingredient struct {
	Name             string `json:"name"`
	ShortDescription string `json:"shortDescription"`
	IsBeneficial     bool   `json:"isBeneficial"`
	IsIrritant       bool   `json:"isIrritant"`
}

// IngredientReport is the result of reading an ingredient label.
type IngredientReport struct {
	Ingredients []Ingredient `json:"ingredients"`
	Summary     string       `json:"summary"`
}

// IngredientAnalysis is the relevance of one ingredient to a diagnosed condition.
type IngredientAnalysis struct {
	Name      string `json:"name"`
	IsHelpful bool   `json:"isHelpful"`
	IsHarmful bool   `json:"isHarmful"`
	Reason    string `json:"reason"`
}

// SuitabilityReport is the model's verdict on a product for a condition.
type SuitabilityReport struct {
	IsGoodMatch        bool                 `json:"isGoodMatch"`
	Summary            string               `json:"summary"`
	IngredientAnalyses []IngredientAnalysis `json:"ingredientAnalyses"`
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a follow-up conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// FollowUpRequest carries everything the model needs to answer a follow-up
// question. History holds the turns before Question.
type FollowUpRequest struct {
	DiagnosisContext string
	History          []Turn
	Question         string
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Gateway is the inference boundary used by the orchestrators. Every method
// returns an error wrapping ErrTransport or ErrInvalidResponse on failure.
type Gateway interface {
	Classify(ctx context.Context, img Image) (*Classification, error)
	AssessSeverity(ctx context.Context, img Image, condition string) (Severity, error)
	GenerateRemedies(ctx context.Context, condition string) (*RemedyBundle, error)
	AnalyzeIngredients(ctx context.Context, img Image) (*IngredientReport, error)
	CheckSuitability(ctx context.Context, condition string, img Image) (*SuitabilityReport, error)
	FollowUp(ctx context.Context, req FollowUpRequest) (string, error)
}
