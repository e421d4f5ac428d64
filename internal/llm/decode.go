package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Wire shapes of the structured responses. Pointer fields distinguish a
// missing key from a zero value so required fields can be enforced.

type classificationResponse struct {
	Condition *string `json:"condition"`
}

type severityResponse struct {
	Severity *string `json:"severity" enum:"Mild,Moderate,Severe"`
}

type routineResponse struct {
	AM *[]string `json:"am"`
	PM *[]string `json:"pm"`
}

type remediesResponse struct {
	Remedies  *[]Item          `json:"remedies"`
	Routine   *routineResponse `json:"routine"`
	Lifestyle *[]Item          `json:"lifestyle"`
}

type ingredientResponse struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	IsBeneficial *bool  `json:"isBeneficial"`
	IsIrritant   *bool  `json:"isIrritant"`
}

type ingredientsResponse struct {
	Ingredients *[]ingredientResponse `json:"ingredients"`
	Summary     *string               `json:"summary"`
}

type ingredientAnalysisResponse struct {
	Name      string `json:"name"`
	IsHelpful *bool  `json:"isHelpful"`
	IsHarmful *bool  `json:"isHarmful"`
	Reason    string `json:"reason"`
}

type suitabilityResponse struct {
	IsGoodMatch        *bool                         `json:"isGoodMatch"`
	Summary            *string                       `json:"summary"`
	IngredientAnalyses *[]ingredientAnalysisResponse `json:"ingredientAnalyses"`
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found in response: %s", ErrInvalidResponse, text)
	}
	return text[start : end+1], nil
}

func unmarshalResponse(text string, v any) error {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("%w: failed to parse json: %v", ErrInvalidResponse, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidResponse}, args...)...)
}

func decodeClassification(text string) (*Classification, error) {
	var resp classificationResponse
	if err := unmarshalResponse(text, &resp); err != nil {
		return nil, err
	}
	if resp.Condition == nil || strings.TrimSpace(*resp.Condition) == "" {
		return nil, invalid("missing condition label")
	}
	return &Classification{Label: strings.TrimSpace(*resp.Condition)}, nil
}

func decodeSeverity(text string) (Severity, error) {
	var resp severityResponse
	if err := unmarshalResponse(text, &resp); err != nil {
		return "", err
	}
	if resp.Severity == nil {
		return "", invalid("missing severity")
	}
	return ParseSeverity(*resp.Severity)
}

func decodeRemedies(text string) (*RemedyBundle, error) {
	var resp remediesResponse
	if err := unmarshalResponse(text, &resp); err != nil {
		return nil, err
	}
	if resp.Remedies == nil || len(*resp.Remedies) == 0 {
		return nil, invalid("missing remedies")
	}
	if resp.Routine == nil || resp.Routine.AM == nil || resp.Routine.PM == nil {
		return nil, invalid("routine must contain am and pm")
	}
	if resp.Lifestyle == nil {
		return nil, invalid("missing lifestyle tips")
	}
	for i, r := range *resp.Remedies {
		if strings.TrimSpace(r.Title) == "" {
			return nil, invalid("remedy %d has no title", i)
		}
	}
	return &RemedyBundle{
		Remedies:  *resp.Remedies,
		Routine:   Routine{AM: *resp.Routine.AM, PM: *resp.Routine.PM},
		Lifestyle: *resp.Lifestyle,
	}, nil
}

func decodeIngredients(text string) (*IngredientReport, error) {
	var resp ingredientsResponse
	if err := unmarshalResponse(text, &resp); err != nil {
		return nil, err
	}
	if resp.Ingredients == nil || len(*resp.Ingredients) == 0 {
		return nil, invalid("no ingredients read")
	}
	if resp.Summary == nil || strings.TrimSpace(*resp.Summary) == "" {
		return nil, invalid("missing summary")
	}
	report := &IngredientReport{Summary: strings.TrimSpace(*resp.Summary)}
	for _, ing := range *resp.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			continue
		}
		if ing.IsBeneficial == nil || ing.IsIrritant == nil {
			return nil, invalid("ingredient %q missing flags", ing.Name)
		}
		report.Ingredients = append(report.Ingredients, Ingredient{
			Name:             strings.TrimSpace(ing.Name),
			ShortDescription: strings.TrimSpace(ing.Description),
			IsBeneficial:     *ing.IsBeneficial,
			IsIrritant:       *ing.IsIrritant,
		})
	}
	if len(report.Ingredients) == 0 {
		return nil, invalid("no named ingredients")
	}
	return report, nil
}

func decodeSuitability(text string) (*SuitabilityReport, error) {
	var resp suitabilityResponse
	if err := unmarshalResponse(text, &resp); err != nil {
		return nil, err
	}
	if resp.IsGoodMatch == nil {
		return nil, invalid("missing isGoodMatch")
	}
	if resp.Summary == nil || strings.TrimSpace(*resp.Summary) == "" {
		return nil, invalid("missing summary")
	}
	report := &SuitabilityReport{
		IsGoodMatch: *resp.IsGoodMatch,
		Summary:     strings.TrimSpace(*resp.Summary),
	}
	if resp.IngredientAnalyses != nil {
		for _, a := range *resp.IngredientAnalyses {
			if strings.TrimSpace(a.Name) == "" {
				continue
			}
			report.IngredientAnalyses = append(report.IngredientAnalyses, IngredientAnalysis{
				Name:      strings.TrimSpace(a.Name),
				IsHelpful: a.IsHelpful != nil && *a.IsHelpful,
				IsHarmful: a.IsHarmful != nil && *a.IsHarmful,
				Reason:    strings.TrimSpace(a.Reason),
			})
		}
	}
	return report, nil
}

func decodeFollowUp(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalid("empty follow-up response")
	}
	return text, nil
}
