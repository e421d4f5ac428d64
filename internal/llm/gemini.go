package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.30 // $0.30 per 1M input tokens (text/image/video)
	geminiOutputPricePerMillion = 2.50 // $2.50 per 1M output tokens (including thinking)
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// GeminiGateway implements Gateway using Google's Gemini API with structured
// output (ResponseSchema) for every task except follow-up answers.
type GeminiGateway struct {
	client *genai.Client
	model  string
}

// NewGeminiGateway creates a Gemini-backed gateway. The client is created once
// and shared by all requests.
func NewGeminiGateway(ctx context.Context, cfg GeminiConfig) (*GeminiGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGateway{client: client, model: model}, nil
}

func imagePart(img Image) *genai.Part {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return genai.NewPartFromBytes(img.Data, mimeType)
}

var (
	stringSchema  = &genai.Schema{Type: genai.TypeString}
	booleanSchema = &genai.Schema{Type: genai.TypeBoolean}
	itemSchema    = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       stringSchema,
			"description": stringSchema,
		},
		Required:         []string{"title", "description"},
		PropertyOrdering: []string{"title", "description"},
	}
)

func objectSchema(props map[string]*genai.Schema, order ...string) *genai.Schema {
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         order,
		PropertyOrdering: order,
	}
}

func arrayOf(items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items}
}

func classificationSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{"condition": stringSchema}, "condition")
}

func severitySchema() *genai.Schema {
	enum := make([]string, 0, len(Severities))
	for _, s := range Severities {
		enum = append(enum, string(s))
	}
	return objectSchema(map[string]*genai.Schema{
		"severity": {Type: genai.TypeString, Format: "enum", Enum: enum},
	}, "severity")
}

func remediesSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"remedies": arrayOf(itemSchema),
		"routine": objectSchema(map[string]*genai.Schema{
			"am": arrayOf(stringSchema),
			"pm": arrayOf(stringSchema),
		}, "am", "pm"),
		"lifestyle": arrayOf(itemSchema),
	}, "remedies", "routine", "lifestyle")
}

func ingredientsSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"ingredients": arrayOf(objectSchema(map[string]*genai.Schema{
			"name":         stringSchema,
			"description":  stringSchema,
			"isBeneficial": booleanSchema,
			"isIrritant":   booleanSchema,
		}, "name", "description", "isBeneficial", "isIrritant")),
		"summary": stringSchema,
	}, "ingredients", "summary")
}

func suitabilitySchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"isGoodMatch": booleanSchema,
		"summary":     stringSchema,
		"ingredientAnalyses": arrayOf(objectSchema(map[string]*genai.Schema{
			"name":      stringSchema,
			"isHelpful": booleanSchema,
			"isHarmful": booleanSchema,
			"reason":    stringSchema,
		}, "name", "isHelpful", "isHarmful", "reason")),
	}, "isGoodMatch", "summary", "ingredientAnalyses")
}

// generate executes one Gemini call and returns the response text.
func (g *GeminiGateway) generate(ctx context.Context, op string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini %s failed: %w: %w", op, ErrTransport, err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini %s: %w: empty response", op, ErrInvalidResponse)
	}

	if result.UsageMetadata != nil {
		usage := Usage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int64(result.UsageMetadata.TotalTokenCount),
		}
		usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
		log.Info().
			Str("model", g.model).
			Str("op", op).
			Int64("inputTokens", usage.InputTokens).
			Int64("outputTokens", usage.OutputTokens).
			Float64("costUSD", usage.CostUSD).
			Msg("llm call")
	}

	return result.Text(), nil
}

func (g *GeminiGateway) generateStructured(ctx context.Context, op string, schema *genai.Schema, parts ...*genai.Part) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return g.generate(ctx, op, contents, config)
}

// Classify returns the condition label for a skin photo.
func (g *GeminiGateway) Classify(ctx context.Context, img Image) (*Classification, error) {
	text, err := g.generateStructured(ctx, "classify", classificationSchema(),
		genai.NewPartFromText(classifyPrompt), imagePart(img))
	if err != nil {
		return nil, err
	}
	return decodeClassification(text)
}

// AssessSeverity grades the condition visible in img.
func (g *GeminiGateway) AssessSeverity(ctx context.Context, img Image, condition string) (Severity, error) {
	text, err := g.generateStructured(ctx, "severity", severitySchema(),
		genai.NewPartFromText(fmt.Sprintf(severityPrompt, condition)), imagePart(img))
	if err != nil {
		return "", err
	}
	return decodeSeverity(text)
}

// GenerateRemedies suggests remedies, a routine and lifestyle tips for condition.
func (g *GeminiGateway) GenerateRemedies(ctx context.Context, condition string) (*RemedyBundle, error) {
	text, err := g.generateStructured(ctx, "remedies", remediesSchema(),
		genai.NewPartFromText(fmt.Sprintf(remediesPrompt, condition)))
	if err != nil {
		return nil, err
	}
	return decodeRemedies(text)
}

// AnalyzeIngredients reads a product ingredient label.
func (g *GeminiGateway) AnalyzeIngredients(ctx context.Context, img Image) (*IngredientReport, error) {
	text, err := g.generateStructured(ctx, "ingredients", ingredientsSchema(),
		genai.NewPartFromText(ingredientsPrompt), imagePart(img))
	if err != nil {
		return nil, err
	}
	return decodeIngredients(text)
}

// CheckSuitability judges a product label against a diagnosed condition.
func (g *GeminiGateway) CheckSuitability(ctx context.Context, condition string, img Image) (*SuitabilityReport, error) {
	text, err := g.generateStructured(ctx, "suitability", suitabilitySchema(),
		genai.NewPartFromText(fmt.Sprintf(suitabilityPrompt, condition)), imagePart(img))
	if err != nil {
		return nil, err
	}
	return decodeSuitability(text)
}

// FollowUp answers a question about a diagnosis. The diagnosis context is
// sent as part of the system instruction and prior turns as chat history.
func (g *GeminiGateway) FollowUp(ctx context.Context, req FollowUpRequest) (string, error) {
	system := followUpSystemPrompt + "\n\n" + fmt.Sprintf(followUpContextPrompt, req.DiagnosisContext)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Question, genai.RoleUser))

	text, err := g.generate(ctx, "followup", contents, config)
	if err != nil {
		return "", err
	}
	return decodeFollowUp(text)
}

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
