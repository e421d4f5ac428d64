package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// gpt-4o-mini pricing (per million tokens)
const (
	openaiInputPricePerMillion  = 0.15
	openaiOutputPricePerMillion = 0.60
)

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type responseSchemas struct {
	classification *jsonschema.Definition
	severity       *jsonschema.Definition
	remedies       *jsonschema.Definition
	ingredients    *jsonschema.Definition
	suitability    *jsonschema.Definition
}

// OpenAIGateway implements Gateway using an OpenAI-compatible chat completions
// API with json_schema response formats.
type OpenAIGateway struct {
	client  *openai.Client
	model   string
	schemas responseSchemas
}

// NewOpenAIGateway creates an OpenAI-backed gateway.
func NewOpenAIGateway(cfg OpenAIConfig) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	var schemas responseSchemas
	for _, s := range []struct {
		dst **jsonschema.Definition
		v   any
	}{
		{&schemas.classification, classificationResponse{}},
		{&schemas.severity, severityResponse{}},
		{&schemas.remedies, remediesResponse{}},
		{&schemas.ingredients, ingredientsResponse{}},
		{&schemas.suitability, suitabilityResponse{}},
	} {
		def, err := jsonschema.GenerateSchemaForType(s.v)
		if err != nil {
			return nil, fmt.Errorf("failed to generate response schema for %T: %w", s.v, err)
		}
		*s.dst = def
	}

	return &OpenAIGateway{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		schemas: schemas,
	}, nil
}

func imageDataURL(img Image) string {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img.Data))
}

func userMessage(prompt string, img *Image) openai.ChatCompletionMessage {
	if img == nil {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}
	}
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    imageDataURL(*img),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		},
	}
}

// complete executes one chat completion and returns the response text.
func (o *OpenAIGateway) complete(ctx context.Context, op string, req openai.ChatCompletionRequest) (string, error) {
	req.Model = o.model
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai %s failed: %w: %w", op, ErrTransport, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai %s: %w: no choices", op, ErrInvalidResponse)
	}

	usage := Usage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
		TotalTokens:  int64(resp.Usage.TotalTokens),
	}
	usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, openaiInputPricePerMillion, openaiOutputPricePerMillion)
	log.Info().
		Str("model", o.model).
		Str("op", op).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("llm call")

	return resp.Choices[0].Message.Content, nil
}

// completeStructured runs a single-message request constrained to schema and
// verifies the answer against it before it reaches the typed decoders.
func (o *OpenAIGateway) completeStructured(ctx context.Context, op string, schema *jsonschema.Definition, prompt string, img *Image) (string, error) {
	text, err := o.complete(ctx, op, openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{userMessage(prompt, img)},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   op,
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", err
	}

	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return "", err
	}
	var probe any
	if err := schema.Unmarshal(jsonStr, &probe); err != nil {
		return "", fmt.Errorf("openai %s: %w: %v", op, ErrInvalidResponse, err)
	}
	return jsonStr, nil
}

// Classify returns the condition label for a skin photo.
func (o *OpenAIGateway) Classify(ctx context.Context, img Image) (*Classification, error) {
	text, err := o.completeStructured(ctx, "classify", o.schemas.classification, classifyPrompt, &img)
	if err != nil {
		return nil, err
	}
	return decodeClassification(text)
}

// AssessSeverity grades the condition visible in img.
func (o *OpenAIGateway) AssessSeverity(ctx context.Context, img Image, condition string) (Severity, error) {
	text, err := o.completeStructured(ctx, "severity", o.schemas.severity, fmt.Sprintf(severityPrompt, condition), &img)
	if err != nil {
		return "", err
	}
	return decodeSeverity(text)
}

// GenerateRemedies suggests remedies, a routine and lifestyle tips for condition.
func (o *OpenAIGateway) GenerateRemedies(ctx context.Context, condition string) (*RemedyBundle, error) {
	text, err := o.completeStructured(ctx, "remedies", o.schemas.remedies, fmt.Sprintf(remediesPrompt, condition), nil)
	if err != nil {
		return nil, err
	}
	return decodeRemedies(text)
}

// AnalyzeIngredients reads a product ingredient label.
func (o *OpenAIGateway) AnalyzeIngredients(ctx context.Context, img Image) (*IngredientReport, error) {
	text, err := o.completeStructured(ctx, "ingredients", o.schemas.ingredients, ingredientsPrompt, &img)
	if err != nil {
		return nil, err
	}
	return decodeIngredients(text)
}

// CheckSuitability judges a product label against a diagnosed condition.
func (o *OpenAIGateway) CheckSuitability(ctx context.Context, condition string, img Image) (*SuitabilityReport, error) {
	text, err := o.completeStructured(ctx, "suitability", o.schemas.suitability, fmt.Sprintf(suitabilityPrompt, condition), &img)
	if err != nil {
		return nil, err
	}
	return decodeSuitability(text)
}

// FollowUp answers a question about a diagnosis.
func (o *OpenAIGateway) FollowUp(ctx context.Context, req FollowUpRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: followUpSystemPrompt + "\n\n" + fmt.Sprintf(followUpContextPrompt, req.DiagnosisContext),
	})
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Question})

	text, err := o.complete(ctx, "followup", openai.ChatCompletionRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	return decodeFollowUp(text)
}
