package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/raine/telegram-skinwise-bot/internal/analysis"
	"github.com/raine/telegram-skinwise-bot/internal/config"
	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/raine/telegram-skinwise-bot/internal/imaging"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
)

const pocUser = "poc:local"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path> [gemini|openai|both]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required for Gemini\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY - Required for OpenAI\n")
		os.Exit(1)
	}
	config.LoadEnvFile()

	imagePath := os.Args[1]
	provider := "both"
	if len(os.Args) >= 3 {
		provider = os.Args[2]
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	img, err := analysis.PrepareImage(imageData, imaging.DefaultMaxBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid image: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch provider {
	case config.ProviderGemini:
		runGemini(ctx, img)
	case config.ProviderOpenAI:
		runOpenAI(ctx, img)
	case "both":
		runGemini(ctx, img)
		fmt.Println("\n" + strings.Repeat("-", 50) + "\n")
		runOpenAI(ctx, img)
	default:
		fmt.Fprintf(os.Stderr, "Unknown provider: %s (use gemini, openai, or both)\n", provider)
		os.Exit(1)
	}
}

func runGemini(ctx context.Context, img llm.Image) {
	fmt.Println("=== GEMINI ===")

	gw, err := llm.NewGeminiGateway(ctx, llm.GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	})
	if err != nil {
		fmt.Printf("Error creating Gemini gateway: %v\n", err)
		return
	}
	run(ctx, gw, img)
}

func runOpenAI(ctx context.Context, img llm.Image) {
	fmt.Println("=== OPENAI ===")

	gw, err := llm.NewOpenAIGateway(llm.OpenAIConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	})
	if err != nil {
		fmt.Printf("Error creating OpenAI gateway: %v\n", err)
		return
	}
	run(ctx, gw, img)
}

// run drives the full pipeline against a throwaway owner profile, which is
// never debited.
func run(ctx context.Context, gw llm.Gateway, img llm.Image) {
	guard := entitlement.NewGuard(entitlement.NewMemoryStore(), entitlement.DefaultTrials, pocUser)
	if _, err := guard.EnsureProfile(ctx, pocUser); err != nil {
		fmt.Printf("Error creating profile: %v\n", err)
		return
	}

	result, err := analysis.NewOrchestrator(gw, guard).Analyze(ctx, pocUser, img)
	if err != nil {
		fmt.Printf("Error analyzing image (%s): %v\n", analysis.KindOf(err), err)
		return
	}
	printResult(result)
}

func printResult(result *analysis.Result) {
	fmt.Printf("Condition:   %s\n", result.Condition)
	fmt.Printf("Severity:    %s\n", result.Severity)
	fmt.Println()
	out, _ := json.MarshalIndent(result.Remedies, "", "  ")
	fmt.Println(string(out))
}
