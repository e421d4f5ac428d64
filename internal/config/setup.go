package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"golang.org/x/term"
)

// Endpoints used to validate credentials entered in the setup wizard.
var (
	telegramAPIURL = "https://api.telegram.org"
	geminiAPIURL   = "https://generativelanguage.googleapis.com"
	openAIAPIURL   = "https://api.openai.com"
)

// envOrder is the order keys are written to the config file.
var envOrder = []string{
	"BOT_TOKEN",
	"INFERENCE_PROVIDER",
	"GEMINI_API_KEY",
	"OPENAI_API_KEY",
	"OWNER_USER_ID",
	"SKINWISE_DATA_KEY",
}

// ConfigFilePath returns the path of the user-level config file, creating its
// directory if needed.
func ConfigFilePath() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(configDir, EnvFileName), nil
}

// MissingRequired returns the names of required variables that are unset.
func MissingRequired(getenv func(string) string) []string {
	var missing []string
	if getenv("BOT_TOKEN") == "" && getenv("HTTP_ADDR") == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if getenv("SKINWISE_DATA_KEY") == "" {
		missing = append(missing, "SKINWISE_DATA_KEY")
	}
	switch getenv("INFERENCE_PROVIDER") {
	case ProviderOpenAI:
		if getenv("OPENAI_API_KEY") == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		if getenv("GEMINI_API_KEY") == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	}
	return missing
}

// IsInteractiveTerminal reports whether both stdin and stdout are TTYs.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunSetupWizard collects the required configuration interactively, saves it
// to the config file and exports it to the current process. It returns false
// if the user aborted or the file could not be written.
func RunSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("🧴 Skinwise Bot - First-time Setup"))
	fmt.Println()

	client := resty.New().SetTimeout(10 * time.Second)
	var botToken, provider, apiKey, ownerID string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token").
				Description("Message @BotFather on Telegram → /newbot → copy token").
				Value(&botToken).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("token is required")
					}
					return validateTelegramToken(client, s)
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Inference provider").
				Options(
					huh.NewOption("Google Gemini", ProviderGemini),
					huh.NewOption("OpenAI", ProviderOpenAI),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API Key").
				DescriptionFunc(func() string {
					if provider == ProviderOpenAI {
						return "Get yours at https://platform.openai.com/api-keys"
					}
					return "Get yours at https://aistudio.google.com/apikey"
				}, &provider).
				Value(&apiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					return validateAPIKey(client, provider, s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Your Telegram User ID").
				Description("Message @userinfobot to get your ID. You get unlimited analyses and /admin.").
				Value(&ownerID).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					if _, err := strconv.ParseInt(s, 10, 64); err != nil {
						return errors.New("must be a number")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{
		"BOT_TOKEN":          botToken,
		"INFERENCE_PROVIDER": provider,
		"SKINWISE_DATA_KEY":  generateDataKey(),
	}
	if provider == ProviderOpenAI {
		values["OPENAI_API_KEY"] = apiKey
	} else {
		values["GEMINI_API_KEY"] = apiKey
	}
	if ownerID != "" {
		values["OWNER_USER_ID"] = "tg:" + ownerID
	}

	configPath, err := ConfigFilePath()
	if err == nil {
		err = WriteEnvFile(configPath, values)
	}
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		WaitOnWindows()
		return false
	}

	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)
	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	fmt.Println("Starting bot...")
	fmt.Println()

	return true
}

func generateDataKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("skinwise-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

// validateTelegramToken checks a bot token with the getMe API.
func validateTelegramToken(client *resty.Client, token string) error {
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description,omitempty"`
	}
	_, err := client.R().
		SetResult(&result).
		SetError(&result).
		Get(fmt.Sprintf("%s/bot%s/getMe", telegramAPIURL, token))
	if err != nil {
		return errors.New("connection failed - check your internet")
	}
	if !result.OK {
		if result.Description != "" {
			return errors.New(result.Description)
		}
		return errors.New("token rejected by Telegram")
	}
	return nil
}

// validateAPIKey lists the provider's models, which is cheap and requires a
// valid key.
func validateAPIKey(client *resty.Client, provider, key string) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	req := client.R().SetError(&apiErr)
	var url string
	if provider == ProviderOpenAI {
		req.SetAuthToken(key)
		url = openAIAPIURL + "/v1/models"
	} else {
		req.SetQueryParam("key", key)
		url = geminiAPIURL + "/v1beta/models"
	}

	resp, err := req.Get(url)
	if err != nil {
		return errors.New("connection failed - check your internet")
	}
	switch resp.StatusCode() {
	case 200:
		return nil
	case 400, 401, 403:
		if apiErr.Error.Message != "" {
			return errors.New(apiErr.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", resp.StatusCode())
	default:
		return fmt.Errorf("unexpected response (HTTP %d)", resp.StatusCode())
	}
}

// WriteEnvFile writes values to path with owner-only permissions, quoting
// each value.
func WriteEnvFile(path string, values map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	for _, key := range envOrder {
		val, ok := values[key]
		if !ok || val == "" {
			continue
		}
		if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	return nil
}

// WaitOnWindows pauses so users can read errors before the console window
// closes.
func WaitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}
