package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rental-chat/models"
)

// Runtime holds process-level settings read from the environment once at
// startup. Immutable afterwards.
type Runtime struct {
	DatabaseURL          string
	DialogflowProjectID  string
	DialogflowClientMail string
	DialogflowPrivateKey string
	LanguageCode         string
	Port                 string
	AssistantFile        string
}

// LoadRuntime reads the runtime configuration from the environment and
// fails fast on missing credentials.
func LoadRuntime() (Runtime, error) {
	cfg := Runtime{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DialogflowProjectID:  os.Getenv("DIALOGFLOW_PROJECT_ID"),
		DialogflowClientMail: os.Getenv("DIALOGFLOW_CLIENT_EMAIL"),
		DialogflowPrivateKey: os.Getenv("DIALOGFLOW_PRIVATE_KEY"),
		LanguageCode:         getenvDefault("DIALOGFLOW_LANGUAGE_CODE", "en-US"),
		Port:                 getenvDefault("PORT", "8080"),
		AssistantFile:        getenvDefault("ASSISTANT_FILE", "./assistant.yaml"),
	}
	if cfg.DatabaseURL == "" {
		return Runtime{}, errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.DialogflowProjectID == "" || cfg.DialogflowClientMail == "" || cfg.DialogflowPrivateKey == "" {
		return Runtime{}, errors.New("DIALOGFLOW_PROJECT_ID, DIALOGFLOW_CLIENT_EMAIL and DIALOGFLOW_PRIVATE_KEY must be set")
	}
	return cfg, nil
}

// Assistant is the product profile of the bot: personas, greeting copy,
// the quick-reply menu and the vehicle catalog. Loaded from YAML once at
// startup.
type Assistant struct {
	Bot          models.Author       `yaml:"bot"`
	User         models.Author       `yaml:"user"`
	Greeting     string              `yaml:"greeting"`
	Fallback     string              `yaml:"fallback"`
	ReadyMarker  string              `yaml:"ready_marker"`
	QuickReplies []models.QuickReply `yaml:"quick_replies"`
	Catalog      []models.OptionCard `yaml:"catalog"`
}

// LoadAssistant reads an assistant profile from a YAML file.
func LoadAssistant(path string) (*Assistant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("assistant: read %s: %w", path, err)
	}
	return ParseAssistant(data)
}

// ParseAssistant unmarshals YAML bytes into a validated Assistant.
func ParseAssistant(data []byte) (*Assistant, error) {
	var a Assistant
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("assistant: parse: %w", err)
	}
	a.applyDefaults()
	if err := a.validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *Assistant) applyDefaults() {
	if a.Bot.ID == "" {
		a.Bot.ID = "bot"
	}
	if a.User.ID == "" {
		a.User.ID = "user"
	}
	if a.Fallback == "" {
		a.Fallback = "Sorry, I didn't understand that."
	}
	if a.ReadyMarker == "" {
		a.ReadyMarker = "vehicle will be ready"
	}
	for i := range a.Catalog {
		if a.Catalog[i].SelectValue == "" {
			a.Catalog[i].SelectValue = a.Catalog[i].DisplayName
		}
	}
}

func (a *Assistant) validate() error {
	if strings.TrimSpace(a.Bot.DisplayName) == "" {
		return errors.New("assistant: bot.display_name is required")
	}
	if strings.TrimSpace(a.Greeting) == "" {
		return errors.New("assistant: greeting is required")
	}
	if len(a.QuickReplies) == 0 {
		return errors.New("assistant: at least one quick reply is required")
	}
	if len(a.Catalog) == 0 {
		return errors.New("assistant: vehicle catalog must not be empty")
	}
	for i, c := range a.Catalog {
		if c.DisplayName == "" {
			return fmt.Errorf("assistant: catalog[%d]: display_name is required", i)
		}
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
