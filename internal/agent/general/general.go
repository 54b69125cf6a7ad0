// Package general answers scheduling questions in the sender's language.
package general

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/omriShneor/alfred_scheduler/internal/agent"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
)

// SystemPrompt is the system prompt for the general-answer agent
const SystemPrompt = `You are a friendly WhatsApp assistant for an appointment scheduling service.

You answer general questions about scheduling: how to book an appointment,
what details to include (a date, a time, and optionally a subject and length),
how long appointments last by default (60 minutes), and that reminders are sent
30 minutes and one day before.

To book, the user simply sends a message such as "Schedule a meeting for
tomorrow at 3pm" or "קבע לי פגישה מחר בשעה 10".

Keep answers short (at most four sentences), plain text, suitable for WhatsApp.
Always answer in the language you are told to use.`

const userPromptTemplate = "Answer in %s.\n\nQuestion:\n%s"

// ErrEmptyAnswer is returned when the model produced no text.
var ErrEmptyAnswer = errors.New("general answer is empty")

// Answerer is the LLM-backed general-answer stage.
type Answerer struct {
	*agent.Agent
	logger *slog.Logger
}

// Config configures the answerer
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	APIOptions  []agent.APIOption
	Logger      *slog.Logger
}

func NewAnswerer(cfg Config) *Answerer {
	base := agent.NewAgent(agent.AgentConfig{
		Name:         "general",
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		SystemPrompt: SystemPrompt,
		MaxTokens:    512,
		APIOptions:   cfg.APIOptions,
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{Agent: base, logger: logger.With("stage", "general")}
}

// Answer returns the model's reply to message, verbatim, in lang.
func (a *Answerer) Answer(ctx context.Context, message string, lang i18n.Language) (string, error) {
	if !a.IsConfigured() {
		return "", agent.ErrNotConfigured
	}

	text, err := a.ExecuteText(ctx, SystemPrompt, fmt.Sprintf(userPromptTemplate, languageName(lang), message))
	if err != nil {
		return "", fmt.Errorf("general answer failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

func languageName(lang i18n.Language) string {
	if lang == i18n.Hebrew {
		return "Hebrew"
	}
	return "English"
}
