// Package router classifies inbound messages into a scheduling category and
// a reply language.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/omriShneor/alfred_scheduler/internal/agent"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
)

// Category is the routing decision for a message.
type Category int

const (
	Unrelated Category = iota
	Appointment
	General
)

func (c Category) String() string {
	switch c {
	case Appointment:
		return "APPOINTMENT"
	case General:
		return "GENERAL"
	default:
		return "UNRELATED"
	}
}

// ParseCategory matches a category token exactly, ignoring case and
// surrounding whitespace. Anything else is not a category.
func ParseCategory(token string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "APPOINTMENT":
		return Appointment, true
	case "GENERAL":
		return General, true
	case "UNRELATED":
		return Unrelated, true
	}
	return Unrelated, false
}

// Classification is the typed output of the classification stage.
type Classification struct {
	Category Category
	Language i18n.Language
}

// Fallback is used whenever the classifier output cannot be used.
var Fallback = Classification{Category: Unrelated, Language: i18n.DefaultLanguage}

// ErrClassificationUnparsable is returned when the output holds no usable JSON.
var ErrClassificationUnparsable = errors.New("classification output unparsable")

type classificationPayload struct {
	Category string `json:"category"`
	Language string `json:"language"`
}

// ParseClassification reads the first JSON object in raw. An unknown or
// missing category is Unrelated and an unknown or missing language is the
// default language; only output without a decodable object is an error.
func ParseClassification(raw string) (Classification, error) {
	var payload classificationPayload
	if err := agent.DecodeJSONObject(raw, &payload); err != nil {
		return Fallback, fmt.Errorf("%w: %v", ErrClassificationUnparsable, err)
	}

	category, _ := ParseCategory(payload.Category)
	language, _ := i18n.ParseLanguage(payload.Language)
	return Classification{Category: category, Language: language}, nil
}

const toolName = "classify_message"

var classifyTool = agent.Tool{
	Name:        toolName,
	Description: "Record the routing category and the language of the incoming message.",
	InputSchema: agent.BuildJSONSchema("object", map[string]any{
		"category": agent.PropertyEnum("Routing category", []string{"APPOINTMENT", "GENERAL", "UNRELATED"}),
		"language": agent.PropertyEnum("Language the message is written in", []string{"english", "hebrew"}),
	}, []string{"category", "language"}),
}

// Classifier is the LLM-backed classification stage.
type Classifier struct {
	*agent.Agent
	logger *slog.Logger
}

// Config configures the classifier
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	APIOptions  []agent.APIOption
	Logger      *slog.Logger
}

func NewClassifier(cfg Config) *Classifier {
	base := agent.NewAgent(agent.AgentConfig{
		Name:         "router",
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		SystemPrompt: SystemPrompt,
		ToolChoice:   toolName,
		MaxTokens:    256,
		APIOptions:   cfg.APIOptions,
	})
	base.MustRegisterTool(classifyTool, agent.RecordInput)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{Agent: base, logger: logger.With("stage", "routing")}
}

// Classify runs the model on message. On error the returned classification is
// Fallback.
func (c *Classifier) Classify(ctx context.Context, message string) (Classification, error) {
	if !c.IsConfigured() {
		return Fallback, agent.ErrNotConfigured
	}

	call, output, err := c.ExecuteSingleTool(ctx, fmt.Sprintf(UserPromptTemplate, message))
	raw := ""
	switch {
	case call != nil:
		raw = agent.InputJSON(call.Input)
	case output != nil:
		// The model answered in text instead of calling the tool.
		raw = output.FinalText
	case err != nil:
		return Fallback, fmt.Errorf("classification call failed: %w", err)
	}

	result, err := ParseClassification(raw)
	if err != nil {
		c.logger.Warn("unparsable classification", "error", err)
		return Fallback, err
	}
	return result, nil
}
