// Package extractor turns an appointment request into a typed record.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/omriShneor/alfred_scheduler/internal/agent"
	"github.com/omriShneor/alfred_scheduler/internal/agent/langpolicy"
	"github.com/omriShneor/alfred_scheduler/internal/timeutil"
)

// Appointment is the typed output of the extraction stage. Date is
// YYYY-MM-DD and Time is HH:MM as produced by the model; they are validated
// when the event is built. A zero DurationMinutes means "use the default".
type Appointment struct {
	Title           string `json:"title"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// ErrExtractionUnparsable is returned when the output holds no usable record.
var ErrExtractionUnparsable = errors.New("extraction output unparsable")

type extractionPayload struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration any    `json:"duration_minutes"`
	Legacy   any    `json:"duration"`
	Notes    string `json:"notes"`
}

// ParseExtraction reads the first JSON object in raw. The object must carry a
// date and a time; the duration may be a number or a numeric string.
func ParseExtraction(raw string) (*Appointment, error) {
	var payload extractionPayload
	if err := agent.DecodeJSONObject(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionUnparsable, err)
	}

	appt := &Appointment{
		Title: strings.TrimSpace(payload.Title),
		Date:  strings.TrimSpace(payload.Date),
		Time:  strings.TrimSpace(payload.Time),
		Notes: strings.TrimSpace(payload.Notes),
	}
	if appt.Date == "" || appt.Time == "" {
		return nil, fmt.Errorf("%w: missing date or time", ErrExtractionUnparsable)
	}

	duration := payload.Duration
	if duration == nil {
		duration = payload.Legacy
	}
	minutes, err := parseMinutes(duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionUnparsable, err)
	}
	appt.DurationMinutes = minutes

	return appt, nil
}

func parseMinutes(v any) (int, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if d < 0 || d != math.Trunc(d) {
			return 0, fmt.Errorf("invalid duration %v", d)
		}
		return int(d), nil
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", d)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("invalid duration type %T", v)
	}
}

const toolName = "record_appointment"

var recordTool = agent.Tool{
	Name:        toolName,
	Description: "Record the appointment details found in the message.",
	InputSchema: agent.BuildJSONSchema("object", map[string]any{
		"title":            agent.PropertyString("Short appointment title"),
		"date":             agent.PropertyString("Appointment date, YYYY-MM-DD"),
		"time":             agent.PropertyString("Start time, 24-hour HH:MM"),
		"duration_minutes": agent.PropertyInt("Length in minutes, 60 when not stated"),
		"notes":            agent.PropertyString("Other details, may be empty"),
	}, []string{"title", "date", "time"}),
}

// Extractor is the LLM-backed extraction stage.
type Extractor struct {
	*agent.Agent
	logger *slog.Logger
}

// Config configures the extractor
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	APIOptions  []agent.APIOption
	Logger      *slog.Logger
}

func NewExtractor(cfg Config) *Extractor {
	base := agent.NewAgent(agent.AgentConfig{
		Name:         "extractor",
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		SystemPrompt: SystemPrompt,
		ToolChoice:   toolName,
		MaxTokens:    512,
		APIOptions:   cfg.APIOptions,
	})
	base.MustRegisterTool(recordTool, agent.RecordInput)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{Agent: base, logger: logger.With("stage", "extraction")}
}

// Extract reads appointment details from message, resolving relative dates
// against referenceDate. The title and notes are kept in the message's
// language, with one corrective retry when the model answers in another script.
func (e *Extractor) Extract(ctx context.Context, message string, referenceDate time.Time) (*Appointment, error) {
	if !e.IsConfigured() {
		return nil, agent.ErrNotConfigured
	}

	target := langpolicy.DetectTargetLanguage(message)
	instruction := langpolicy.BuildLanguageInstruction(target)
	if target.Reliable {
		e.logger.Debug("language policy", "target", target.Language.String(),
			"script", target.Script, "confidence", target.Confidence)
	}

	appt, err := e.run(ctx, buildUserPrompt(message, referenceDate, instruction, ""))
	if err != nil {
		return nil, err
	}

	validation := validateLanguage(target, appt)
	if validation.IsMatch() {
		return appt, nil
	}

	e.logger.Info("language policy mismatch, retrying", "mismatches", formatMismatches(validation))
	correction := langpolicy.BuildCorrectiveRetryInstruction(target, validation)
	retried, err := e.run(ctx, buildUserPrompt(message, referenceDate, instruction, correction))
	if err != nil {
		e.logger.Warn("language policy retry failed, keeping first result", "error", err)
		return appt, nil
	}
	if !validateLanguage(target, retried).IsMatch() {
		e.logger.Warn("language policy retry still mismatched")
	}
	return retried, nil
}

func (e *Extractor) run(ctx context.Context, prompt string) (*Appointment, error) {
	call, output, err := e.ExecuteSingleTool(ctx, prompt)
	raw := ""
	switch {
	case call != nil:
		raw = agent.InputJSON(call.Input)
	case output != nil:
		raw = output.FinalText
	case err != nil:
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}
	return ParseExtraction(raw)
}

func buildUserPrompt(message string, referenceDate time.Time, languageInstruction, retryInstruction string) string {
	var extra strings.Builder
	if languageInstruction != "" {
		extra.WriteString("\n## Output Language Requirement\n\n")
		extra.WriteString(languageInstruction + "\n")
	}
	if retryInstruction != "" {
		extra.WriteString("\n## Correction Required\n\n")
		extra.WriteString(retryInstruction + "\n")
	}

	return fmt.Sprintf(UserPromptTemplate,
		referenceDate.Format(timeutil.DateLayout),
		referenceDate.Weekday(),
		message,
		extra.String(),
	)
}

func validateLanguage(target langpolicy.TargetLanguage, appt *Appointment) langpolicy.ValidationResult {
	return langpolicy.ValidateFieldsLanguage(target, map[string]string{
		"title": appt.Title,
		"notes": appt.Notes,
	})
}

func formatMismatches(validation langpolicy.ValidationResult) string {
	parts := make([]string, 0, len(validation.Mismatches))
	for _, mismatch := range validation.Mismatches {
		parts = append(parts, fmt.Sprintf("%s(%s)", mismatch.Field, mismatch.DetectedScript))
	}
	return strings.Join(parts, ", ")
}
