package flow

import (
	"fmt"
	"time"

	"github.com/omriShneor/alfred_scheduler/internal/agent/extractor"
	"github.com/omriShneor/alfred_scheduler/internal/agent/router"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
)

// State is a node of the request state machine.
type State int

const (
	StateRouting State = iota
	StateAppointmentExtracting
	StateAppointmentScheduling
	StateGeneralAnswering
	StateUnrelated
	StateResponding
	StateTerminal
)

var stateNames = map[State]string{
	StateRouting:               "Routing",
	StateAppointmentExtracting: "AppointmentExtracting",
	StateAppointmentScheduling: "AppointmentScheduling",
	StateGeneralAnswering:      "GeneralAnswering",
	StateUnrelated:             "Unrelated",
	StateResponding:            "Responding",
	StateTerminal:              "Terminal",
}

var stageLabels = map[State]string{
	StateRouting:               "routing",
	StateAppointmentExtracting: "extracting",
	StateAppointmentScheduling: "scheduling",
	StateGeneralAnswering:      "general_answering",
	StateUnrelated:             "unrelated",
	StateResponding:            "responding",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome labels stored on traces.
const (
	OutcomeAnswered           = "answered"
	OutcomeGeneralUnavailable = "general_unavailable"
	OutcomeUnrelated          = "unrelated"
	OutcomeExtractionFailed   = "extraction_failed"
	OutcomeError              = "error"
)

// RequestState is the per-request record threaded through the machine.
// It is created fresh for every message and never shared.
type RequestState struct {
	RequestID string
	Message   string
	SenderID  string

	Category    router.Category
	Language    i18n.Language
	Appointment *extractor.Appointment

	Response     string
	EventCreated bool
	EventID      string
	EventLink    string
	Outcome      string

	// Err is the recovered failure, if any. A conflict is reported here too
	// even though it is a normal outcome.
	Err error

	Path      []State
	StartedAt time.Time
	Duration  time.Duration
}

// PathNames returns Path as state names.
func (s *RequestState) PathNames() []string {
	names := make([]string, len(s.Path))
	for i, st := range s.Path {
		names[i] = st.String()
	}
	return names
}

// Visited reports whether the request passed through state.
func (s *RequestState) Visited(state State) bool {
	for _, st := range s.Path {
		if st == state {
			return true
		}
	}
	return false
}
