package flow

import (
	"errors"

	"github.com/omriShneor/alfred_scheduler/internal/agent"
	"github.com/omriShneor/alfred_scheduler/internal/agent/extractor"
	"github.com/omriShneor/alfred_scheduler/internal/agent/router"
	"github.com/omriShneor/alfred_scheduler/internal/gcal"
	"github.com/omriShneor/alfred_scheduler/internal/scheduler"
	"github.com/omriShneor/alfred_scheduler/internal/timeutil"
)

// Stage failures recorded on RequestState.Err. The stage's own error is
// wrapped alongside.
var (
	ErrClassification = errors.New("classification failed")
	ErrExtraction     = errors.New("extraction failed")
	ErrGeneralAnswer  = errors.New("general answer failed")
	ErrPanic          = errors.New("panic while handling request")
)

// ErrorKind maps err to the short label stored on traces. It returns ""
// for nil and for a conflict, which is not a failure.
func ErrorKind(err error) string {
	switch {
	case err == nil, errors.Is(err, scheduler.ErrConflict):
		return ""
	case errors.Is(err, ErrPanic):
		return "panic"
	case errors.Is(err, agent.ErrNotConfigured):
		return "llm_not_configured"
	case errors.Is(err, agent.ErrInsufficientCredits):
		return "llm_insufficient_credits"
	case errors.Is(err, router.ErrClassificationUnparsable):
		return "classification_unparsable"
	case errors.Is(err, extractor.ErrExtractionUnparsable):
		return "extraction_unparsable"
	case errors.Is(err, gcal.ErrServiceUnavailable):
		return "service_unavailable"
	case timeutil.IsInvalidDateTime(err):
		return "invalid_datetime"
	case errors.Is(err, scheduler.ErrCalendarQuery):
		return "calendar_query"
	case errors.Is(err, scheduler.ErrCalendarAPI):
		return "calendar_api"
	case errors.Is(err, scheduler.ErrCalendarUnexpected):
		return "calendar_unexpected"
	case errors.Is(err, ErrClassification):
		return "classification_error"
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	case errors.Is(err, ErrGeneralAnswer):
		return "general_answer_error"
	}
	return "unknown"
}
