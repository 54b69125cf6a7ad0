package mocks

import (
	"context"
	"time"

	"github.com/omriShneor/alfred_scheduler/internal/agent/extractor"
	"github.com/omriShneor/alfred_scheduler/internal/agent/router"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
	"github.com/stretchr/testify/mock"
)

// MockClassifier is a mock implementation of the classification stage
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, message string) (router.Classification, error) {
	args := m.Called(ctx, message)
	return args.Get(0).(router.Classification), args.Error(1)
}

// MockExtractor is a mock implementation of the extraction stage
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, message string, referenceDate time.Time) (*extractor.Appointment, error) {
	args := m.Called(ctx, message, referenceDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extractor.Appointment), args.Error(1)
}

// MockAnswerer is a mock implementation of the general-answer stage
type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, message string, lang i18n.Language) (string, error) {
	args := m.Called(ctx, message, lang)
	return args.String(0), args.Error(1)
}
