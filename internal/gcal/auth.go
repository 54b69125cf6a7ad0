package gcal

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// Scopes requested for the service account.
var Scopes = []string{
	calendar.CalendarScope,
}

// CredentialsConfig points at service-account credentials. Inline JSON
// (useful for container deployments) wins over the file path.
type CredentialsConfig struct {
	JSON string
	Path string
}

// TokenSource builds an OAuth2 token source from service-account credentials.
func TokenSource(ctx context.Context, cfg CredentialsConfig) (oauth2.TokenSource, error) {
	data, err := loadCredentialsJSON(cfg)
	if err != nil {
		return nil, err
	}

	jwtConfig, err := google.JWTConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	return jwtConfig.TokenSource(ctx), nil
}

func loadCredentialsJSON(cfg CredentialsConfig) ([]byte, error) {
	if cfg.JSON != "" {
		return []byte(cfg.JSON), nil
	}

	if cfg.Path != "" {
		data, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file %s: %w", cfg.Path, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("no credentials found - set GOOGLE_CALENDAR_CREDENTIALS or provide a credentials file")
}
