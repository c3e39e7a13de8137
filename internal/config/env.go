package config

import (
	"fmt"
	"os"
)

// Env holds process-level settings: file locations and credentials.
// Scheduling behavior itself lives in the Blueprint, never here.
type Env struct {
	BlueprintPath string
	HistoryDBPath string

	// Exactly one of the two credential paths is required for live
	// calendar access. The token file is a cached OAuth user token;
	// the service account file is a Google service account key.
	GoogleTokenFile          string
	GoogleServiceAccountFile string
}

// NewFromEnv creates an Env from environment variables, applying
// defaults for optional paths.
func NewFromEnv() (*Env, error) {
	blueprintPath := os.Getenv("WEEK_PLANNER_BLUEPRINT")
	if blueprintPath == "" {
		blueprintPath = "schedule.yaml"
	}

	historyPath := os.Getenv("WEEK_PLANNER_HISTORY_DB")
	if historyPath == "" {
		historyPath = "data/history.db"
	}

	tokenFile := os.Getenv("GOOGLE_TOKEN_FILE")
	serviceAccountFile := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")
	if tokenFile == "" && serviceAccountFile == "" {
		tokenFile = "token.json"
	}

	return &Env{
		BlueprintPath:            blueprintPath,
		HistoryDBPath:            historyPath,
		GoogleTokenFile:          tokenFile,
		GoogleServiceAccountFile: serviceAccountFile,
	}, nil
}

// RequireCredentials verifies that a usable credential source exists on
// disk before any network client is constructed.
func (e *Env) RequireCredentials() error {
	path := e.GoogleTokenFile
	if e.GoogleServiceAccountFile != "" {
		path = e.GoogleServiceAccountFile
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no Google credentials at %s: %w", path, err)
	}
	return nil
}
