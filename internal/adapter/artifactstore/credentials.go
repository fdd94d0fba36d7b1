package artifactstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

// Credential sources, reported for logging.
const (
	SourceEnv  = "env"
	SourceFile = "file"
)

// Credentials is a validated service-account key.
type Credentials struct {
	JSON        []byte
	Source      string
	ClientEmail string
	ProjectID   string
}

type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// ResolveCredentials prefers the inline JSON and falls back to the key file. An unparsable
// inline value is logged and skipped. Neither source present yields domain.ErrNoCredentials.
func ResolveCredentials(inline, path string) (Credentials, error) {
	if inline != "" {
		creds, err := parseServiceAccount([]byte(inline), SourceEnv)
		if err == nil {
			return creds, nil
		}
		slog.Error("Failed to parse FIREBASE_CREDENTIALS, trying credentials file", "path", path, "error", err)
	}

	if path == "" {
		return Credentials{}, domain.ErrNoCredentials
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, fmt.Errorf("%w: set FIREBASE_CREDENTIALS or provide %s", domain.ErrNoCredentials, path)
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}
	return parseServiceAccount(data, SourceFile)
}

func parseServiceAccount(data []byte, source string) (Credentials, error) {
	var sa serviceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return Credentials{}, fmt.Errorf("parse service account (%s): %w", source, err)
	}
	if sa.Type != "service_account" {
		return Credentials{}, fmt.Errorf("service account (%s): type is %q, want \"service_account\"", source, sa.Type)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return Credentials{}, fmt.Errorf("service account (%s): client_email and private_key are required", source)
	}
	return Credentials{
		JSON:        data,
		Source:      source,
		ClientEmail: sa.ClientEmail,
		ProjectID:   sa.ProjectID,
	}, nil
}
