// Package gcp holds what the Pub/Sub and BigQuery clients share: credential
// selection and resource naming.
package gcp

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
)

var ErrProjectIDRequired = errors.New("gcp project id is required")

// ClientOptions picks inline JSON credentials over a credentials file. With
// neither set the SDK falls back to application default credentials.
func ClientOptions(cfg config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(cfg.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(cfg.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// ProjectID returns the trimmed project id or ErrProjectIDRequired.
func ProjectID(cfg config.GCPConfig) (string, error) {
	id := strings.TrimSpace(cfg.ProjectID)
	if id == "" {
		return "", ErrProjectIDRequired
	}
	return id, nil
}

// ResourceName expands a short id into projects/<project>/<kind>/<id>. A full
// resource name of the same kind is returned as is. The result is empty when
// the name is blank or no project is known.
func ResourceName(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", projectID, kind, name)
}
