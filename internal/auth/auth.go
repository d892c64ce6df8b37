// Package auth resolves the opaque bearer token the pipeline API expects.
// The core treats the token as an inert string; acquiring and refreshing
// it is the job of an external collaborator.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".temple-recon"
	credentialFile = "token"
)

// GetToken retrieves the pipeline API token from available sources.
// Priority order:
//  1. RECON_API_TOKEN environment variable
//  2. Plain-text file at ~/.temple-recon/token (owner-only permissions)
func GetToken() (string, error) {
	if token := os.Getenv("RECON_API_TOKEN"); token != "" {
		log.Debug().Msg("Using API token from environment variable")
		return token, nil
	}

	token, err := getFromFile()
	if err == nil && token != "" {
		log.Debug().Msg("Using API token from credentials file")
		return token, nil
	}

	log.Error().Err(err).Msg("Failed to retrieve API token")
	return "", fmt.Errorf("API token not found. Set RECON_API_TOKEN or write it to ~/%s/%s", credentialDir, credentialFile)
}

// getFromFile reads the token from the credentials file, refusing files
// readable by group or others.
func getFromFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	credPath := filepath.Join(home, credentialDir, credentialFile)

	fi, err := os.Stat(credPath)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("credentials file not found at %s", credPath)
	}
	if err != nil {
		return "", fmt.Errorf("stat credentials file: %w", err)
	}

	if mode := fi.Mode().Perm(); mode&0o077 != 0 {
		log.Warn().
			Str("file", credPath).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Credentials file has insecure permissions (should be 0600); refusing")
		return "", fmt.Errorf("credentials file %s is not owner-only", credPath)
	}

	data, err := os.ReadFile(credPath)
	if err != nil {
		return "", fmt.Errorf("read credentials file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("credentials file %s is empty", credPath)
	}
	return token, nil
}
