// ABOUTME: On-disk storage for the signed-in user's token
// ABOUTME: COVEN_TOKEN overrides the file at $XDG_CONFIG_HOME/coven/chat-token

package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TokenEnvVar overrides the stored token when set.
const TokenEnvVar = "COVEN_TOKEN"

// TokenFile reads and writes the token of the signed-in user.
type TokenFile struct {
	Path string
}

// DefaultTokenFile returns the token file under the user's config directory.
func DefaultTokenFile() (*TokenFile, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("finding home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return &TokenFile{Path: filepath.Join(configDir, "coven", "chat-token")}, nil
}

// Load returns the token from the environment or the file, or "" if neither has one.
func (f *TokenFile) Load() (string, error) {
	if token := os.Getenv(TokenEnvVar); token != "" {
		return token, nil
	}

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes token with owner-only permissions.
func (f *TokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// Clear removes the token file. A missing file is not an error.
func (f *TokenFile) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
