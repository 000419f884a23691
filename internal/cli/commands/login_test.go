package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/retinoscan/retinoscan/internal/cli/config"
)

// setupTestEnvironment creates a temporary directory with a test config
func setupTestEnvironment(t *testing.T, servers []config.Server) (string, func()) {
	t.Helper()

	// Create temp directory
	tempDir, err := os.MkdirTemp("", "retinoscan-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	// Create retinoscan.json
	cfg := config.Config{
		Servers: servers,
	}
	cfgData, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}

	cfgPath := filepath.Join(tempDir, config.ConfigFileName)
	if err := os.WriteFile(cfgPath, cfgData, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// Change to temp directory
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	// Return cleanup function
	cleanup := func() {
		os.Chdir(originalDir)
		os.RemoveAll(tempDir)
	}

	return tempDir, cleanup
}

func TestLoginCommand_Structure(t *testing.T) {
	cmd := NewLoginCmd()

	if cmd.Use != "login" {
		t.Errorf("expected Use to be 'login', got %s", cmd.Use)
	}

	if cmd.Flags().Lookup("email") == nil {
		t.Error("expected --email flag to exist")
	}

	if cmd.Flags().Lookup("password") == nil {
		t.Error("expected --password flag to exist")
	}
}

func TestLoginCommand_MissingEmail(t *testing.T) {
	servers := []config.Server{
		{Alias: "test-server", Host: "127.0.0.1"},
	}
	_, cleanup := setupTestEnvironment(t, servers)
	defer cleanup()

	// Clear environment variables
	os.Unsetenv("RETINOSCAN_EMAIL")
	os.Unsetenv("RETINOSCAN_PASSWORD")

	err := runLogin("", "password123")
	if err == nil {
		t.Error("expected error when email is missing, got nil")
	}

	expectedError := "email is required (use --email flag or RETINOSCAN_EMAIL env var)"
	if err.Error() != expectedError {
		t.Errorf("expected error '%s', got '%s'", expectedError, err.Error())
	}
}

func TestLoginCommand_NoConfigFile(t *testing.T) {
	// Create temp directory without retinoscan.json
	tempDir, err := os.MkdirTemp("", "retinoscan-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	originalDir, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(originalDir)

	err = runLogin("test@example.com", "password123")
	if err == nil {
		t.Error("expected error when config file is missing, got nil")
	}

	// Error message should guide user to run 'retinoscan init'
	if err != nil && len(err.Error()) >= 22 && err.Error()[:22] != "failed to load config:" {
		t.Errorf("expected error to start with 'failed to load config:', got '%s'", err.Error())
	}
}

func TestLoginCommand_EmptyServerHost(t *testing.T) {
	servers := []config.Server{
		{Alias: "test-server", Host: ""},
	}
	_, cleanup := setupTestEnvironment(t, servers)
	defer cleanup()

	err := runLogin("test@example.com", "password123")
	if err == nil {
		t.Error("expected error when server host is empty, got nil")
	}
}

func TestLoginCommand_EnvVarCredentials(t *testing.T) {
	servers := []config.Server{
		{Alias: "test-server", Host: "127.0.0.1"},
	}
	_, cleanup := setupTestEnvironment(t, servers)
	defer cleanup()

	os.Setenv("RETINOSCAN_EMAIL", "env@example.com")
	os.Setenv("RETINOSCAN_PASSWORD", "envpass")
	defer os.Unsetenv("RETINOSCAN_EMAIL")
	defer os.Unsetenv("RETINOSCAN_PASSWORD")

	// With credentials in the environment the call must get past validation;
	// it then fails at the network stage, which is fine here
	err := runLogin("", "")

	if err != nil && err.Error() == "email is required (use --email flag or RETINOSCAN_EMAIL env var)" {
		t.Error("runLogin should have read email from RETINOSCAN_EMAIL env var")
	}
}

func TestLogoutCommand_Structure(t *testing.T) {
	cmd := NewLogoutCmd()

	if cmd.Use != "logout" {
		t.Errorf("expected Use to be 'logout', got %s", cmd.Use)
	}
}

func TestWhoamiCommand_Structure(t *testing.T) {
	cmd := NewWhoamiCmd()

	if cmd.Use != "whoami" {
		t.Errorf("expected Use to be 'whoami', got %s", cmd.Use)
	}

	if cmd.Flags().Lookup("server") == nil {
		t.Error("expected --server flag to exist")
	}
}
