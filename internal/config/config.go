package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultAppFolder = ".tgpull"

type Config struct {
	DataDir string
}

// Load resolves the data directory: TGPULL_DATA_DIR wins, then a
// previously persisted bootstrap file, then ~/.tgpull.
func Load() Config {
	if envDir := os.Getenv("TGPULL_DATA_DIR"); envDir != "" {
		return Config{DataDir: envDir}
	}
	if persisted, err := loadPersistedDataDir(); err == nil && strings.TrimSpace(persisted) != "" {
		return Config{DataDir: persisted}
	}
	return Config{DataDir: DefaultDataDir()}
}

func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "tgpull.db")
}

func (c Config) SessionPath() string {
	return filepath.Join(c.DataDir, "session.json")
}

func (c Config) DownloadsDir() string {
	return filepath.Join(c.DataDir, "downloads")
}

// APICredentials reads the Telegram api id/hash pair from the
// environment. These identify the application, not the user.
func APICredentials() (int, string, error) {
	rawID := strings.TrimSpace(os.Getenv("TGPULL_API_ID"))
	hash := strings.TrimSpace(os.Getenv("TGPULL_API_HASH"))
	if rawID == "" || hash == "" {
		return 0, "", errors.New("TGPULL_API_ID and TGPULL_API_HASH must be set (see https://my.telegram.org)")
	}
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return 0, "", errors.New("TGPULL_API_ID must be a positive integer")
	}
	return id, hash, nil
}

func PersistDataDir(dataDir string) error {
	clean := strings.TrimSpace(filepath.Clean(dataDir))
	if clean == "" {
		return errors.New("data directory is required")
	}
	if err := os.MkdirAll(clean, 0o755); err != nil {
		return err
	}
	bootstrapPath, err := bootstrapConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(bootstrapPath), 0o755); err != nil {
		return err
	}
	payload := bootstrapConfig{DataDir: clean}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := bootstrapPath + ".tmp"
	if err := os.WriteFile(tmpPath, encoded, 0o644); err != nil {
		return err
	}
	if err := os.Remove(bootstrapPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Rename(tmpPath, bootstrapPath)
}

func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultAppFolder)
}

type bootstrapConfig struct {
	DataDir string `json:"data_dir"`
}

func loadPersistedDataDir() (string, error) {
	bootstrapPath, err := bootstrapConfigPath()
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(filepath.Clean(bootstrapPath))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var payload bootstrapConfig
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", err
	}
	return strings.TrimSpace(filepath.Clean(payload.DataDir)), nil
}

func bootstrapConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultAppFolder, "bootstrap.json"), nil
}
