package triviareview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultConfigFile is the settings file looked up in the working directory.
const DefaultConfigFile = "trivia_reviewer_config.json"

// Config holds reviewer settings persisted between sessions. It is safe for
// concurrent use; the config watcher reloads labels from its own goroutine.
type Config struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	data configFile
}

type configFile struct {
	CodeLabels      map[string]string `json:"code_labels"`
	LastFile        string            `json:"last_file"`
	OutputFolder    string            `json:"output_folder"`
	AutosaveSeconds int               `json:"autosave_seconds,omitempty"`
}

// NewConfig returns an empty config that saves to path.
func NewConfig(path string, logger *zap.Logger) *Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Config{path: path, logger: logger, data: configFile{CodeLabels: map[string]string{}}}
}

// LoadConfig reads path. A missing file gives defaults. A file that cannot
// be parsed is logged and also gives defaults, so a damaged settings file
// never stops a review session.
func LoadConfig(path string, logger *zap.Logger) (*Config, error) {
	c := NewConfig(path, logger)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	data, err := parseConfig(raw)
	if err != nil {
		c.logger.Warn("config file is corrupt, using defaults", zap.String("path", path), zap.Error(err))
		return c, nil
	}
	c.data = data
	return c, nil
}

func parseConfig(raw []byte) (configFile, error) {
	var data configFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return configFile{}, err
	}
	if data.CodeLabels == nil {
		data.CodeLabels = map[string]string{}
	}
	return data, nil
}

// Path is where the config is saved.
func (c *Config) Path() string { return c.path }

// Save writes the config atomically.
func (c *Config) Save() error {
	c.mu.RLock()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(c.data)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := writeFileAtomic(c.path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Label returns the display name of code, "Code N" when none is set.
func (c *Config) Label(code int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if l, ok := c.data.CodeLabels[strconv.Itoa(code)]; ok && l != "" {
		return l
	}
	return fmt.Sprintf("Code %d", code)
}

// Labels returns a copy of the custom labels keyed by code.
func (c *Config) Labels() map[int]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]string, len(c.data.CodeLabels))
	for k, v := range c.data.CodeLabels {
		if code, err := strconv.Atoi(k); err == nil {
			out[code] = v
		}
	}
	return out
}

// SetLabel sets the label of code. Blank text removes it.
func (c *Config) SetLabel(code int, text string) error {
	if !ValidCode(code) {
		return inputErrorf("invalid code %d", code)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	text = strings.TrimSpace(text)
	if text == "" {
		delete(c.data.CodeLabels, strconv.Itoa(code))
		return nil
	}
	c.data.CodeLabels[strconv.Itoa(code)] = text
	return nil
}

// LastFile is the questions file opened most recently.
func (c *Config) LastFile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.LastFile
}

func (c *Config) SetLastFile(path string) {
	c.mu.Lock()
	c.data.LastFile = path
	c.mu.Unlock()
}

// OutputFolder is where code files and progress backups go.
func (c *Config) OutputFolder() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.OutputFolder
}

func (c *Config) SetOutputFolder(dir string) {
	c.mu.Lock()
	c.data.OutputFolder = dir
	c.mu.Unlock()
}

// AutosaveInterval returns the configured interval, or the default.
func (c *Config) AutosaveInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data.AutosaveSeconds > 0 {
		return time.Duration(c.data.AutosaveSeconds) * time.Second
	}
	return DefaultAutosaveInterval
}

// ReloadLabels re-reads the code labels from disk, leaving the other fields
// alone. It reports whether the labels changed.
func (c *Config) ReloadLabels() (bool, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return false, fmt.Errorf("failed to read config: %w", err)
	}
	data, err := parseConfig(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse config: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if maps.Equal(c.data.CodeLabels, data.CodeLabels) {
		return false, nil
	}
	c.data.CodeLabels = data.CodeLabels
	return true, nil
}
