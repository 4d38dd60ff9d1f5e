package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// AppConfigFile is looked up in the working directory when no path is given.
	AppConfigFile = "stepform.yaml"
	UserConfigDir = ".config/stepform"
)

// App configures the stepform CLI.
type App struct {
	Database   string    `yaml:"database"`
	Definition string    `yaml:"definition"`
	DraftKey   string    `yaml:"draft_key"`
	LogLevel   string    `yaml:"log_level"`
	LLM        LLMConfig `yaml:"llm"`
}

// LLMConfig enables natural-language commands and step filling.
// Empty APIKey disables the model.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

func DefaultApp() *App {
	return &App{
		Database:   filepath.Join(".stepform", "drafts.db"),
		Definition: "wizard.yaml",
		DraftKey:   "default",
		LogLevel:   "info",
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
	}
}

func (c *App) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Definition == "" {
		return fmt.Errorf("definition is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LLM.Enabled() && c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required when llm.api_key is set")
	}
	return nil
}

// Merge copies the non-zero values of other into c.
func (c *App) Merge(other *App) {
	if other == nil {
		return
	}
	if other.Database != "" {
		c.Database = other.Database
	}
	if other.Definition != "" {
		c.Definition = other.Definition
	}
	if other.DraftKey != "" {
		c.DraftKey = other.DraftKey
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LLM.APIKey != "" {
		c.LLM.APIKey = other.LLM.APIKey
	}
	if other.LLM.BaseURL != "" {
		c.LLM.BaseURL = other.LLM.BaseURL
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
}

func LoadAppFile(path string) (*App, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var app App
	if err := yaml.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &app, nil
}

func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", level)
	}
	return l, nil
}

// Loader layers defaults, the user config, the project config and the
// environment, later layers winning.
type Loader struct {
	logger *slog.Logger
	home   string
	dir    string
	getenv func(string) string
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	home, _ := os.UserHomeDir()
	dir, _ := os.Getwd()
	return &Loader{logger: logger, home: home, dir: dir, getenv: os.Getenv}
}

// Load reads explicit when set, otherwise the user and project files.
func (l *Loader) Load(explicit string) (*App, error) {
	app := DefaultApp()
	if explicit != "" {
		file, err := LoadAppFile(explicit)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", explicit))
		app.Merge(file)
	} else {
		for _, path := range l.candidates() {
			file, err := LoadAppFile(path)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					l.logger.Warn("Failed to load config", slog.String("path", path), slog.String("error", err.Error()))
				}
				continue
			}
			l.logger.Debug("Loaded config", slog.String("path", path))
			app.Merge(file)
		}
	}
	if key := l.getenv("STEPFORM_LLM_API_KEY"); key != "" {
		app.LLM.APIKey = key
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return app, nil
}

func (l *Loader) candidates() []string {
	var paths []string
	if l.home != "" {
		paths = append(paths, filepath.Join(l.home, UserConfigDir, "config.yaml"))
	}
	if l.dir != "" {
		paths = append(paths, filepath.Join(l.dir, AppConfigFile))
	}
	return paths
}
