// Package config loads refdrift settings.
//
// Settings come from, in increasing precedence: built-in defaults, an optional
// YAML file, and environment variables (REFDRIFT_*, GITHUB_TOKEN). A .env file
// in the working directory is loaded first without overriding variables that
// are already set. The merged result is validated against an embedded CUE
// schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Repository identifies the library repository.
type Repository struct {
	URL       string `yaml:"url" json:"url"`
	GitHubAPI string `yaml:"github_api" json:"github_api"`
	Token     string `yaml:"-" json:"-"`
}

// Archive configures the optional S3-compatible results upload.
type Archive struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
	AccessKey string `yaml:"-" json:"-"`
	SecretKey string `yaml:"-" json:"-"`
}

// Enabled reports whether an archive endpoint is configured.
func (a Archive) Enabled() bool {
	return a.Endpoint != ""
}

// Config is the merged refdrift configuration.
type Config struct {
	PackageManager    string              `yaml:"package_manager" json:"package_manager"`
	Channel           string              `yaml:"channel" json:"channel"`
	Python            string              `yaml:"python" json:"python"`
	Package           string              `yaml:"package" json:"package"`
	AuxRequirements   string              `yaml:"aux_requirements" json:"aux_requirements"`
	CloneRequirements []string            `yaml:"clone_requirements" json:"clone_requirements"`
	Repository        Repository          `yaml:"repository" json:"repository"`
	EnvironmentName   string              `yaml:"environment_name" json:"environment_name"`
	NotebookTimeout   int                 `yaml:"notebook_timeout" json:"notebook_timeout"`
	Kernel            string              `yaml:"kernel" json:"kernel"`
	Exclusions        map[string][]string `yaml:"exclusions" json:"exclusions"`
	Archive           Archive             `yaml:"archive" json:"archive"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PackageManager:    "mamba",
		Channel:           "conda-forge",
		Python:            "python",
		Package:           "tobac",
		AuxRequirements:   "conda_requirements.txt",
		CloneRequirements: []string{"requirements.txt", "example_requirements.txt"},
		Repository: Repository{
			URL: "https://github.com/tobac-project/tobac.git",
		},
		EnvironmentName: "realcase_testing",
		NotebookTimeout: 600,
		Kernel:          "python3",
		Exclusions: map[string][]string{
			"jupyter checkpoint copy": {"**/.ipynb_checkpoints/**"},
		},
	}
}

// ValidationError reports a configuration that does not satisfy the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Load builds the configuration. path may be empty; a leading "~" is expanded.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return Config{}, err
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeFile(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", expanded, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeFile overlays a YAML document onto cfg. An exclusions map in the
// file replaces the built-in one instead of merging with it.
func decodeFile(data []byte, cfg *Config) error {
	var keys struct {
		Exclusions *yaml.Node `yaml:"exclusions"`
	}
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return err
	}
	if keys.Exclusions != nil {
		cfg.Exclusions = nil
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"REFDRIFT_PACKAGE_MANAGER":    &cfg.PackageManager,
		"REFDRIFT_CHANNEL":            &cfg.Channel,
		"REFDRIFT_REPOSITORY_URL":     &cfg.Repository.URL,
		"REFDRIFT_GITHUB_API":         &cfg.Repository.GitHubAPI,
		"REFDRIFT_ARCHIVE_ENDPOINT":   &cfg.Archive.Endpoint,
		"REFDRIFT_ARCHIVE_BUCKET":     &cfg.Archive.Bucket,
		"REFDRIFT_ARCHIVE_ACCESS_KEY": &cfg.Archive.AccessKey,
		"REFDRIFT_ARCHIVE_SECRET_KEY": &cfg.Archive.SecretKey,
		"GITHUB_TOKEN":                &cfg.Repository.Token,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("REFDRIFT_NOTEBOOK_TIMEOUT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REFDRIFT_NOTEBOOK_TIMEOUT: %w", err)
		}
		cfg.NotebookTimeout = n
	}
	if v, ok := os.LookupEnv("REFDRIFT_ARCHIVE_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REFDRIFT_ARCHIVE_USE_SSL: %w", err)
		}
		cfg.Archive.UseSSL = b
	}
	return nil
}

// Validate checks cfg against the embedded schema.
func Validate(cfg Config) error {
	if cfg.CloneRequirements == nil {
		cfg.CloneRequirements = []string{}
	}
	if cfg.Exclusions == nil {
		cfg.Exclusions = map[string][]string{}
	}
	for reason, patterns := range cfg.Exclusions {
		if patterns == nil {
			cfg.Exclusions[reason] = []string{}
		}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(cfg))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	return expanded, nil
}
