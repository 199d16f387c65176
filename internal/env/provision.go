package env

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/refdrift/internal/command"
	"github.com/roach88/refdrift/internal/git"
	"github.com/roach88/refdrift/internal/version"
)

// Config describes how packages are installed.
type Config struct {
	Binary            string   // package manager executable
	Channel           string   // channel for every install
	Python            string   // package spec used when creating an environment
	Package           string   // name of the library under test
	AuxRequirements   string   // requirements file installed with every version
	CloneRequirements []string // requirement files inside a cloned source tree
	WorkDir           string   // directory package-manager commands run in
}

// DefaultConfig returns the settings used by the tobac comparison workflow.
func DefaultConfig() Config {
	return Config{
		Binary:            "mamba",
		Channel:           "conda-forge",
		Python:            "python",
		Package:           "tobac",
		AuxRequirements:   "conda_requirements.txt",
		CloneRequirements: []string{"requirements.txt", "example_requirements.txt"},
	}
}

// Environment describes a package environment on disk.
type Environment struct {
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	Version string `json:"version,omitempty"` // installed library version, empty if unknown
}

// Provisioner creates environments and installs library versions into them.
type Provisioner struct {
	runner command.Runner
	git    *git.Client
	cfg    Config
	logger *slog.Logger
}

// NewProvisioner creates a provisioner. A nil logger discards output.
func NewProvisioner(runner command.Runner, gitClient *git.Client, cfg Config, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if gitClient == nil {
		gitClient = git.New(runner)
	}
	return &Provisioner{runner: runner, git: gitClient, cfg: cfg, logger: logger}
}

// Provision ensures an environment exists at path and has spec installed.
//
// For commit specs the source is cloned to {path}/tobac_{hash} first. When
// reuseExisting is false and no environment is registered at path, a fresh
// one is created; an existing environment is always upgraded in place.
func (p *Provisioner) Provision(ctx context.Context, path string, spec version.Spec, sourceURL string, reuseExisting bool) error {
	envPath := CanonicalPath(path)

	if spec.Kind() != version.KindTag && spec.Kind() != version.KindCommit {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, spec.String())
	}

	var clonePath string
	if spec.IsCommit() {
		var err error
		clonePath, err = p.EnsureClone(ctx, envPath, spec.String(), sourceURL)
		if err != nil {
			return err
		}
	}

	exists, err := p.Exists(ctx, envPath)
	if err != nil {
		return err
	}

	switch {
	case !exists && reuseExisting:
		return fmt.Errorf("%w: %s", ErrEnvironmentMissing, envPath)
	case !exists:
		p.logger.Info("creating environment", "path", envPath)
		if _, err := p.pm(ctx, "create", "-y", "-p", envPath, p.cfg.Python); err != nil {
			return fmt.Errorf("create environment: %w", err)
		}
	default:
		p.logger.Info("reusing environment", "path", envPath)
	}

	if spec.IsTag() {
		return p.installRelease(ctx, envPath, spec)
	}
	return p.installSource(ctx, envPath, clonePath)
}

func (p *Provisioner) installRelease(ctx context.Context, envPath string, spec version.Spec) error {
	args := []string{"install", "-y", "-c", p.cfg.Channel, "-p", envPath, p.cfg.Package + "=" + spec.String()}
	if aux := p.auxRequirements(); aux != "" {
		args = append(args, "--file", aux)
	}

	p.logger.Info("installing release", "package", p.cfg.Package, "version", spec.String(), "env", envPath)
	if _, err := p.pm(ctx, args...); err != nil {
		return fmt.Errorf("install %s=%s: %w", p.cfg.Package, spec.String(), err)
	}
	return nil
}

func (p *Provisioner) installSource(ctx context.Context, envPath, clonePath string) error {
	args := []string{"install", "-y", "-c", p.cfg.Channel, "-p", envPath}
	if aux := p.auxRequirements(); aux != "" {
		args = append(args, "--file", aux)
	}
	for _, name := range p.cfg.CloneRequirements {
		reqPath := filepath.Join(clonePath, name)
		if _, err := os.Stat(reqPath); err != nil {
			p.logger.Debug("requirements file not found in clone, skipping", "file", reqPath)
			continue
		}
		args = append(args, "--file", reqPath)
	}

	p.logger.Info("installing source requirements", "clone", clonePath, "env", envPath)
	if _, err := p.pm(ctx, args...); err != nil {
		return fmt.Errorf("install requirements: %w", err)
	}

	p.logger.Info("registering source tree", "clone", clonePath, "env", envPath)
	if _, err := p.pm(ctx, "run", "-p", envPath, "python", "-m", "pip", "install", "--no-deps", clonePath); err != nil {
		return fmt.Errorf("pip install %s: %w", clonePath, err)
	}
	return nil
}

// Environments returns the canonical paths of every environment the package
// manager knows about.
func (p *Provisioner) Environments(ctx context.Context) (map[string]struct{}, error) {
	out, err := p.pm(ctx, "env", "list", "--json")
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}

	var listing struct {
		Envs []string `json:"envs"`
	}
	if err := json.Unmarshal([]byte(out), &listing); err != nil {
		return nil, fmt.Errorf("parse environment list: %w", err)
	}

	envs := make(map[string]struct{}, len(listing.Envs))
	for _, e := range listing.Envs {
		envs[CanonicalPath(e)] = struct{}{}
	}
	return envs, nil
}

// Exists reports whether an environment is registered at exactly path.
func (p *Provisioner) Exists(ctx context.Context, path string) (bool, error) {
	envs, err := p.Environments(ctx)
	if err != nil {
		return false, err
	}
	_, ok := envs[CanonicalPath(path)]
	return ok, nil
}

// Inspect reports whether the environment exists and which library version it holds.
func (p *Provisioner) Inspect(ctx context.Context, path string) (Environment, error) {
	envPath := CanonicalPath(path)
	e := Environment{Path: envPath}

	exists, err := p.Exists(ctx, envPath)
	if err != nil || !exists {
		return e, err
	}
	e.Exists = true

	out, err := p.pm(ctx, "list", "-p", envPath, "--json", "^"+p.cfg.Package+"$")
	if err != nil {
		return e, fmt.Errorf("list packages: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return e, nil
	}
	var pkgs []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(out), &pkgs); err != nil {
		return e, fmt.Errorf("parse package list: %w", err)
	}
	for _, pkg := range pkgs {
		if pkg.Name == p.cfg.Package {
			e.Version = pkg.Version
			break
		}
	}
	return e, nil
}

// EnsureClone makes {envPath}/tobac_{hash} a checkout of hash and returns its path.
//
// A sidecar marker {clone}.ref records the checked-out commit. An existing
// clone is reused only if both the marker and HEAD match hash; otherwise it
// is removed and cloned again.
func (p *Provisioner) EnsureClone(ctx context.Context, envPath, hash, sourceURL string) (string, error) {
	clonePath := filepath.Join(envPath, p.cfg.Package+"_"+hash)
	marker := clonePath + ".ref"

	if _, err := os.Stat(clonePath); err == nil {
		if p.cloneMatches(ctx, clonePath, marker, hash) {
			p.logger.Info("clone already exists, skipping download", "path", clonePath)
			return clonePath, nil
		}
		p.logger.Warn("existing clone does not match requested commit, cloning again", "path", clonePath, "commit", hash)
		if err := os.RemoveAll(clonePath); err != nil {
			return "", fmt.Errorf("remove stale clone: %w", err)
		}
	}

	if sourceURL == "" {
		return "", ErrMissingSourceURL
	}
	if err := os.MkdirAll(envPath, 0o755); err != nil {
		return "", fmt.Errorf("create environment directory: %w", err)
	}

	p.logger.Info("cloning source", "url", sourceURL, "commit", hash, "path", clonePath)
	if err := p.git.CloneNoCheckout(ctx, sourceURL, clonePath); err != nil {
		return "", err
	}
	if err := p.git.Checkout(ctx, clonePath, hash); err != nil {
		return "", err
	}
	if err := os.WriteFile(marker, []byte(hash+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write clone marker: %w", err)
	}
	return clonePath, nil
}

func (p *Provisioner) cloneMatches(ctx context.Context, clonePath, marker, hash string) bool {
	recorded, err := os.ReadFile(marker)
	if err != nil {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(string(recorded)), hash) {
		return false
	}
	head, err := p.git.HeadCommit(ctx, clonePath)
	if err != nil {
		return false
	}
	return strings.EqualFold(head, hash)
}

func (p *Provisioner) auxRequirements() string {
	if p.cfg.AuxRequirements == "" {
		return ""
	}
	if filepath.IsAbs(p.cfg.AuxRequirements) || p.cfg.WorkDir == "" {
		return p.cfg.AuxRequirements
	}
	return filepath.Join(p.cfg.WorkDir, p.cfg.AuxRequirements)
}

func (p *Provisioner) pm(ctx context.Context, args ...string) (string, error) {
	return p.runner.Run(ctx, p.cfg.WorkDir, p.cfg.Binary, args...)
}

// CanonicalPath returns an absolute, cleaned path with symlinks resolved when
// the path exists.
func CanonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	} else if !errors.Is(err, os.ErrNotExist) {
		return abs
	}
	// Resolve the deepest existing ancestor so not-yet-created paths still
	// compare equal to their eventual canonical form.
	dir, base := filepath.Split(abs)
	dir = filepath.Clean(dir)
	if dir == abs {
		return abs
	}
	return filepath.Join(CanonicalPath(dir), base)
}
