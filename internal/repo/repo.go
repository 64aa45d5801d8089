// Package repo implements repository discovery and per-repository
// configuration: walking up from a working directory to find the
// repository root, then loading (or defaulting) the Scribe settings that
// root carries - storage backend, documentation layout, permissions, and
// plugin wiring.
package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/kdlbs/scribe-mcp/internal/sandbox"
)

// Config is a single repository's Scribe settings, resolved from
// .scribe/scribe.yaml (or an equivalent search path) and defaulted where
// the file is silent or absent.
type Config struct {
	RepoSlug string
	RepoRoot string

	DevPlansDir       string
	ProgressLogName   string
	TemplatesPack     string
	CustomTemplatesDir string

	Permissions sandbox.Permissions

	PluginsDir   string
	PluginConfig map[string]any

	DefaultEmoji string
	DefaultAgent string

	ReminderConfig map[string]any
	Hooks          map[string]string

	MCPServerName  string
	StorageBackend string // "embedded" or "server"
	DBPath         string // embedded (sqlite) file path, relative to RepoRoot unless absolute
	DBURL          string // server (postgres) DSN
}

// rootMarkers are the repository markers FindRoot looks for. ".scribe" and
// ".git" take priority over language/build markers: FindRoot first walks all
// the way up looking for either of them, and only then falls back to the
// nearest directory carrying any marker, so a nested Go module inside a
// larger repo still resolves to the outer root when it carries Scribe state.
var rootMarkers = []string{".scribe", ".git", "go.mod", "package.json", "pyproject.toml", "Cargo.toml"}

// FindRoot walks upward from startPath looking for a repository marker,
// returning the first directory that carries one.
func FindRoot(startPath string) (string, error) {
	abs, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("resolve start path: %w", err)
	}

	for current := abs; ; current = filepath.Dir(current) {
		for _, marker := range rootMarkers[:2] {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current, nil
			}
		}
		if filepath.Dir(current) == current {
			break
		}
	}

	current := abs
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", fmt.Errorf("repo: no repository root found walking up from %s (no .scribe, .git, or project marker)", startPath)
}

// configSearchPaths lists candidate config files under repoRoot, in the
// order they are tried.
func configSearchPaths(repoRoot string) []string {
	return []string{
		filepath.Join(repoRoot, ".scribe", "scribe.yaml"),
		filepath.Join(repoRoot, ".scribe", "scribe.yml"),
		filepath.Join(repoRoot, "docs", "dev_plans", "scribe.yaml"),
		filepath.Join(repoRoot, ".scribe", "config.json"),
	}
}

// LoadConfig resolves the Scribe configuration for repoRoot, trying each
// search path in turn and falling back to DefaultConfig if none exist or
// parse cleanly.
func LoadConfig(repoRoot string) (*Config, error) {
	for _, path := range configSearchPaths(repoRoot) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := loadConfigFile(repoRoot, path)
		if err != nil {
			continue // fall through to the next candidate, then to defaults
		}
		return cfg, nil
	}
	return DefaultConfig(repoRoot), nil
}

func loadConfigFile(repoRoot, path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read repo config %s: %w", path, err)
	}

	cfg := DefaultConfig(repoRoot)
	cfg.RepoSlug = v.GetString("repo_slug")
	if cfg.RepoSlug == "" {
		cfg.RepoSlug = filepath.Base(repoRoot)
	}
	if dir := v.GetString("dev_plans_dir"); dir != "" {
		cfg.DevPlansDir = resolveRepoPath(repoRoot, dir)
	}
	if name := v.GetString("progress_log_name"); name != "" {
		cfg.ProgressLogName = name
	}
	if pack := v.GetString("templates_pack"); pack != "" {
		cfg.TemplatesPack = pack
	}
	if dir := v.GetString("custom_templates_dir"); dir != "" {
		cfg.CustomTemplatesDir = resolveRepoPath(repoRoot, dir)
	}
	if dir := v.GetString("plugins_dir"); dir != "" {
		cfg.PluginsDir = resolveRepoPath(repoRoot, dir)
	}
	if emoji := v.GetString("default_emoji"); emoji != "" {
		cfg.DefaultEmoji = emoji
	}
	if agent := v.GetString("default_agent"); agent != "" {
		cfg.DefaultAgent = agent
	}
	if name := v.GetString("mcp_server_name"); name != "" {
		cfg.MCPServerName = name
	}
	if backend := v.GetString("storage_backend"); backend != "" {
		cfg.StorageBackend = backend
	}
	if path := v.GetString("db_path"); path != "" {
		cfg.DBPath = resolveRepoPath(repoRoot, path)
	}
	if url := v.GetString("db_url"); url != "" {
		cfg.DBURL = url
	}

	if perms := v.GetStringMap("permissions"); len(perms) > 0 {
		cfg.Permissions = sandbox.Permissions{
			AllowRotate:       boolOr(perms["allow_rotate"], cfg.Permissions.AllowRotate),
			AllowGenerateDocs: boolOr(perms["allow_generate_docs"], cfg.Permissions.AllowGenerateDocs),
			AllowBulkEntries:  boolOr(perms["allow_bulk_entries"], cfg.Permissions.AllowBulkEntries),
			RequireProject:    boolOr(perms["require_project"], cfg.Permissions.RequireProject),
		}
	}
	if pc := v.GetStringMap("plugin_config"); len(pc) > 0 {
		cfg.PluginConfig = pc
	}
	if rc := v.GetStringMap("reminder_config"); len(rc) > 0 {
		cfg.ReminderConfig = rc
	}
	if hooks := v.GetStringMapString("hooks"); len(hooks) > 0 {
		cfg.Hooks = hooks
	}

	return cfg, nil
}

func boolOr(v any, def bool) bool {
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func resolveRepoPath(repoRoot, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

// DefaultConfig is the fallback when no repo config file exists yet: a
// project named after the directory, documents under docs/dev_plans,
// every capability allowed, embedded SQLite storage.
func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoSlug:        filepath.Base(repoRoot),
		RepoRoot:        repoRoot,
		DevPlansDir:     filepath.Join(repoRoot, "docs", "dev_plans"),
		ProgressLogName: "PROGRESS_LOG.md",
		TemplatesPack:   "default",
		Permissions:     sandbox.DefaultPermissions(),
		DefaultEmoji:    "\U0001F4CB",
		DefaultAgent:    "Agent",
		MCPServerName:   "scribe.mcp",
		StorageBackend:  "embedded",
	}
}

// EnsureConfig writes cfg to .scribe/scribe.yaml under its RepoRoot if no
// config file exists yet there.
func EnsureConfig(cfg *Config) error {
	scribeDir := filepath.Join(cfg.RepoRoot, ".scribe")
	if err := os.MkdirAll(scribeDir, 0o755); err != nil {
		return fmt.Errorf("create .scribe directory: %w", err)
	}

	configFile := filepath.Join(scribeDir, "scribe.yaml")
	if _, err := os.Stat(configFile); err == nil {
		return nil
	}

	v := viper.New()
	v.Set("repo_slug", cfg.RepoSlug)
	v.Set("progress_log_name", cfg.ProgressLogName)
	v.Set("templates_pack", cfg.TemplatesPack)
	v.Set("default_emoji", cfg.DefaultEmoji)
	v.Set("default_agent", cfg.DefaultAgent)
	v.Set("mcp_server_name", cfg.MCPServerName)
	v.Set("storage_backend", cfg.StorageBackend)
	v.Set("permissions", map[string]bool{
		"allow_rotate":        cfg.Permissions.AllowRotate,
		"allow_generate_docs": cfg.Permissions.AllowGenerateDocs,
		"allow_bulk_entries":  cfg.Permissions.AllowBulkEntries,
		"require_project":     cfg.Permissions.RequireProject,
	})
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("write repo config: %w", err)
	}
	return nil
}

// DiscoverOrCreate finds the repository root from startPath, loads its
// configuration (or defaults it), and ensures docs/dev_plans exists.
func DiscoverOrCreate(startPath string) (*Config, error) {
	root, err := FindRoot(startPath)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DevPlansDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dev plans directory: %w", err)
	}
	return cfg, nil
}

// ProgressLogPath returns the absolute path to projectName's progress
// log, or the repo-level default progress log if projectName is empty.
func (c *Config) ProgressLogPath(projectName string) string {
	if projectName == "" {
		return filepath.Join(c.DevPlansDir, c.RepoSlug, c.ProgressLogName)
	}
	return filepath.Join(c.DevPlansDir, projectName, c.ProgressLogName)
}

// ProjectDocsDir returns the absolute path to projectName's documentation
// directory.
func (c *Config) ProjectDocsDir(projectName string) string {
	return filepath.Join(c.DevPlansDir, projectName)
}

// Roots converts a Config into the sandbox.RepoRoots it should enforce.
func (c *Config) Roots() sandbox.RepoRoots {
	return sandbox.RepoRoots{
		RepoRoot:     c.RepoRoot,
		DocsDir:      c.DevPlansDir,
		PluginsDir:   c.PluginsDir,
		TemplatesDir: c.CustomTemplatesDir,
		ScribeDir:    filepath.Join(c.RepoRoot, ".scribe"),
		DBDir:        filepath.Dir(c.DBPath),
		Permissions:  c.Permissions,
	}
}
