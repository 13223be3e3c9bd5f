// Package config defines and loads the modelink configuration.
package config

import (
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultBaseDir        = "models"
	DefaultStateFile      = ".modelink/state.db"
	DefaultOutput         = "auto"
	DefaultServerPort     = 8091
	DefaultCatalogTimeout = 20 * time.Second
)

// defaultCategories are the category directories assumed under the base
// directory when no explicit model_paths mapping is configured.
var defaultCategories = []string{
	"checkpoints", "loras", "vae", "controlnet", "upscale_models",
	"embeddings", "clip_vision", "diffusion_models", "text_encoders",
	"hypernetworks", "ipadapter",
}

// APIConfig holds credentials and endpoint for one remote catalog.
type APIConfig struct {
	// Token supports ${VAR} expansion from the environment.
	Token string `koanf:"token"`
	// Endpoint overrides the public API base URL. Used in tests and for
	// mirrors; empty selects the public endpoint.
	Endpoint string `koanf:"endpoint"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port int `koanf:"port"`
	// Watch enables filesystem watching so the model index follows
	// on-disk changes while the server runs.
	Watch bool `koanf:"watch"`
}

// Config is the fully resolved configuration.
type Config struct {
	// BaseDir is the root models directory. Category directories are
	// derived from it unless ModelPaths overrides them.
	BaseDir string `koanf:"base_dir"`
	// ModelPaths maps a category to one or more directories. Later
	// directories are fallbacks; the first is the download target.
	ModelPaths map[string][]string `koanf:"model_paths"`

	StatePath      string        `koanf:"state_path"`
	PopularCatalog string        `koanf:"popular_catalog"`
	ModelDB        string        `koanf:"model_db"`
	CatalogTimeout time.Duration `koanf:"catalog_timeout"`

	HuggingFace APIConfig `koanf:"huggingface"`
	Civitai     APIConfig `koanf:"civitai"`

	Verbose      bool         `koanf:"verbose"`
	OutputFormat string       `koanf:"output"`
	Server       ServerConfig `koanf:"server"`

	// ProjectRoot is the directory relative paths were resolved against.
	// Inferred, not read from the file.
	ProjectRoot string `koanf:"-"`
}

// Roots returns the effective category-to-directories mapping, deriving
// the default layout under BaseDir when ModelPaths is empty.
func (c *Config) Roots() map[string][]string {
	if len(c.ModelPaths) > 0 {
		return c.ModelPaths
	}
	roots := make(map[string][]string, len(defaultCategories))
	for _, cat := range defaultCategories {
		roots[cat] = []string{filepath.Join(c.BaseDir, cat)}
	}
	return roots
}
