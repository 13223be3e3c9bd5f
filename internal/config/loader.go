package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the primary config file name.
const ConfigFileName = "modelink.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "modelink.yml"

// maxUpwardSearchLevels limits the upward config file search.
const maxUpwardSearchLevels = 10

var configFileUsed string

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string { return configFileUsed }

func configFileIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRoot searches upward from startDir for a config file and
// returns the containing directory, or startDir when none is found.
func findProjectRoot(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configFileIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return startDir
}

// Load builds the configuration. Precedence, highest first: flags, env
// vars with the MODELINK_ prefix, the config file, defaults. cfgFile
// forces a specific config file; otherwise modelink.yaml is searched
// upward from the working directory.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"base_dir":        DefaultBaseDir,
		"state_path":      DefaultStateFile,
		"catalog_timeout": DefaultCatalogTimeout,
		"output":          DefaultOutput,
		"verbose":         false,
		"server.port":     DefaultServerPort,
		"server.watch":    true,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	projectRoot, _ := os.Getwd()
	if projectRoot == "" {
		projectRoot = "."
	}
	if cfgFile == "" {
		projectRoot = findProjectRoot(projectRoot)
		cfgFile = configFileIn(projectRoot)
	} else if abs, err := filepath.Abs(cfgFile); err == nil {
		projectRoot = filepath.Dir(abs)
	}

	configFileUsed = ""
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// MODELINK_VERBOSE=true -> verbose, MODELINK_HUGGINGFACE__TOKEN ->
	// huggingface.token. Double underscore separates nesting levels.
	if err := k.Load(env.Provider("MODELINK_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "MODELINK_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// --models-dir is the CLI spelling of base_dir.
			if key == "models_dir" {
				return "base_dir", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.ProjectRoot = projectRoot
	cfg.BaseDir = resolveRelativeTo(cfg.BaseDir, projectRoot)
	cfg.StatePath = resolveRelativeTo(cfg.StatePath, projectRoot)
	cfg.PopularCatalog = resolveRelativeTo(cfg.PopularCatalog, projectRoot)
	cfg.ModelDB = resolveRelativeTo(cfg.ModelDB, projectRoot)
	for cat, dirs := range cfg.ModelPaths {
		for i, d := range dirs {
			dirs[i] = resolveRelativeTo(d, projectRoot)
		}
		cfg.ModelPaths[cat] = dirs
	}

	cfg.HuggingFace.Token = expandEnvVars(cfg.HuggingFace.Token)
	cfg.Civitai.Token = expandEnvVars(cfg.Civitai.Token)

	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = DefaultCatalogTimeout
	}
	return &cfg, nil
}

func resolveRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars substitutes ${VAR} patterns with environment values,
// leaving unknown variables untouched.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}
