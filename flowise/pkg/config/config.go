package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/architect-ai/flowise-go/flowise/pkg/constants"
	"github.com/architect-ai/flowise-go/flowise/pkg/logger"
)

// Provider resolves nested configuration sections for the SDK. A section is
// addressed by a dotted path like "flowise" or "flowise.auth" and is returned
// as a key/value mapping. A missing section yields an empty (never nil) map so
// callers can apply their documented defaults.
type Provider interface {
	GetSection(path string) map[string]any
}

// Loader is a YAML-backed Provider rooted at a framework directory. It reads
// <root>/configs/global_settings.yaml, expands ${VAR} references from the
// process environment, and caches the parsed tree for the Loader's lifetime.
type Loader struct {
	root string
	log  logger.Logger

	mu   sync.Mutex
	tree map[string]any
}

// NewLoader creates a Loader rooted at frameworkRoot. A leading "~" is
// expanded to the user home directory and the path is made absolute. If a
// .env file exists under the root it is loaded into the process environment
// before any expansion happens.
func NewLoader(frameworkRoot string, log logger.Logger) *Loader {
	if log == nil {
		log = logger.GetDefault()
	}

	root := expandHome(frameworkRoot)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	dotenvPath := filepath.Join(root, constants.DotenvFileName)
	if _, err := os.Stat(dotenvPath); err == nil {
		if err := godotenv.Load(dotenvPath); err != nil {
			log.Warn("failed to load .env file", "path", dotenvPath, "error", err)
		} else {
			log.Debug("loaded environment from .env file", "path", dotenvPath)
		}
	}

	return &Loader{root: root, log: log}
}

// Root returns the absolute framework root directory.
func (l *Loader) Root() string {
	return l.root
}

// GetSection returns the mapping at the dotted path inside the global
// settings tree. Missing files, parse errors, and absent keys all degrade to
// an empty map.
func (l *Loader) GetSection(path string) map[string]any {
	section, ok := walkSection(l.loadTree(), path)
	if !ok {
		l.log.Debug("configuration section not found, defaults apply", "path", path)
	}
	return section
}

// walkSection resolves a dotted path inside a tree. The boolean reports
// whether the path resolved to a mapping.
func walkSection(tree map[string]any, path string) (map[string]any, bool) {
	node := any(tree)
	for _, key := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return map[string]any{}, false
		}
		node, ok = m[key]
		if !ok {
			return map[string]any{}, false
		}
	}
	if section, ok := node.(map[string]any); ok {
		return section, true
	}
	return map[string]any{}, false
}

func (l *Loader) loadTree() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tree != nil {
		return l.tree
	}

	path := filepath.Join(l.root, constants.ConfigDirName, constants.GlobalSettingsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Warn("configuration file not found", "path", path)
		} else {
			l.log.Error("failed to read configuration file", "path", path, "error", err)
		}
		l.tree = map[string]any{}
		return l.tree
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		l.log.Error("failed to parse configuration file", "path", path, "error", err)
		l.tree = map[string]any{}
		return l.tree
	}
	if tree == nil {
		tree = map[string]any{}
	}

	expanded, ok := expandEnvVars(tree).(map[string]any)
	if !ok {
		expanded = map[string]any{}
	}
	l.tree = expanded
	return l.tree
}

// expandEnvVars recursively expands ${VAR} references in string values.
// References to unset variables are kept literal.
func expandEnvVars(value any) any {
	switch v := value.(type) {
	case string:
		return os.Expand(v, func(name string) string {
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			return "${" + name + "}"
		})
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = expandEnvVars(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = expandEnvVars(item)
		}
		return out
	default:
		return value
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// GetString reads a string value from a section, falling back to def when
// the key is absent or not a string.
func GetString(section map[string]any, key, def string) string {
	if raw, ok := section[key]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return def
}

// GetInt reads an integer value from a section, tolerating the numeric types
// YAML decoding can produce. Falls back to def when absent or unparsable.
func GetInt(section map[string]any, key string, def int) int {
	raw, ok := section[key]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// GetBool reads a boolean value from a section. String values are parsed
// with strconv. Falls back to def when absent or unparsable.
func GetBool(section map[string]any, key string, def bool) bool {
	raw, ok := section[key]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

var _ Provider = (*Loader)(nil)

// Static is a Provider backed by an in-memory tree, mainly for tests and
// embedding callers that already hold their configuration.
type Static map[string]any

func (s Static) GetSection(path string) map[string]any {
	section, _ := walkSection(map[string]any(s), path)
	return section
}
