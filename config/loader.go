package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts the file operations the loader needs.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem is the FileSystem backed by the real disk.
type OSFileSystem struct{}

// Exists reports whether path can be stat'ed.
func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a dotenv file into the process environment. Variables
// already set are not overwritten.
func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig carries LoadConfig's options.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption customizes LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem replaces the disk, for tests.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile skips the config file search.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile skips the dotenv search.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Files is the pair of files LoadConfig will read. Either may be empty.
type Files struct {
	ConfigFile string
	EnvFile    string
}

// Resolve returns the files for serviceName, honoring explicit paths and
// otherwise taking the first match from the search lists.
func Resolve(serviceName string, lc LoaderConfig) Files {
	fs := lc.FileSystem
	if fs == nil {
		fs = OSFileSystem{}
	}
	files := Files{ConfigFile: lc.ConfigFile, EnvFile: lc.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = firstExisting(fs, configCandidates(serviceName))
	}
	if files.EnvFile == "" {
		files.EnvFile = firstExisting(fs, envCandidates(serviceName))
	}
	return files
}

// LoadConfig reads a YAML file, then a dotenv file, then the environment,
// into cfg. Later sources override earlier ones. Environment keys map onto
// nested fields by underscore, so HTTP_MAX_RETRIES sets http.max_retries.
// A missing file is not an error; an unreadable one is.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: OSFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}
	files := Resolve(serviceName, lc)

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", files.ConfigFile, err)
		}
	}
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", files.EnvFile, err)
		}
	}
	bindEnv(v, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}
	return nil
}

func configCandidates(serviceName string) []string {
	var paths []string
	for _, name := range nameVariants(serviceName) {
		for _, up := range []string{".", "..", "../.."} {
			paths = append(paths, filepath.Join(up, "cmd", name, "config.yml"))
		}
	}
	return append(paths,
		filepath.Join("config", "config.yml"),
		filepath.Join("..", "config", "config.yml"),
		"config.yml",
	)
}

func envCandidates(serviceName string) []string {
	var paths []string
	for _, file := range []string{".env." + serviceName, ".env"} {
		for _, name := range nameVariants(serviceName) {
			for _, up := range []string{".", "..", "../.."} {
				paths = append(paths, filepath.Join(up, "cmd", name, file))
			}
		}
		paths = append(paths,
			filepath.Join("config", file),
			filepath.Join("..", file),
			file,
		)
	}
	return paths
}

// nameVariants returns serviceName and, for hyphenated names, its last
// segment: "acme-ingest" also searches "ingest".
func nameVariants(serviceName string) []string {
	if i := strings.LastIndex(serviceName, "-"); i != -1 && i < len(serviceName)-1 {
		return []string{serviceName, serviceName[i+1:]}
	}
	return []string{serviceName}
}

func firstExisting(fs FileSystem, paths []string) string {
	for _, p := range paths {
		if fs.Exists(p) {
			return p
		}
	}
	return ""
}

// bindEnv sets every nesting a variable could denote, since underscores
// appear both between sections and inside field names.
func bindEnv(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		for _, k := range keyVariants(key) {
			v.Set(k, value)
		}
	}
}

// keyVariants maps an environment name onto candidate viper keys:
//
//	HTTP_MAX_RETRIES -> http_max_retries, http.max.retries, http.max_retries, http_max.retries
func keyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) == 1 {
		return []string{lower}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	add(lower)
	add(strings.Join(parts, "."))
	for i := 1; i < len(parts); i++ {
		add(strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_"))
		add(strings.Join(parts[:i], "_") + "." + strings.Join(parts[i:], "."))
	}
	return out
}
