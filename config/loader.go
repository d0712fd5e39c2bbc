package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem is what the loader needs from the disk.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

type osFS struct{}

func (osFS) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LoadEnv never overrides variables that are already set.
func (osFS) LoadEnv(path string) error { return godotenv.Load(path) }

// Sources names the files a load reads. Empty fields are searched for.
type Sources struct {
	ConfigFile string
	EnvFile    string
}

// LoaderOption customizes LoadConfig.
type LoaderOption func(*loader)

type loader struct {
	fs      FileSystem
	sources Sources
}

// WithFileSystem replaces the disk, mostly for tests.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(l *loader) { l.fs = fs }
}

// WithConfigFile reads path instead of searching for config.yml.
func WithConfigFile(path string) LoaderOption {
	return func(l *loader) { l.sources.ConfigFile = path }
}

// WithEnvFile reads path instead of searching for a .env file.
func WithEnvFile(path string) LoaderOption {
	return func(l *loader) { l.sources.EnvFile = path }
}

// configCandidates lists where config files are looked for, in order.
// <SERVICE>_CONFIG wins over every location.
func configCandidates(service string) []string {
	var paths []string
	if p := os.Getenv(envName(service) + "_CONFIG"); p != "" {
		paths = append(paths, p)
	}
	for _, name := range []string{"config.yml", "config.yaml"} {
		paths = append(paths,
			name,
			filepath.Join("config", name),
			filepath.Join("cmd", service, name),
		)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, service, "config.yml"))
	}
	return paths
}

func envCandidates(service string) []string {
	return []string{".env." + service, ".env", filepath.Join("config", ".env")}
}

// Resolve fills the empty fields of src with the first existing candidate.
func Resolve(service string, src Sources, fs FileSystem) Sources {
	if src.ConfigFile == "" {
		src.ConfigFile = firstExisting(fs, configCandidates(service))
	}
	if src.EnvFile == "" {
		src.EnvFile = firstExisting(fs, envCandidates(service))
	}
	return src
}

func firstExisting(fs FileSystem, paths []string) string {
	for _, p := range paths {
		if fs.Exists(p) {
			return p
		}
	}
	return ""
}

// LoadConfig reads the YAML file and the .env file found for service into
// cfg. Every key of cfg can be overridden by an environment variable
// named after its path: execution.cache.size reads EXECUTION_CACHE_SIZE.
// Missing files are not an error.
func LoadConfig(service string, cfg any, opts ...LoaderOption) error {
	l := loader{fs: osFS{}}
	for _, opt := range opts {
		opt(&l)
	}
	src := Resolve(service, l.sources, l.fs)

	if src.EnvFile != "" && l.fs.Exists(src.EnvFile) {
		if err := l.fs.LoadEnv(src.EnvFile); err != nil {
			return fmt.Errorf("env file %s: %w", src.EnvFile, err)
		}
	}

	v := viper.New()
	if src.ConfigFile != "" && l.fs.Exists(src.ConfigFile) {
		v.SetConfigFile(src.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config file %s: %w", src.ConfigFile, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range Keys(cfg) {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode %s config: %w", service, err)
	}
	return nil
}

// Keys lists the dotted mapstructure keys of every leaf field of cfg.
// Squashed structs contribute their fields at the parent level.
func Keys(cfg any) []string {
	t := reflect.TypeOf(cfg)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	collectKeys(t, "", &keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, squash := parseTag(f)
		if name == "-" {
			continue
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			if squash {
				collectKeys(ft, prefix, keys)
			} else {
				collectKeys(ft, prefix+name+".", keys)
			}
			continue
		}
		*keys = append(*keys, prefix+name)
	}
}

func parseTag(f reflect.StructField) (name string, squash bool) {
	tag := f.Tag.Get("mapstructure")
	name, rest, _ := strings.Cut(tag, ",")
	squash = strings.Contains(rest, "squash") || (f.Anonymous && name == "")
	if name == "" {
		name = strings.ToLower(f.Name)
	}
	return name, squash
}

func envName(service string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(service))
}
