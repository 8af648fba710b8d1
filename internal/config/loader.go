package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":    {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"search": {"tavily"},
}

// keylessLLMs run locally and need no API key.
var keylessLLMs = []string{"ollama", "llamacpp", "llamafile"}

// LookupFunc reports the value of an environment variable.
// [os.LookupEnv] is the production implementation.
type LookupFunc func(key string) (string, bool)

// Load reads the YAML configuration file at path, applies environment
// overrides and returns a validated [Config].
//
// A .env file in the working directory is loaded first if present. An empty
// path skips the YAML file, so a deployment can be configured purely from
// the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
	}

	cfg, err := parse(data, os.LookupEnv)
	if err != nil {
		if path == "" {
			return nil, err
		}
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults and validates
// the result. The environment is not consulted.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return parse(data, nil)
}

func parse(data []byte, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	ApplyDefaults(cfg)
	if lookup != nil {
		ApplyEnv(cfg, lookup)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields of cfg with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Providers.LLM.Name == "" {
		cfg.Providers.LLM.Name = DefaultLLMProvider
	}
	if cfg.Providers.Search.Name == "" {
		cfg.Providers.Search.Name = DefaultSearch
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageMongo
	}
	if cfg.Storage.Database == "" {
		cfg.Storage.Database = DefaultDatabase
	}
	if cfg.Debate.MaxRounds == 0 {
		cfg.Debate.MaxRounds = MaxRounds
	}
	if cfg.Debate.DefaultRounds == 0 {
		cfg.Debate.DefaultRounds = min(DefaultRounds, cfg.Debate.MaxRounds)
	}
}

// ApplyEnv overrides credentials and connection strings from the environment.
//
//	IDEACRITIC_LLM_API_KEY   providers.llm.api_key
//	GOOGLE_API_KEY           providers.llm.api_key (gemini, when still empty)
//	OPENAI_API_KEY           providers.llm.api_key (openai, when still empty)
//	TAVILY_API_KEY           providers.search.api_key
//	MONGO_CONNECTION_STRING  storage.mongo_uri
//	POSTGRES_DSN             storage.postgres_dsn
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(&cfg.Providers.LLM.APIKey, "IDEACRITIC_LLM_API_KEY")
	if cfg.Providers.LLM.APIKey == "" {
		switch cfg.Providers.LLM.Name {
		case "gemini":
			set(&cfg.Providers.LLM.APIKey, "GOOGLE_API_KEY")
		case "openai":
			set(&cfg.Providers.LLM.APIKey, "OPENAI_API_KEY")
		}
	}
	set(&cfg.Providers.Search.APIKey, "TAVILY_API_KEY")
	set(&cfg.Storage.MongoURI, "MONGO_CONNECTION_STRING")
	set(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("search", cfg.Providers.Search.Name)

	// Completion credentials are required; nothing works without them.
	llmEntry := cfg.Providers.LLM
	if llmEntry.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	} else if llmEntry.APIKey == "" && !slices.Contains(keylessLLMs, llmEntry.Name) {
		errs = append(errs, fmt.Errorf("providers.llm.api_key is required for %q (or set IDEACRITIC_LLM_API_KEY)", llmEntry.Name))
	}

	if cfg.Providers.Search.APIKey == "" {
		slog.Warn("providers.search.api_key is empty; the market analyst will run without market data")
	}

	// Storage
	switch cfg.Storage.Backend {
	case StorageMongo:
		if cfg.Storage.MongoURI == "" {
			errs = append(errs, errors.New("storage.mongo_uri is required when storage.backend is mongo (or set MONGO_CONNECTION_STRING)"))
		}
	case StoragePostgres:
		if cfg.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres (or set POSTGRES_DSN)"))
		}
	case StorageMemory:
		slog.Warn("storage.backend is memory; analyses are lost on restart")
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: mongo, postgres, memory", cfg.Storage.Backend))
	}

	// Debate
	if cfg.Debate.MaxRounds < 1 || cfg.Debate.MaxRounds > MaxRounds {
		errs = append(errs, fmt.Errorf("debate.max_rounds %d is out of range [1, %d]", cfg.Debate.MaxRounds, MaxRounds))
	}
	if cfg.Debate.DefaultRounds < 1 || cfg.Debate.DefaultRounds > cfg.Debate.MaxRounds {
		errs = append(errs, fmt.Errorf("debate.default_rounds %d is out of range [1, %d]", cfg.Debate.DefaultRounds, cfg.Debate.MaxRounds))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
