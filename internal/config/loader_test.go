package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/ideacritic/internal/config"
)

func TestValidate_MissingLLMKey(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
storage:
  backend: memory
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing llm api key, got nil")
	}
	if !strings.Contains(err.Error(), "providers.llm.api_key") {
		t.Errorf("error should mention providers.llm.api_key, got: %v", err)
	}
}

func TestValidate_KeylessLLM(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: ollama
    model: llama3.2
storage:
  backend: memory
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ollama needs no api key, got: %v", err)
	}
}

func TestValidate_StorageConnection(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		storage string
		want    string
	}{
		{"mongo without uri", "backend: mongo", "storage.mongo_uri"},
		{"postgres without dsn", "backend: postgres", "storage.postgres_dsn"},
		{"unknown backend", "backend: sqlite", "storage.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			yaml := "providers:\n  llm:\n    api_key: k\nstorage:\n  " + tt.storage + "\n"
			_, err := config.LoadFromReader(strings.NewReader(yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_DebateRounds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		debate string
		want   string
	}{
		{"max too large", "max_rounds: 6", "debate.max_rounds"},
		{"max negative", "max_rounds: -1", "debate.max_rounds"},
		{"default above max", "max_rounds: 2\n  default_rounds: 3", "debate.default_rounds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			yaml := "providers:\n  llm:\n    api_key: k\nstorage:\n  backend: memory\ndebate:\n  " + tt.debate + "\n"
			_, err := config.LoadFromReader(strings.NewReader(yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_SmallMaxClampsDefault(t *testing.T) {
	t.Parallel()
	yaml := "providers:\n  llm:\n    api_key: k\nstorage:\n  backend: memory\ndebate:\n  max_rounds: 2\n"
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Debate.DefaultRounds != 2 {
		t.Errorf("default_rounds: got %d, want 2", cfg.Debate.DefaultRounds)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := "server:\n  log_level: loud\nproviders:\n  llm:\n    api_key: k\nstorage:\n  backend: memory\n"
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "server.log_level") {
		t.Fatalf("expected log_level error, got %v", err)
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
providers:
  llm:
    name: openai
storage:
  backend: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"server.log_level", "providers.llm.api_key", "storage.postgres_dsn"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"GOOGLE_API_KEY":          "google",
		"OPENAI_API_KEY":          "openai",
		"TAVILY_API_KEY":          "tavily",
		"MONGO_CONNECTION_STRING": "mongodb://env",
		"POSTGRES_DSN":            "postgres://env",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	config.ApplyEnv(cfg, lookup)

	if cfg.Providers.LLM.APIKey != "google" {
		t.Errorf("llm api_key: got %q, want google (gemini default)", cfg.Providers.LLM.APIKey)
	}
	if cfg.Providers.Search.APIKey != "tavily" {
		t.Errorf("search api_key: got %q", cfg.Providers.Search.APIKey)
	}
	if cfg.Storage.MongoURI != "mongodb://env" || cfg.Storage.PostgresDSN != "postgres://env" {
		t.Errorf("storage: got %+v", cfg.Storage)
	}

	openai := &config.Config{Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai"}}}
	config.ApplyEnv(openai, lookup)
	if openai.Providers.LLM.APIKey != "openai" {
		t.Errorf("openai api_key: got %q", openai.Providers.LLM.APIKey)
	}
}

func TestApplyEnv_GenericKeyWins(t *testing.T) {
	t.Parallel()
	lookup := func(k string) (string, bool) {
		switch k {
		case "IDEACRITIC_LLM_API_KEY":
			return "generic", true
		case "GOOGLE_API_KEY":
			return "google", true
		}
		return "", false
	}
	cfg := &config.Config{Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "gemini", APIKey: "file"}}}
	config.ApplyEnv(cfg, lookup)
	if cfg.Providers.LLM.APIKey != "generic" {
		t.Errorf("api_key: got %q, want generic", cfg.Providers.LLM.APIKey)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ideacritic.yaml")
	content := "providers:\n  llm:\n    name: ollama\nstorage:\n  backend: memory\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.Name != "ollama" {
		t.Errorf("llm name: got %q", cfg.Providers.LLM.Name)
	}
}

func TestExampleConfig(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"IDEACRITIC_LLM_API_KEY":  "k",
		"MONGO_CONNECTION_STRING": "mongodb://localhost:27017",
	}
	w, err := config.NewWatcher(filepath.Join("..", "..", "configs", "example.yaml"), nil,
		config.WithLookup(func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}),
	)
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	defer w.Stop()

	cfg := w.Current()
	if cfg.Providers.LLM.Name != "gemini" || cfg.Storage.Backend != config.StorageMongo {
		t.Errorf("unexpected example config: %+v", cfg)
	}
	if got := cfg.Providers.Search.IntOption("max_results", 0); got != 5 {
		t.Errorf("search max_results = %d, want 5", got)
	}
}
