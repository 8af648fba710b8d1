package config

// ConfigDiff describes what changed between two configs.
// Log level and debate bounds can be applied live; anything else needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DebateChanged bool
	NewDebate     DebateConfig

	// RestartRequired lists the top-level fields that changed but are only
	// read at startup ("server.listen_addr", "providers.llm", ...).
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Debate != new.Debate {
		d.DebateChanged = true
		d.NewDebate = new.Debate
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !sameEntry(old.Providers.LLM, new.Providers.LLM) {
		d.RestartRequired = append(d.RestartRequired, "providers.llm")
	}
	if !sameEntry(old.Providers.Search, new.Providers.Search) {
		d.RestartRequired = append(d.RestartRequired, "providers.search")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}

	return d
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.DebateChanged && len(d.RestartRequired) == 0
}

// sameEntry compares the scalar fields of two provider entries. Options are
// compared by length and key presence only.
func sameEntry(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, av := range a.Options {
		bv, ok := b.Options[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}
