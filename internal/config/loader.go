package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, expands ${ENV} references,
// and returns a validated [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expanding ${ENV} references
// before parsing, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxAudioBytes == 0 {
		cfg.Server.MaxAudioBytes = 25 << 20
	}
	if cfg.Server.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_audio_bytes must be positive, got %d", cfg.Server.MaxAudioBytes))
	}

	// STT policy
	if cfg.STT.Policy.Primary == "" {
		cfg.STT.Policy.Primary = ProviderElevenLabs
	}
	if cfg.STT.Policy.Secondary == "" {
		cfg.STT.Policy.Secondary = ProviderDeepgram
	}
	for _, name := range cfg.STT.Policy.Candidates() {
		if !slices.Contains(KnownProviders, name) {
			errs = append(errs, fmt.Errorf("stt.policy references unknown provider %q; known: %s",
				name, strings.Join(KnownProviders, ", ")))
		}
	}

	// Synthesis
	switch cfg.Synthesis.Backend {
	case "", "openai", "anyllm":
	default:
		errs = append(errs, fmt.Errorf("synthesis.backend %q is invalid; valid values: openai, anyllm", cfg.Synthesis.Backend))
	}
	if cfg.Synthesis.MaxTokens == 0 {
		cfg.Synthesis.MaxTokens = 2048
	}
	if cfg.Synthesis.TranscriptCharLimit == 0 {
		cfg.Synthesis.TranscriptCharLimit = 8000
	}
	if cfg.Synthesis.ContextTokenBudget == 0 {
		cfg.Synthesis.ContextTokenBudget = 2000
	}
	if cfg.Synthesis.Temperature != nil {
		if t := *cfg.Synthesis.Temperature; t < 0 || t > 2 {
			errs = append(errs, fmt.Errorf("synthesis.temperature %.2f is out of range [0.0, 2.0]", t))
		}
	}

	// Guardrail
	if cfg.Guardrail.WarnUSD == 0 {
		cfg.Guardrail.WarnUSD = 0.10
	}
	if cfg.Guardrail.HardCapUSD == 0 {
		cfg.Guardrail.HardCapUSD = 0.50
	}
	if cfg.Guardrail.WarnUSD < 0 || cfg.Guardrail.HardCapUSD < 0 {
		errs = append(errs, errors.New("guardrail thresholds must not be negative"))
	}
	if cfg.Guardrail.WarnUSD > cfg.Guardrail.HardCapUSD {
		errs = append(errs, fmt.Errorf("guardrail.warn_usd %.4f exceeds guardrail.hard_cap_usd %.4f",
			cfg.Guardrail.WarnUSD, cfg.Guardrail.HardCapUSD))
	}

	// Store
	if cfg.Store.EmbeddingDimensions == 0 {
		cfg.Store.EmbeddingDimensions = 1536
	}

	// Blob
	if cfg.Blob.BaseURL != "" && !strings.HasPrefix(cfg.Blob.BaseURL, "http://") && !strings.HasPrefix(cfg.Blob.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("blob.base_url %q must be an http(s) URL", cfg.Blob.BaseURL))
	}

	return errors.Join(errs...)
}
