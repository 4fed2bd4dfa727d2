// Package config provides the configuration schema and loader for the
// voicenotes service.
package config

// LogLevel controls log verbosity for the voicenotes server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ProviderStatus is the tri-state availability of one STT provider. Modelling
// it as a single enum avoids the ambiguous combinations two independent
// booleans would allow.
type ProviderStatus string

const (
	// StatusDisabled means the operator kill switch is off for this provider.
	StatusDisabled ProviderStatus = "disabled"

	// StatusUnconfigured means the provider is enabled but has no credential,
	// so it cannot be instantiated.
	StatusUnconfigured ProviderStatus = "unconfigured"

	// StatusReady means the provider is enabled and has a credential.
	StatusReady ProviderStatus = "ready"
)

// Known STT provider names.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderDeepgram   = "deepgram"
	ProviderAssemblyAI = "assemblyai"
)

// KnownProviders lists every STT provider this build can instantiate.
var KnownProviders = []string{ProviderElevenLabs, ProviderDeepgram, ProviderAssemblyAI}

// defaultEnabled is the per-provider kill-switch default: ElevenLabs and
// Deepgram ship enabled, AssemblyAI ships disabled.
var defaultEnabled = map[string]bool{
	ProviderElevenLabs: true,
	ProviderDeepgram:   true,
	ProviderAssemblyAI: false,
}

// Config is the root configuration structure for voicenotes.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	STT        STTConfig        `yaml:"stt"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Guardrail  GuardrailConfig  `yaml:"guardrail"`
	Store      StoreConfig      `yaml:"store"`
	Blob       BlobConfig       `yaml:"blob"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
}

// ServerConfig holds network, logging, and ingestion limits for the server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TrustedAudioHosts is the allow-list of hosts audio may be fetched from.
	// An entry starting with "." matches any subdomain (".blob.example.com");
	// other entries must match exactly.
	TrustedAudioHosts []string `yaml:"trusted_audio_hosts"`

	// MaxAudioBytes caps uploaded and fetched audio payloads. Default 25 MiB.
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`
}

// FallbackPolicy is the ordered provider choice for one transcription attempt.
type FallbackPolicy struct {
	// Primary is tried first.
	Primary string `yaml:"primary"`

	// Secondary is tried when the primary is skipped or fails.
	Secondary string `yaml:"secondary"`
}

// Candidates returns the ordered, de-duplicated, non-empty provider list.
func (p FallbackPolicy) Candidates() []string {
	var out []string
	for _, name := range []string{p.Primary, p.Secondary} {
		if name == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == name {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, name)
		}
	}
	return out
}

// STTProviderEntry configures a single STT provider.
type STTProviderEntry struct {
	// Enabled is the operator kill switch. When nil the provider-specific
	// default applies (elevenlabs and deepgram on, assemblyai off).
	Enabled *bool `yaml:"enabled"`

	// APIKey is the provider credential. Supports ${ENV} expansion.
	APIKey string `yaml:"api_key"`

	// Model overrides the provider's default model id.
	Model string `yaml:"model"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`
}

// STTConfig holds the fallback policy and per-provider settings.
type STTConfig struct {
	Policy     FallbackPolicy   `yaml:"policy"`
	ElevenLabs STTProviderEntry `yaml:"elevenlabs"`
	Deepgram   STTProviderEntry `yaml:"deepgram"`
	AssemblyAI STTProviderEntry `yaml:"assemblyai"`
}

// Entry returns the configuration block for the named provider.
func (c STTConfig) Entry(name string) (STTProviderEntry, bool) {
	switch name {
	case ProviderElevenLabs:
		return c.ElevenLabs, true
	case ProviderDeepgram:
		return c.Deepgram, true
	case ProviderAssemblyAI:
		return c.AssemblyAI, true
	}
	return STTProviderEntry{}, false
}

// Status derives the tri-state availability of the named provider from its
// kill switch and credential. Unknown providers are reported disabled.
func (c STTConfig) Status(name string) ProviderStatus {
	entry, ok := c.Entry(name)
	if !ok {
		return StatusDisabled
	}
	enabled := defaultEnabled[name]
	if entry.Enabled != nil {
		enabled = *entry.Enabled
	}
	switch {
	case !enabled:
		return StatusDisabled
	case entry.APIKey == "":
		return StatusUnconfigured
	default:
		return StatusReady
	}
}

// SynthesisConfig configures the artifact synthesis model.
type SynthesisConfig struct {
	// Backend selects the LLM client implementation: "openai" (native SDK) or
	// "anyllm" (multi-backend, supports provider-prefixed model ids). Empty
	// means no model is configured and synthesis runs in heuristic mode.
	Backend string `yaml:"backend"`

	// APIKey is the model credential. Supports ${ENV} expansion.
	APIKey string `yaml:"api_key"`

	// Model is the primary model id.
	Model string `yaml:"model"`

	// FallbackModels are tried in order when the primary model fails.
	FallbackModels []string `yaml:"fallback_models"`

	// MaxTokens bounds the completion size. Default 2048.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature, TopP, and Seed are optional decode controls. Nil means
	// provider default.
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	Seed        *int64   `yaml:"seed"`

	// TranscriptCharLimit hard-truncates the transcript placed in the prompt.
	// Default 8000.
	TranscriptCharLimit int `yaml:"transcript_char_limit"`

	// ContextTokenBudget bounds the packed library context. Default 2000.
	ContextTokenBudget int `yaml:"context_token_budget"`
}

// GuardrailConfig holds the synthesis cost thresholds in US dollars.
type GuardrailConfig struct {
	// WarnUSD logs a warning when a single synthesis costs strictly more.
	WarnUSD float64 `yaml:"warn_usd"`

	// HardCapUSD logs an error when a single synthesis costs strictly more.
	// A cost exactly equal to the hard cap stays in the warn tier.
	HardCapUSD float64 `yaml:"hard_cap_usd"`
}

// StoreConfig configures the PostgreSQL document store.
type StoreConfig struct {
	// PostgresDSN is the connection string. Supports ${ENV} expansion.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions must match the embedding model output size.
	// Default 1536.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// BlobConfig configures the audio blob service holding uploaded recordings.
type BlobConfig struct {
	// BaseURL is the blob service endpoint. Stored references resolve to
	// URLs under it, so its host must appear in server.trusted_audio_hosts.
	BaseURL string `yaml:"base_url"`

	// AuthToken is an optional bearer token for blob writes. Supports ${ENV}
	// expansion.
	AuthToken string `yaml:"auth_token"`
}

// EmbeddingsConfig configures optional semantic note ranking. When APIKey is
// empty, note ranking falls back to recency ordering.
type EmbeddingsConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}
