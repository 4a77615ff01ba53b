package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load retrieves the studio configuration from environment variables and validates it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		ListenAddr: DefaultListenAddr,
		MockDelay:  DefaultMockDelay,
	}

	if raw, ok := l.Lookup("STUDIO_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "ELEVENLABS_API_KEY", &cfg.APIKey)
	overrideString(l.Lookup, "ELEVENLABS_BASE_URL", &cfg.BaseURL)
	overrideString(l.Lookup, "STUDIO_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "STUDIO_GRPC_LISTEN_ADDR", &cfg.GRPCListenAddr)
	overrideString(l.Lookup, "STUDIO_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "STUDIO_STATIC_DIR", &cfg.StaticDir)
	overrideString(l.Lookup, "NODE_ENV", &cfg.Environment)
	overrideString(l.Lookup, "STUDIO_ENV", &cfg.Environment)

	if err := overrideBool(l.Lookup, "STUDIO_USE_STUB_SAMPLE", &cfg.UseStubSample); err != nil {
		return Config{}, err
	}
	if err := overrideMillis(l.Lookup, "STUDIO_MOCK_DELAY_MS", &cfg.MockDelay); err != nil {
		return Config{}, err
	}

	// Managed hosting is signalled the way the hosting platform does it.
	if v, ok := l.Lookup("VERCEL"); ok && strings.TrimSpace(v) == "1" {
		cfg.Managed = true
	}
	if cfg.Managed {
		if port, ok := l.Lookup("PORT"); ok && strings.TrimSpace(port) != "" {
			cfg.ListenAddr = net.JoinHostPort("0.0.0.0", strings.TrimSpace(port))
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		ListenAddr     string `json:"listen_addr"`
		GRPCListenAddr string `json:"grpc_listen_addr"`
		APIKey         string `json:"api_key"`
		BaseURL        string `json:"base_url"`
		VoiceID        string `json:"voice_id"`
		Model          string `json:"model"`
		LogLevel       string `json:"log_level"`
		Environment    string `json:"environment"`
		Managed        *bool  `json:"managed"`
		StaticDir      string `json:"static_dir"`
		UseStubSample  *bool  `json:"use_stub_sample"`
		SampleURL      string `json:"sample_url"`
		MockDelayMS    *int   `json:"mock_delay_ms"`
		ListTimeoutMS  *int   `json:"list_timeout_ms"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode STUDIO_CONFIG: %w", err)
	}
	if payload.ListenAddr != "" {
		cfg.ListenAddr = payload.ListenAddr
	}
	if payload.GRPCListenAddr != "" {
		cfg.GRPCListenAddr = payload.GRPCListenAddr
	}
	if payload.APIKey != "" {
		cfg.APIKey = payload.APIKey
	}
	if payload.BaseURL != "" {
		cfg.BaseURL = payload.BaseURL
	}
	if payload.VoiceID != "" {
		cfg.VoiceID = payload.VoiceID
	}
	if payload.Model != "" {
		cfg.Model = payload.Model
	}
	if payload.LogLevel != "" {
		cfg.LogLevel = payload.LogLevel
	}
	if payload.Environment != "" {
		cfg.Environment = payload.Environment
	}
	if payload.Managed != nil {
		cfg.Managed = *payload.Managed
	}
	if payload.StaticDir != "" {
		cfg.StaticDir = payload.StaticDir
	}
	if payload.UseStubSample != nil {
		cfg.UseStubSample = *payload.UseStubSample
	}
	if payload.SampleURL != "" {
		cfg.SampleURL = payload.SampleURL
	}
	if payload.MockDelayMS != nil {
		cfg.MockDelay = time.Duration(*payload.MockDelayMS) * time.Millisecond
	}
	if payload.ListTimeoutMS != nil {
		cfg.ListTimeout = time.Duration(*payload.ListTimeoutMS) * time.Millisecond
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: invalid bool %q", key, value)
	}
	*target = b
	return nil
}

func overrideMillis(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	ms, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: invalid integer %q", key, value)
	}
	*target = time.Duration(ms) * time.Millisecond
	return nil
}
