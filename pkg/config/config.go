package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	LogFormat   string           `mapstructure:"log_format"`
	Server      ServerConfig     `mapstructure:"server"`
	Vendors     VendorsConfig    `mapstructure:"vendors"`
	Transports  TransportsConfig `mapstructure:"transports"`
	STT         STTConfig        `mapstructure:"stt"`
	Turn        TurnConfig       `mapstructure:"turn"`
	Audio       AudioConfig      `mapstructure:"audio"`
	Records     RecordsConfig    `mapstructure:"records"`
	Privacy     PrivacyConfig    `mapstructure:"privacy"`
	Greeting    GreetingConfig   `mapstructure:"greeting"`
	Agents      []AgentConfig    `mapstructure:"agents"`
}

type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	PublicHost string `mapstructure:"public_host"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
	LLM VendorConfig `mapstructure:"llm"`
	// TTSFallback, when configured, gets one retry after the primary
	// synthesizer fails mid-call.
	TTSFallback VendorConfig `mapstructure:"tts_fallback"`
}

type TransportsConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type STTConfig struct {
	ForwardInterim bool `mapstructure:"forward_interim"`
}

type TurnConfig struct {
	SilenceTimeoutMS       int  `mapstructure:"silence_timeout_ms"`
	SignificanceBytes      int  `mapstructure:"significance_bytes"`
	InterruptOnSpeechStart bool `mapstructure:"interrupt_on_speech_start"`
}

type AudioConfig struct {
	FallbackSampleRate int    `mapstructure:"fallback_sample_rate"`
	FallbackChannels   int    `mapstructure:"fallback_channels"`
	FrameBytes         int    `mapstructure:"frame_bytes"`
	FramePaceMS        int    `mapstructure:"frame_pace_ms"`
	FFmpegPath         string `mapstructure:"ffmpeg_path"`
}

type RecordsConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	// AudioDir, when set, saves a WAV of the agent side of each call.
	AudioDir string `mapstructure:"audio_dir"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type GreetingConfig struct {
	Text       string            `mapstructure:"text"`
	ByLanguage map[string]string `mapstructure:"by_language"`
}

type AgentConfig struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Persona  string `mapstructure:"persona"`
	Style    string `mapstructure:"style"`
	Language string `mapstructure:"language"`
	Greeting string `mapstructure:"greeting"`
	Default  bool   `mapstructure:"default"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("stt.forward_interim", true)
	v.SetDefault("turn.silence_timeout_ms", 1000)
	v.SetDefault("turn.significance_bytes", 10)
	v.SetDefault("turn.interrupt_on_speech_start", true)
	v.SetDefault("audio.fallback_sample_rate", 24000)
	v.SetDefault("audio.fallback_channels", 1)
	v.SetDefault("audio.frame_bytes", 160)
	v.SetDefault("audio.frame_pace_ms", 20)
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("records.driver", "none")
	v.SetDefault("records.path", "wicara.db")
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transports.Provider) == "" {
		return fmt.Errorf("transports.provider is required")
	}
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	if c.Turn.SilenceTimeoutMS < 0 {
		return fmt.Errorf("turn.silence_timeout_ms must be >= 0")
	}
	if c.Audio.FrameBytes <= 0 {
		return fmt.Errorf("audio.frame_bytes must be > 0")
	}
	if c.Audio.FallbackSampleRate <= 0 {
		return fmt.Errorf("audio.fallback_sample_rate must be > 0")
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return fmt.Errorf("agents[].id is required")
		}
		if seen[id] {
			return fmt.Errorf("duplicate agent id %q", id)
		}
		seen[id] = true
	}
	return nil
}

// DefaultAgent returns the agent flagged default, or the first one.
func (c *Config) DefaultAgent() (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.Default {
			return a, true
		}
	}
	if len(c.Agents) > 0 {
		return c.Agents[0], true
	}
	return AgentConfig{}, false
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.TTSFallback.Settings = expandSettings(cfg.Vendors.TTSFallback.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Transports.Settings = expandSettings(cfg.Transports.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
