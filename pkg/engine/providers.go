package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/wicara-ai/wicara/pkg/adapters/stt"
	"github.com/wicara-ai/wicara/pkg/adapters/tts"
	"github.com/wicara-ai/wicara/pkg/config"
	"github.com/wicara-ai/wicara/pkg/configutil"
	"github.com/wicara-ai/wicara/pkg/llm"
	"github.com/wicara-ai/wicara/pkg/providers/deepgram"
	"github.com/wicara-ai/wicara/pkg/providers/elevenlabs"
	"github.com/wicara-ai/wicara/pkg/providers/mock"
	"github.com/wicara-ai/wicara/pkg/providers/openai"
	"github.com/wicara-ai/wicara/pkg/resilience"
	"github.com/wicara-ai/wicara/pkg/transports"
	"github.com/wicara-ai/wicara/pkg/transports/twilio"
)

// STTFactory builds one recognizer per call; recognizers hold a live
// vendor connection and cannot be shared.
type STTFactory func(cfg config.Config, sc stt.Config) (stt.StreamingSTT, error)

// TTSFactory and LLMFactory build process-wide singletons.
type TTSFactory func(cfg config.Config) (tts.Synthesizer, error)
type LLMFactory func(cfg config.Config) (llm.Generator, error)
type TransportFactory func(cfg config.Config) (transports.Transport, error)

// ProviderRegistry resolves vendor names from configuration to
// concrete adapters.
type ProviderRegistry struct {
	stt       map[string]STTFactory
	tts       map[string]TTSFactory
	llm       map[string]LLMFactory
	transport map[string]TransportFactory
}

func NewProviderRegistry() *ProviderRegistry {
	r := &ProviderRegistry{
		stt:       make(map[string]STTFactory),
		tts:       make(map[string]TTSFactory),
		llm:       make(map[string]LLMFactory),
		transport: make(map[string]TransportFactory),
	}
	registerDefaults(r)
	return r
}

func (r *ProviderRegistry) RegisterSTT(name string, f STTFactory) {
	r.stt[normalize(name)] = f
}

func (r *ProviderRegistry) RegisterTTS(name string, f TTSFactory) {
	r.tts[normalize(name)] = f
}

func (r *ProviderRegistry) RegisterLLM(name string, f LLMFactory) {
	r.llm[normalize(name)] = f
}

func (r *ProviderRegistry) RegisterTransport(name string, f TransportFactory) {
	r.transport[normalize(name)] = f
}

func (r *ProviderRegistry) BuildSTT(cfg config.Config, sc stt.Config) (stt.StreamingSTT, error) {
	f := r.stt[normalize(cfg.Vendors.STT.Provider)]
	if f == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", cfg.Vendors.STT.Provider)
	}
	return f(cfg, sc)
}

func (r *ProviderRegistry) BuildTTS(cfg config.Config) (tts.Synthesizer, error) {
	f := r.tts[normalize(cfg.Vendors.TTS.Provider)]
	if f == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", cfg.Vendors.TTS.Provider)
	}
	return f(cfg)
}

func (r *ProviderRegistry) BuildLLM(cfg config.Config) (llm.Generator, error) {
	f := r.llm[normalize(cfg.Vendors.LLM.Provider)]
	if f == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", cfg.Vendors.LLM.Provider)
	}
	return f(cfg)
}

func (r *ProviderRegistry) BuildTransport(cfg config.Config) (transports.Transport, error) {
	f := r.transport[normalize(cfg.Transports.Provider)]
	if f == nil {
		return nil, fmt.Errorf("transport not registered: %s", cfg.Transports.Provider)
	}
	return f(cfg)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type deepgramSettings struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	UtteranceEndMS int    `mapstructure:"utterance_end_ms"`
	VADEvents      bool   `mapstructure:"vad_events"`
}

type elevenLabsSettings struct {
	APIKey       string `mapstructure:"api_key"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
	BaseURL      string `mapstructure:"base_url"`
}

type openAISettings struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

func registerDefaults(r *ProviderRegistry) {
	r.RegisterSTT("deepgram", func(cfg config.Config, sc stt.Config) (stt.StreamingSTT, error) {
		var settings deepgramSettings
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.New(deepgram.Config{
			APIKey:         settings.APIKey,
			Model:          settings.Model,
			Language:       settings.Language,
			SampleRate:     sc.SampleRate,
			Encoding:       sc.Encoding,
			Interim:        sc.Interim,
			VADEvents:      settings.VADEvents,
			UtteranceEndMS: settings.UtteranceEndMS,
			StreamID:       sc.StreamID,
			CallSID:        sc.CallSID,
			TraceID:        sc.TraceID,
		}), nil
	})

	r.RegisterSTT("mock", func(cfg config.Config, sc stt.Config) (stt.StreamingSTT, error) {
		return mock.NewSTT(mock.STTConfig{
			StreamID:    sc.StreamID,
			CallSID:     sc.CallSID,
			TraceID:     sc.TraceID,
			EmitInterim: sc.Interim,
		}), nil
	})

	r.RegisterTTS("elevenlabs", func(cfg config.Config) (tts.Synthesizer, error) {
		var settings elevenLabsSettings
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.tts.settings.api_key"); err != nil {
			return nil, err
		}
		synth := elevenlabs.New(elevenlabs.Config{
			APIKey:       settings.APIKey,
			VoiceID:      settings.VoiceID,
			ModelID:      settings.ModelID,
			OutputFormat: settings.OutputFormat,
			BaseURL:      settings.BaseURL,
		})
		breaker := resilience.NewCircuitBreaker("elevenlabs", 3, 30*time.Second)
		return tts.NewBreakerSynthesizer(synth, breaker), nil
	})

	r.RegisterTTS("mock", func(cfg config.Config) (tts.Synthesizer, error) {
		return mock.NewTTS(mock.TTSConfig{}), nil
	})

	r.RegisterLLM("openai", func(cfg config.Config) (llm.Generator, error) {
		var settings openAISettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, err
		}
		gen := openai.NewGenerator(settings.APIKey, settings.Model)
		retried := llm.NewRetryGenerator(gen, llm.RetryConfig{MaxAttempts: settings.MaxAttempts})
		breaker := resilience.NewCircuitBreaker("openai", 5, 30*time.Second)
		return llm.NewBreakerGenerator(retried, breaker), nil
	})

	r.RegisterLLM("mock", func(cfg config.Config) (llm.Generator, error) {
		return mock.NewLLM(mock.LLMConfig{}), nil
	})

	r.RegisterTransport("twilio", func(cfg config.Config) (transports.Transport, error) {
		var tc twilio.Config
		if err := configutil.DecodeSettings(cfg.Transports.Settings, &tc); err != nil {
			return nil, err
		}
		if tc.ServerAddr == "" {
			tc.ServerAddr = cfg.Server.Addr
		}
		if err := configutil.RequireString(tc.AuthToken, "transports.settings.auth_token"); err != nil {
			return nil, err
		}
		return twilio.New(tc), nil
	})
}
