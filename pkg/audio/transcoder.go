package audio

import (
	"context"
	"log/slog"

	"github.com/wicara-ai/wicara/pkg/errorsx"
	"github.com/wicara-ai/wicara/pkg/metrics"
)

// TelephonyRate is the sample rate of the wire format.
const TelephonyRate = 8000

// TranscoderConfig carries the knobs for payload conversion.
type TranscoderConfig struct {
	// FallbackSampleRate and FallbackChannels describe payloads with no
	// recognizable container. Synthesis vendors that stream raw PCM
	// usually emit 24kHz mono s16le.
	FallbackSampleRate int
	FallbackChannels   int
	// FFmpegPath enables the external transcode path when non-empty.
	FFmpegPath string
}

// Transcoder converts synthesized vendor audio of any supported shape
// into raw 8kHz mono mu-law ready for framing.
type Transcoder struct {
	cfg TranscoderConfig
	log *slog.Logger
	obs metrics.Observer
}

func NewTranscoder(cfg TranscoderConfig, log *slog.Logger, obs metrics.Observer) *Transcoder {
	if cfg.FallbackSampleRate <= 0 {
		cfg.FallbackSampleRate = 24000
	}
	if cfg.FallbackChannels <= 0 {
		cfg.FallbackChannels = 1
	}
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Transcoder{cfg: cfg, log: log, obs: obs}
}

// ToTelephony decodes, downmixes, resamples and compands a payload.
// When the built-in decoders fail and ffmpeg is configured, the
// payload is retried through ffmpeg before giving up.
func (t *Transcoder) ToTelephony(ctx context.Context, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errorsx.New("empty audio payload", errorsx.ReasonCodecDetect)
	}

	format := DetectFormat(payload)
	pcm, err := t.decode(payload, format)
	if err != nil {
		if t.cfg.FFmpegPath == "" {
			return nil, errorsx.Wrap(err, errorsx.ReasonCodecEncode)
		}
		t.log.Warn("builtin_decode_failed", "format", string(format), "error", err)
		out, ferr := ffmpegTranscode(ctx, t.cfg.FFmpegPath, payload, TelephonyRate)
		if ferr != nil {
			return nil, errorsx.Wrap(ferr, errorsx.ReasonCodecTranscode)
		}
		return out, nil
	}

	pcm = DownmixMono(pcm)
	pcm = Resample(pcm, TelephonyRate)
	return EncodeMulaw(pcm.Samples), nil
}

func (t *Transcoder) decode(payload []byte, format Format) (PCM, error) {
	switch format {
	case FormatMP3:
		return DecodeMP3(payload)
	case FormatWAV:
		return DecodeWAV(payload)
	default:
		// No container header. Logged because a mis-sniffed rate is
		// audible as chipmunk or slow-motion speech.
		t.log.Info("raw_pcm_fallback",
			"sample_rate", t.cfg.FallbackSampleRate,
			"channels", t.cfg.FallbackChannels,
			"bytes", len(payload),
		)
		t.obs.RecordEvent(metrics.Event(metrics.EventCodecFallback, nil))
		return DecodeRawPCM(payload, t.cfg.FallbackSampleRate, t.cfg.FallbackChannels), nil
	}
}
