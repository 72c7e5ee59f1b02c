package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/wicara-ai/wicara/pkg/adapters/stt"
	"github.com/wicara-ai/wicara/pkg/adapters/tts"
	"github.com/wicara-ai/wicara/pkg/agents"
	"github.com/wicara-ai/wicara/pkg/audio"
	"github.com/wicara-ai/wicara/pkg/config"
	"github.com/wicara-ai/wicara/pkg/frames"
	"github.com/wicara-ai/wicara/pkg/llm"
	"github.com/wicara-ai/wicara/pkg/logging"
	"github.com/wicara-ai/wicara/pkg/metrics"
	"github.com/wicara-ai/wicara/pkg/observers"
	"github.com/wicara-ai/wicara/pkg/records"
	"github.com/wicara-ai/wicara/pkg/redact"
	"github.com/wicara-ai/wicara/pkg/session"
	"github.com/wicara-ai/wicara/pkg/transports"
)

// Options override the pieces an Engine would otherwise build from
// configuration. Tests inject mock transports and providers here.
type Options struct {
	Providers *ProviderRegistry
	Transport transports.Transport
	Sink      records.Sink
	Observer  metrics.Observer
}

// Engine ties the transport to the session registry: it routes inbound
// frames to per-call sessions and owns startup and drain.
type Engine struct {
	cfg       config.Config
	registry  *session.Registry
	transport transports.Transport
	providers *ProviderRegistry
	agents    *agents.Store
	sink      records.Sink
	synth     tts.Synthesizer
	fallback  tts.Synthesizer
	gen       llm.Generator
	asyncObs  *metrics.AsyncObserver
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg config.Config, opts Options) (*Engine, error) {
	log := logging.Init(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	obs := opts.Observer
	if obs == nil {
		obs = observers.NewMultiObserver(
			observers.NewLatencyObserver(log),
			observers.NewLoggerObserver(log),
		)
	}
	asyncObs := metrics.NewAsyncObserver(obs, 2048)

	transport := opts.Transport
	if transport == nil {
		var err error
		transport, err = providers.BuildTransport(cfg)
		if err != nil {
			return nil, err
		}
	}

	sink := opts.Sink
	if sink == nil {
		var err error
		sink, err = buildSink(cfg)
		if err != nil {
			return nil, err
		}
	}

	synth, err := providers.BuildTTS(cfg)
	if err != nil {
		return nil, err
	}
	if obsAware, ok := synth.(interface{ SetObserver(metrics.Observer) }); ok {
		obsAware.SetObserver(asyncObs)
	}

	var fallback tts.Synthesizer
	if cfg.Vendors.TTSFallback.Provider != "" {
		fbCfg := cfg
		fbCfg.Vendors.TTS = cfg.Vendors.TTSFallback
		fallback, err = providers.BuildTTS(fbCfg)
		if err != nil {
			return nil, err
		}
	}

	gen, err := providers.BuildLLM(cfg)
	if err != nil {
		return nil, err
	}
	if obsAware, ok := gen.(interface{ SetObserver(metrics.Observer) }); ok {
		obsAware.SetObserver(asyncObs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:       cfg,
		registry:  session.NewRegistry(log),
		transport: transport,
		providers: providers,
		agents:    agents.NewStore(cfg.Agents),
		sink:      sink,
		synth:     synth,
		fallback:  fallback,
		gen:       gen,
		asyncObs:  asyncObs,
		log:       logging.NewComponentLogger(log, "engine"),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func buildSink(cfg config.Config) (records.Sink, error) {
	switch cfg.Records.Driver {
	case "sqlite":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return records.OpenSQLite(ctx, cfg.Records.Path)
	default:
		return records.NoopSink{}, nil
	}
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.transport.Start(ctx); err != nil {
		return err
	}
	go e.routeTransport()

	fields := []any{slog.String("transport", e.transport.Name())}
	if rr, ok := e.transport.(transports.ReadyReporter); ok {
		for k, v := range rr.ReadyFields() {
			fields = append(fields, slog.Any(k, v))
		}
	}
	e.log.Info("engine_ready", fields...)
	return nil
}

// Stop drains active calls and shuts everything down. Sessions get a
// bounded window to unwind before the process gives up on them.
func (e *Engine) Stop() error {
	_ = e.transport.Stop()
	e.registry.Drain("server_shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	_ = e.registry.WaitForEmpty(ctx)
	e.cancel()
	e.asyncObs.Close()
	err := e.sink.Close()
	e.log.Info("engine_stopped", slog.Int("active_calls", e.registry.Len()))
	return err
}

// Registry exposes the session registry, mainly for tests and
// operational endpoints.
func (e *Engine) Registry() *session.Registry { return e.registry }

// Dialer returns the transport's outbound dialer when it has one.
func (e *Engine) Dialer() (transports.OutboundDialer, bool) {
	d, ok := e.transport.(transports.OutboundDialer)
	return d, ok
}

// Hangup ends a call from our side when the transport supports it.
func (e *Engine) Hangup(ctx context.Context, callSID string) error {
	ender, ok := e.transport.(transports.CallEnder)
	if !ok {
		return nil
	}
	return ender.Hangup(ctx, callSID)
}

func (e *Engine) routeTransport() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case f, ok := <-e.transport.Recv():
			if !ok {
				return
			}
			e.route(f)
		}
	}
}

func (e *Engine) route(f frames.Frame) {
	meta := f.Meta()
	streamID := meta[frames.MetaStreamID]
	if streamID == "" {
		return
	}
	switch f.Kind() {
	case frames.KindSystem:
		sf := f.(frames.SystemFrame)
		switch sf.Name() {
		case frames.SystemCallStart:
			e.startCall(sf)
		case frames.SystemCallEnd:
			e.endCall(streamID, meta[frames.MetaCallEndReason])
		}
	case frames.KindAudio:
		sess, err := e.registry.Get(streamID)
		if err != nil {
			return
		}
		if err := sess.HandleAudio(f.(frames.AudioFrame)); err != nil {
			e.log.Warn("audio_forward_failed",
				slog.String("stream_id", streamID),
				slog.String("error", err.Error()))
		}
	case frames.KindControl:
		cf := f.(frames.ControlFrame)
		if cf.Code() != frames.ControlMark {
			return
		}
		sess, err := e.registry.Get(streamID)
		if err != nil {
			return
		}
		sess.HandleMark(meta[frames.MetaMarkName])
	}
}

func (e *Engine) startCall(sf frames.SystemFrame) {
	meta := sf.Meta()
	streamID := meta[frames.MetaStreamID]
	callSID := meta[frames.MetaCallSID]
	traceID := meta[frames.MetaTraceID]
	from := meta[frames.MetaFromNumber]

	agent, err := e.agents.Lookup(meta[frames.MetaAgentID])
	if err != nil {
		e.log.Warn("agent_lookup_failed",
			slog.String("agent_id", meta[frames.MetaAgentID]),
			slog.String("error", err.Error()))
		if def, ok := e.agents.Default(); ok {
			agent = def
		}
	}

	sttClient, err := e.providers.BuildSTT(e.cfg, stt.Config{
		StreamID:   streamID,
		CallSID:    callSID,
		TraceID:    traceID,
		SampleRate: audio.TelephonyRate,
		Encoding:   "mulaw",
		Language:   agent.Language,
		Interim:    e.cfg.STT.ForwardInterim,
	})
	if err != nil {
		e.log.Error("stt_build_failed", slog.String("error", err.Error()))
		e.hangupAsync(callSID)
		return
	}

	var recorder *audio.Recorder
	if e.cfg.Records.AudioDir != "" {
		recorder = audio.NewRecorder(e.cfg.Records.AudioDir, callSID)
	}

	sess, err := session.New(e.ctx, streamID, callSID, traceID, from, session.Config{
		SilenceTimeout:         time.Duration(e.cfg.Turn.SilenceTimeoutMS) * time.Millisecond,
		SignificanceBytes:      e.cfg.Turn.SignificanceBytes,
		InterruptOnSpeechStart: e.cfg.Turn.InterruptOnSpeechStart,
		ForwardInterim:         e.cfg.STT.ForwardInterim,
		FrameBytes:             e.cfg.Audio.FrameBytes,
		FramePace:              time.Duration(e.cfg.Audio.FramePaceMS) * time.Millisecond,
	}, session.Deps{
		STT:           sttClient,
		Synth:         e.synth,
		FallbackSynth: e.fallback,
		Generator:     e.gen,
		Transcoder: audio.NewTranscoder(audio.TranscoderConfig{
			FallbackSampleRate: e.cfg.Audio.FallbackSampleRate,
			FallbackChannels:   e.cfg.Audio.FallbackChannels,
			FFmpegPath:         e.cfg.Audio.FFmpegPath,
		}, e.log, e.asyncObs),
		Out:      transportEmitter{e.transport},
		Observer: e.asyncObs,
		Recorder: recorder,
		Agent:    agent,
	})
	if err != nil {
		e.log.Error("session_create_failed",
			slog.String("stream_id", streamID),
			slog.String("error", err.Error()))
		e.hangupAsync(callSID)
		return
	}

	if err := e.registry.Add(sess); err != nil {
		e.log.Warn("session_rejected",
			slog.String("stream_id", streamID),
			slog.String("error", err.Error()))
		sess.Close("rejected")
		return
	}

	if text := e.greetingFor(agent); text != "" {
		sess.Say(text)
	}
}

func (e *Engine) endCall(streamID, reason string) {
	sess, err := e.registry.Get(streamID)
	if err != nil {
		return
	}
	// Remove closes the session and drains its loop, so the snapshot
	// below includes any reply that was still settling at hangup.
	e.registry.Remove(streamID, reason)
	rec := sess.Record()
	rec.EndReason = reason

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.sink.SaveCall(ctx, rec); err != nil {
			e.log.Warn("call_record_save_failed",
				slog.String("call_sid", rec.CallSID),
				slog.String("error", err.Error()))
		}
	}()
}

func (e *Engine) greetingFor(agent agents.Agent) string {
	if agent.Greeting != "" {
		return agent.Greeting
	}
	if agent.Language != "" {
		if text, ok := e.cfg.Greeting.ByLanguage[agent.Language]; ok {
			return text
		}
	}
	return e.cfg.Greeting.Text
}

// hangupAsync completes the call from our side after an unrecoverable
// setup failure, so the caller is not left on a dead line.
func (e *Engine) hangupAsync(callSID string) {
	if callSID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Hangup(ctx, callSID); err != nil {
			e.log.Warn("hangup_failed",
				slog.String("call_sid", callSID),
				slog.String("error", err.Error()))
		}
	}()
}

// transportEmitter adapts the transport's Send to the session's
// frame sink.
type transportEmitter struct {
	t transports.Transport
}

func (te transportEmitter) Emit(f frames.Frame) error { return te.t.Send(f) }
