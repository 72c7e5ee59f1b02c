package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wicara-ai/wicara/pkg/adapters/stt"
	"github.com/wicara-ai/wicara/pkg/adapters/tts"
	"github.com/wicara-ai/wicara/pkg/agents"
	"github.com/wicara-ai/wicara/pkg/audio"
	"github.com/wicara-ai/wicara/pkg/errorsx"
	"github.com/wicara-ai/wicara/pkg/frames"
	"github.com/wicara-ai/wicara/pkg/llm"
	"github.com/wicara-ai/wicara/pkg/logging"
	"github.com/wicara-ai/wicara/pkg/metrics"
	"github.com/wicara-ai/wicara/pkg/records"
	"github.com/wicara-ai/wicara/pkg/redact"
	"github.com/wicara-ai/wicara/pkg/turn"
)

// Emitter delivers frames to the transport.
type Emitter interface {
	Emit(frames.Frame) error
}

// apologyText goes out when generation fails, so the caller never
// hears dead air after speaking.
const apologyText = "Sorry, I'm having trouble answering right now. Could you say that again?"

// Config carries per-session tuning.
type Config struct {
	// SilenceTimeout bounds the fallback timer started by the
	// recognizer's end-of-speech marker. It fires only when no final
	// transcript arrived for the utterance.
	SilenceTimeout time.Duration
	// SignificanceBytes is the minimum interim transcript length that
	// counts as real speech for barge-in.
	SignificanceBytes int
	// InterruptOnSpeechStart trips barge-in on recognizer VAD onset
	// events, before any transcript text arrives.
	InterruptOnSpeechStart bool
	// ForwardInterim controls whether interim transcripts take part in
	// barge-in at all.
	ForwardInterim bool
	// FrameBytes is the outbound frame size on the wire.
	FrameBytes int
	// FramePace is the inter-frame send interval.
	FramePace time.Duration
	// MaxHistory caps the conversation turns sent to the generator.
	MaxHistory int
}

func (c Config) withDefaults() Config {
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = time.Second
	}
	if c.SignificanceBytes <= 0 {
		c.SignificanceBytes = 10
	}
	if c.FrameBytes <= 0 {
		c.FrameBytes = audio.DefaultFrameBytes
	}
	if c.FramePace < 0 {
		c.FramePace = 0
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 12
	}
	return c
}

// Deps are the collaborators one session needs.
type Deps struct {
	STT       stt.StreamingSTT
	Synth     tts.Synthesizer
	Generator llm.Generator
	// FallbackSynth, when set, gets one retry after the primary
	// synthesizer fails.
	FallbackSynth tts.Synthesizer
	Transcoder    *audio.Transcoder
	Out           Emitter
	Observer      metrics.Observer
	Recorder      *audio.Recorder
	Agent         agents.Agent
}

// Session owns one call: it consumes recognizer events, decides when
// the caller has finished a thought, runs the reply cycle and streams
// the result back out. A single goroutine (run) serializes all state;
// everything else posts events to it.
type Session struct {
	cfg      Config
	streamID string
	callSID  string
	traceID  string
	from     string

	sttClient  stt.StreamingSTT
	synth      tts.Synthesizer
	fallback   tts.Synthesizer
	gen        llm.Generator
	transcoder *audio.Transcoder
	out        Emitter
	obs        metrics.Observer
	recorder   *audio.Recorder
	agent      agents.Agent
	log        *slog.Logger
	pts        *frames.PTSGen

	conv *turn.Conversation
	intr *turn.Interrupter

	ctx    context.Context
	cancel context.CancelFunc
	events chan event
	done   chan struct{}

	closeOnce sync.Once

	audioInWindow atomic.Bool

	// Owned by the run goroutine.
	history     []llm.Turn
	lastInterim string
	silence     *time.Timer
	replySeq    int
	replyActive bool
	queuedRegen bool
	replyCancel context.CancelFunc
	awaitMark   string

	mu         sync.Mutex
	transcript []records.Utterance
	startedAt  time.Time
	endReason  string
}

type eventKind int

const (
	evTranscript eventKind = iota
	evControl
	evTimer
	evMark
	evSpeaking
	evReplyDone
	evSay
)

type event struct {
	kind    eventKind
	text    string
	isFinal bool
	code    frames.ControlCode
	mark    string
	seq     int
	sent    int
	aborted bool
	err     error
}

// New creates a session and starts its event loop and recognizer.
func New(ctx context.Context, streamID, callSID, traceID, from string, cfg Config, deps Deps) (*Session, error) {
	cfg = cfg.withDefaults()
	if deps.Observer == nil {
		deps.Observer = metrics.NoopObserver{}
	}
	sctx, cancel := context.WithCancel(ctx)
	pts := frames.NewPTSGen()
	s := &Session{
		cfg:        cfg,
		streamID:   streamID,
		callSID:    callSID,
		traceID:    traceID,
		from:       from,
		sttClient:  deps.STT,
		synth:      deps.Synth,
		fallback:   deps.FallbackSynth,
		gen:        deps.Generator,
		transcoder: deps.Transcoder,
		out:        deps.Out,
		obs:        deps.Observer,
		recorder:   deps.Recorder,
		agent:      deps.Agent,
		log: logging.NewComponentLogger(slog.Default(), "session").With(
			slog.String("stream_id", streamID),
			slog.String("call_sid", callSID),
		),
		pts:       pts,
		conv:      turn.NewConversation(),
		ctx:       sctx,
		cancel:    cancel,
		events:    make(chan event, 64),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	s.intr = turn.NewInterrupter(streamID, pts, deps.Out)

	if err := s.sttClient.Start(sctx); err != nil {
		cancel()
		return nil, err
	}

	s.silence = time.NewTimer(time.Hour)
	s.stopSilence()

	go s.run()
	s.log.Info("session_started", slog.String("agent_id", s.agent.ID))
	return s, nil
}

func (s *Session) StreamID() string { return s.streamID }
func (s *Session) CallSID() string  { return s.callSID }

// HandleAudio forwards caller audio into the recognizer.
func (s *Session) HandleAudio(f frames.AudioFrame) error {
	if s.audioInWindow.CompareAndSwap(false, true) {
		s.obs.RecordEvent(metrics.Event(metrics.EventAudioIn, s.tags()))
	}
	return s.sttClient.SendAudio(f)
}

// HandleMark is called when the transport confirms playback of a mark.
func (s *Session) HandleMark(name string) {
	s.post(event{kind: evMark, mark: name})
}

// Say speaks a fixed line, used for greetings. It goes through the
// normal reply cycle minus generation.
func (s *Session) Say(text string) {
	s.post(event{kind: evSay, text: text})
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.endReason = reason
		s.mu.Unlock()
		s.cancel()
		_ = s.sttClient.Close()
		if s.recorder != nil {
			if err := s.recorder.Close(); err != nil {
				s.log.Warn("artifact_close_failed", slog.String("error", err.Error()))
			}
		}
		<-s.done
		s.log.Info("session_closed", slog.String("reason", reason))
	})
}

// Record snapshots the call for persistence.
func (s *Session) Record() records.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	transcript := make([]records.Utterance, len(s.transcript))
	copy(transcript, s.transcript)
	return records.CallRecord{
		CallSID:    s.callSID,
		StreamID:   s.streamID,
		AgentID:    s.agent.ID,
		FromNumber: s.from,
		StartedAt:  s.startedAt,
		EndedAt:    time.Now(),
		EndReason:  s.endReason,
		Transcript: transcript,
	}
}

func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) tags() map[string]string {
	return map[string]string{
		frames.MetaCallSID: s.callSID,
		frames.MetaTraceID: s.traceID,
	}
}

func (s *Session) run() {
	defer close(s.done)
	results := s.sttClient.Results()
	for {
		select {
		case <-s.ctx.Done():
			if s.replyCancel != nil {
				s.replyCancel()
			}
			s.drainEvents()
			return
		case f, ok := <-results:
			if !ok {
				if s.ctx.Err() == nil {
					s.log.Warn("recognizer_stream_closed")
				}
				results = nil
				continue
			}
			s.onRecognizerFrame(f)
		case ev := <-s.events:
			s.onEvent(ev)
		case <-s.silence.C:
			s.onEvent(event{kind: evTimer})
		}
	}
}

// drainEvents consumes whatever is already queued at teardown so a
// reply that finished while the call was hanging up still lands in
// the transcript.
func (s *Session) drainEvents() {
	for {
		select {
		case ev := <-s.events:
			if ev.kind == evReplyDone && ev.seq == s.replySeq && ev.text != "" {
				s.appendTranscript(llm.RoleAssistant, ev.text)
			}
		default:
			return
		}
	}
}

func (s *Session) onRecognizerFrame(f frames.Frame) {
	switch f.Kind() {
	case frames.KindText:
		tf := f.(frames.TextFrame)
		s.onEvent(event{kind: evTranscript, text: tf.Text(), isFinal: tf.IsFinal()})
	case frames.KindControl:
		cf := f.(frames.ControlFrame)
		s.onEvent(event{kind: evControl, code: cf.Code()})
	}
}

func (s *Session) onEvent(ev event) {
	switch ev.kind {
	case evTranscript:
		if ev.isFinal {
			s.onFinalTranscript(ev.text)
		} else {
			s.onInterimTranscript(ev.text)
		}
	case evControl:
		s.onControl(ev.code)
	case evTimer:
		s.onSilenceTimer()
	case evMark:
		s.onMark(ev.mark)
	case evSpeaking:
		s.onSpeaking(ev.seq)
	case evReplyDone:
		s.onReplyDone(ev)
	case evSay:
		s.onSay(ev.text)
	}
}

func (s *Session) onInterimTranscript(text string) {
	if !s.cfg.ForwardInterim {
		return
	}
	s.stopSilence()
	s.lastInterim = text
	if len(strings.TrimSpace(text)) < s.cfg.SignificanceBytes {
		return
	}
	s.tripBargeIn("interim_transcript")
}

func (s *Session) onFinalTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.obs.RecordEvent(metrics.Event(metrics.EventSTTFinal, s.tags()))
	s.log.Debug("final_transcript", slog.Int("chars", len(text)))
	s.stopSilence()
	s.lastInterim = ""
	s.tripBargeIn("final_transcript")
	s.commitUtterance(text)
}

func (s *Session) onControl(code frames.ControlCode) {
	switch code {
	case frames.ControlSpeechStart:
		s.stopSilence()
		if s.cfg.InterruptOnSpeechStart {
			s.tripBargeIn("speech_start")
		}
	case frames.ControlUtteranceEnd:
		// End-of-speech marker. The fallback timer catches utterances
		// the recognizer never finalizes.
		s.resetSilence()
	}
}

// onSilenceTimer fires only when no final transcript landed after the
// end-of-speech marker. If the recognizer left us with an interim,
// commit it rather than dropping the caller's words.
func (s *Session) onSilenceTimer() {
	s.obs.RecordEvent(metrics.Event(metrics.EventSilenceTimer, s.tags()))
	if text := strings.TrimSpace(s.lastInterim); text != "" {
		s.log.Info("silence_fallback_commit", slog.Int("chars", len(text)))
		s.lastInterim = ""
		s.commitUtterance(text)
		return
	}
	s.log.Debug("silence_timeout_idle")
}

// tripBargeIn fires the interrupter when the agent is speaking. The
// in-flight reply, if any, is cancelled; the conversation drops back
// to idle until the caller's new thought commits.
func (s *Session) tripBargeIn(reason string) {
	if !s.intr.Trip(reason) {
		return
	}
	s.obs.RecordEvent(metrics.Event(metrics.EventBargeIn, s.tags()))
	s.log.Info("barge_in", slog.String("reason", reason))
	if s.replyCancel != nil {
		s.replyCancel()
	}
	s.queuedRegen = false
	s.awaitMark = ""
	if s.conv.Phase() != turn.PhaseIdle {
		s.transition(turn.PhaseIdle, "barge_in")
	}
}

func (s *Session) commitUtterance(text string) {
	s.audioInWindow.Store(false)

	s.appendTranscript(llm.RoleUser, text)
	s.history = append(s.history, llm.Turn{Role: llm.RoleUser, Content: text})

	switch s.conv.Phase() {
	case turn.PhaseIdle:
		s.transition(turn.PhaseAwaitingReply, "utterance_committed")
		s.startReply("")
	case turn.PhaseAwaitingReply:
		// One reply in flight at a time. Cancel it and regenerate with
		// the longer context once it unwinds.
		if s.replyCancel != nil {
			s.replyCancel()
		}
		s.queuedRegen = true
	case turn.PhaseSpeaking:
		s.tripBargeIn("new_utterance")
		s.transition(turn.PhaseAwaitingReply, "utterance_committed")
		if s.replyActive {
			s.queuedRegen = true
		} else {
			s.startReply("")
		}
	}
}

func (s *Session) onSay(text string) {
	if s.conv.Phase() != turn.PhaseIdle || s.replyActive {
		return
	}
	s.transition(turn.PhaseAwaitingReply, "canned_reply")
	s.startReply(text)
}

// startReply launches the reply cycle. canned bypasses generation.
func (s *Session) startReply(canned string) {
	s.replySeq++
	seq := s.replySeq
	rctx, cancel := context.WithCancel(s.ctx)
	s.replyCancel = cancel
	s.replyActive = true
	s.queuedRegen = false
	s.intr.Settle()

	req := llm.Request{
		Turns:    s.historySnapshot(),
		Persona:  s.agent.Persona,
		Style:    s.agent.Style,
		Language: s.agent.Language,
	}
	go s.runReply(rctx, seq, req, canned)
}

func (s *Session) historySnapshot() []llm.Turn {
	turns := s.history
	if len(turns) > s.cfg.MaxHistory {
		turns = turns[len(turns)-s.cfg.MaxHistory:]
	}
	out := make([]llm.Turn, len(turns))
	copy(out, turns)
	return out
}

func (s *Session) runReply(ctx context.Context, seq int, req llm.Request, canned string) {
	text := canned
	if text == "" {
		resp, err := s.gen.Generate(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				s.post(event{kind: evReplyDone, seq: seq, aborted: true})
				return
			}
			// The caller spoke and expects an answer. Substitute the
			// apology instead of going silent.
			s.log.Error("generation_failed", slog.String("error", err.Error()))
			text = apologyText
		} else {
			text = resp.Text
			s.obs.RecordEvent(metrics.Event(metrics.EventLLMDone, s.tags()))
		}
	}
	if strings.TrimSpace(text) == "" {
		s.post(event{kind: evReplyDone, seq: seq})
		return
	}

	mulaw, err := s.renderSpeech(ctx, text)
	if err != nil {
		s.post(event{kind: evReplyDone, seq: seq, text: text, err: err})
		return
	}
	if ctx.Err() != nil {
		s.post(event{kind: evReplyDone, seq: seq, text: text, aborted: true})
		return
	}

	s.intr.Arm()
	s.post(event{kind: evSpeaking, seq: seq})
	s.obs.RecordEvent(metrics.Event(metrics.EventTTSFirstAudio, s.tags()))

	meta := map[string]string{
		frames.MetaStreamID: s.streamID,
		frames.MetaCallSID:  s.callSID,
		frames.MetaTraceID:  s.traceID,
		frames.MetaEncoding: "mulaw",
	}
	sent, err := audio.EmitFrames(mulaw, s.cfg.FrameBytes, s.cfg.FramePace,
		func() bool { return s.intr.Aborted() || ctx.Err() != nil },
		func(frame []byte) error {
			if s.recorder != nil {
				s.recorder.Append(frame)
			}
			af := frames.NewAudioFrame(s.streamID, s.pts.Next(s.streamID), frame, audio.TelephonyRate, 1, meta)
			if err := s.out.Emit(af); err != nil {
				// A closed transport ends the reply; anything else is
				// one lost frame.
				if errorsx.HasReason(err, errorsx.ReasonTransportClosed) {
					return err
				}
				s.log.Warn("frame_send_failed", slog.String("error", err.Error()))
			}
			return nil
		})

	aborted := s.intr.Aborted() || ctx.Err() != nil
	if err == nil && !aborted {
		markMeta := map[string]string{
			frames.MetaStreamID: s.streamID,
			frames.MetaMarkName: markName(seq),
		}
		err = s.out.Emit(frames.NewControlFrame(s.streamID, s.pts.Next(s.streamID), frames.ControlMark, markMeta))
	}
	s.post(event{kind: evReplyDone, seq: seq, text: text, sent: sent, aborted: aborted, err: err})
}

// renderSpeech synthesizes and transcodes a reply, retrying once on
// the fallback synthesizer when one is configured.
func (s *Session) renderSpeech(ctx context.Context, text string) ([]byte, error) {
	payload, err := s.synth.Synthesize(ctx, text)
	if err == nil {
		mulaw, terr := s.transcoder.ToTelephony(ctx, payload)
		if terr == nil {
			return mulaw, nil
		}
		err = terr
	}
	if s.fallback == nil || ctx.Err() != nil {
		return nil, err
	}
	s.log.Warn("synthesis_fallback", slog.String("error", err.Error()))
	payload, ferr := s.fallback.Synthesize(ctx, text)
	if ferr != nil {
		return nil, ferr
	}
	return s.transcoder.ToTelephony(ctx, payload)
}

func (s *Session) onSpeaking(seq int) {
	if seq != s.replySeq {
		return
	}
	if s.conv.Phase() == turn.PhaseAwaitingReply {
		s.transition(turn.PhaseSpeaking, "first_audio")
		s.awaitMark = markName(seq)
	}
}

func (s *Session) onReplyDone(ev event) {
	if ev.seq != s.replySeq {
		return
	}
	s.replyActive = false
	s.replyCancel = nil

	if ev.text != "" {
		s.appendTranscript(llm.RoleAssistant, ev.text)
		s.history = append(s.history, llm.Turn{Role: llm.RoleAssistant, Content: ev.text})
	}

	if ev.err != nil {
		s.log.Error("reply_failed", slog.String("error", ev.err.Error()))
	}

	if s.queuedRegen {
		s.queuedRegen = false
		if s.conv.Phase() == turn.PhaseIdle {
			s.transition(turn.PhaseAwaitingReply, "regenerate")
		}
		s.startReply("")
		return
	}

	if ev.err != nil || ev.aborted || ev.sent == 0 {
		s.intr.Settle()
		s.awaitMark = ""
		if s.conv.Phase() != turn.PhaseIdle {
			s.transition(turn.PhaseIdle, "reply_done")
		}
		return
	}
	// Frames are on the wire; playback completion arrives as a mark
	// echo from the transport.
	s.log.Debug("reply_sent", slog.Int("frames", ev.sent))
}

func (s *Session) onMark(name string) {
	if name == "" || name != s.awaitMark {
		return
	}
	s.awaitMark = ""
	s.intr.Settle()
	s.obs.RecordEvent(metrics.Event(metrics.EventReplyComplete, s.tags()))
	if s.conv.Phase() == turn.PhaseSpeaking {
		s.transition(turn.PhaseIdle, "playback_complete")
	}
}

func (s *Session) appendTranscript(role, text string) {
	s.mu.Lock()
	s.transcript = append(s.transcript, records.Utterance{
		Role: role,
		Text: redact.Text(text),
		At:   time.Now(),
	})
	s.mu.Unlock()
}

func (s *Session) transition(to turn.Phase, reason string) {
	if err := s.conv.Transition(to, reason); err != nil {
		s.log.Warn("phase_transition_rejected",
			slog.String("to", to.String()),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
	}
}

func (s *Session) resetSilence() {
	s.stopSilence()
	s.silence.Reset(s.cfg.SilenceTimeout)
}

func (s *Session) stopSilence() {
	if !s.silence.Stop() {
		select {
		case <-s.silence.C:
		default:
		}
	}
}

func markName(seq int) string {
	return fmt.Sprintf("reply-%d", seq)
}
