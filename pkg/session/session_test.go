package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wicara-ai/wicara/pkg/agents"
	"github.com/wicara-ai/wicara/pkg/audio"
	"github.com/wicara-ai/wicara/pkg/frames"
	"github.com/wicara-ai/wicara/pkg/llm"
	"github.com/wicara-ai/wicara/pkg/providers/mock"
	"github.com/wicara-ai/wicara/pkg/turn"
)

var errTestGeneration = errors.New("vendor unavailable")

// scriptableSTT lets tests push recognizer frames on demand.
type scriptableSTT struct {
	streamID string
	out      chan frames.Frame
	mu       sync.Mutex
	closed   bool
}

func newScriptableSTT(streamID string) *scriptableSTT {
	return &scriptableSTT{streamID: streamID, out: make(chan frames.Frame, 32)}
}

func (s *scriptableSTT) Name() string                        { return "scriptable_stt" }
func (s *scriptableSTT) Start(ctx context.Context) error     { return nil }
func (s *scriptableSTT) SendAudio(f frames.AudioFrame) error { return nil }
func (s *scriptableSTT) Results() <-chan frames.Frame        { return s.out }

func (s *scriptableSTT) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	return nil
}

func (s *scriptableSTT) pushFinal(text string) {
	s.out <- frames.NewTextFrame(s.streamID, time.Now().UnixNano(), text,
		map[string]string{frames.MetaIsFinal: "true"})
}

func (s *scriptableSTT) pushInterim(text string) {
	s.out <- frames.NewTextFrame(s.streamID, time.Now().UnixNano(), text,
		map[string]string{frames.MetaIsFinal: "false"})
}

func (s *scriptableSTT) pushControl(code frames.ControlCode) {
	s.out <- frames.NewControlFrame(s.streamID, time.Now().UnixNano(), code, nil)
}

// wireEmitter records everything sent out and, like a real transport,
// echoes outbound marks back as playback confirmations.
type wireEmitter struct {
	mu       sync.Mutex
	frames   []frames.Frame
	perFrame time.Duration
	onMark   func(name string)
}

func (w *wireEmitter) Emit(f frames.Frame) error {
	if w.perFrame > 0 && f.Kind() == frames.KindAudio {
		time.Sleep(w.perFrame)
	}
	w.mu.Lock()
	w.frames = append(w.frames, f)
	onMark := w.onMark
	w.mu.Unlock()
	if cf, ok := f.(frames.ControlFrame); ok && cf.Code() == frames.ControlMark && onMark != nil {
		go onMark(cf.Meta()[frames.MetaMarkName])
	}
	return nil
}

func (w *wireEmitter) count(pred func(frames.Frame) bool) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, f := range w.frames {
		if pred(f) {
			n++
		}
	}
	return n
}

func (w *wireEmitter) audioFrames() int {
	return w.count(func(f frames.Frame) bool { return f.Kind() == frames.KindAudio })
}

func (w *wireEmitter) clears() int {
	return w.count(func(f frames.Frame) bool {
		cf, ok := f.(frames.ControlFrame)
		return ok && cf.Code() == frames.ControlClear
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// rawPCM returns a headerless payload that takes the PCM fallback
// path through the transcoder. n is the sample count at 24kHz.
func rawPCM(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		buf[2*i] = byte(i)
		buf[2*i+1] = byte(i >> 6)
	}
	return buf
}

type testSession struct {
	s    *Session
	stt  *scriptableSTT
	wire *wireEmitter
	gen  *mock.Generator
	tts  *mock.Synthesizer
}

func newTestSession(t *testing.T, cfg Config, genCfg mock.LLMConfig, payload []byte, perFrame time.Duration) *testSession {
	t.Helper()
	stt := newScriptableSTT("MZtest")
	wire := &wireEmitter{perFrame: perFrame}
	gen := mock.NewLLM(genCfg)
	synth := mock.NewTTS(mock.TTSConfig{Payload: payload})
	deps := Deps{
		STT:        stt,
		Synth:      synth,
		Generator:  gen,
		Transcoder: audio.NewTranscoder(audio.TranscoderConfig{}, nil, nil),
		Out:        wire,
		Agent:      agents.Agent{ID: "default", Persona: "tester"},
	}
	s, err := New(context.Background(), "MZtest", "CAtest", "tr-test", "+15550001111", cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wire.mu.Lock()
	wire.onMark = s.HandleMark
	wire.mu.Unlock()
	t.Cleanup(func() { s.Close("test_done") })
	return &testSession{s: s, stt: stt, wire: wire, gen: gen, tts: synth}
}

func TestSessionReplyCycle(t *testing.T) {
	ts := newTestSession(t,
		Config{SilenceTimeout: 40 * time.Millisecond, ForwardInterim: true},
		mock.LLMConfig{Reply: "Hi there"},
		rawPCM(480), 0)

	ts.stt.pushFinal("hello")

	waitFor(t, 2*time.Second, func() bool { return ts.wire.audioFrames() > 0 })
	waitFor(t, 2*time.Second, func() bool { return ts.s.conv.Phase() == turn.PhaseIdle && ts.wire.count(func(f frames.Frame) bool {
		cf, ok := f.(frames.ControlFrame)
		return ok && cf.Code() == frames.ControlMark
	}) == 1 })

	reqs := ts.gen.Requests()
	if len(reqs) != 1 {
		t.Fatalf("generate calls = %d, want 1", len(reqs))
	}
	last := reqs[0].Turns[len(reqs[0].Turns)-1]
	if last.Role != llm.RoleUser || last.Content != "hello" {
		t.Fatalf("last turn = %+v", last)
	}

	rec := ts.s.Record()
	if len(rec.Transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(rec.Transcript))
	}
	if rec.Transcript[0].Role != llm.RoleUser || rec.Transcript[0].Text != "hello" {
		t.Fatalf("user utterance = %+v", rec.Transcript[0])
	}
	if rec.Transcript[1].Role != llm.RoleAssistant || rec.Transcript[1].Text != "Hi there" {
		t.Fatalf("assistant utterance = %+v", rec.Transcript[1])
	}
}

func TestBargeInEmitsSingleClear(t *testing.T) {
	// A long payload with frames throttled on the way out keeps the
	// agent talking long enough for the caller to cut in.
	ts := newTestSession(t,
		Config{SilenceTimeout: 30 * time.Millisecond, ForwardInterim: true, SignificanceBytes: 10},
		mock.LLMConfig{Reply: "a very long winded answer"},
		rawPCM(24000), 2*time.Millisecond)

	ts.stt.pushFinal("tell me everything")
	waitFor(t, 3*time.Second, func() bool { return ts.wire.audioFrames() > 2 })

	ts.stt.pushInterim("wait wait wait")
	ts.stt.pushInterim("wait wait wait wait")

	waitFor(t, 3*time.Second, func() bool { return ts.wire.clears() == 1 })
	waitFor(t, 3*time.Second, func() bool { return ts.s.conv.Phase() == turn.PhaseIdle })

	time.Sleep(50 * time.Millisecond)
	if n := ts.wire.clears(); n != 1 {
		t.Fatalf("clear frames = %d, want exactly 1", n)
	}
}

func TestSilenceTimerNoDoubleTrigger(t *testing.T) {
	ts := newTestSession(t,
		Config{SilenceTimeout: 40 * time.Millisecond, ForwardInterim: true},
		mock.LLMConfig{Reply: "right away"},
		rawPCM(480), 0)

	// Final transcript commits directly; the end-of-speech marker only
	// arms the fallback timer, which must not fire a second reply.
	ts.stt.pushFinal("book a table")
	ts.stt.pushControl(frames.ControlUtteranceEnd)

	waitFor(t, time.Second, func() bool { return len(ts.gen.Requests()) == 1 })
	time.Sleep(150 * time.Millisecond)
	if n := len(ts.gen.Requests()); n != 1 {
		t.Fatalf("generate calls = %d, want 1 after timer expires", n)
	}
}

func TestSilenceTimerCommitsDanglingInterim(t *testing.T) {
	ts := newTestSession(t,
		Config{SilenceTimeout: 40 * time.Millisecond, ForwardInterim: true},
		mock.LLMConfig{},
		rawPCM(480), 0)

	// The recognizer goes quiet without ever finalizing. The fallback
	// timer commits the last interim so the words are not lost.
	ts.stt.pushInterim("are you there")
	ts.stt.pushControl(frames.ControlUtteranceEnd)

	waitFor(t, 2*time.Second, func() bool { return len(ts.gen.Requests()) == 1 })
	req := ts.gen.Requests()[0]
	last := req.Turns[len(req.Turns)-1]
	if last.Content != "are you there" {
		t.Fatalf("fallback utterance = %q", last.Content)
	}
}

func TestGenerationFailureSpeaksApology(t *testing.T) {
	ts := newTestSession(t,
		Config{SilenceTimeout: 40 * time.Millisecond, ForwardInterim: true},
		mock.LLMConfig{Err: errTestGeneration},
		rawPCM(480), 0)

	ts.stt.pushFinal("hello")

	waitFor(t, 2*time.Second, func() bool { return ts.wire.audioFrames() > 0 })
	waitFor(t, 2*time.Second, func() bool {
		rec := ts.s.Record()
		return len(rec.Transcript) == 2 && rec.Transcript[1].Role == llm.RoleAssistant
	})
}

func TestQueuedRegeneration(t *testing.T) {
	gate := make(chan struct{})
	gen := &gatedGenerator{gate: gate}

	stt := newScriptableSTT("MZregen")
	wire := &wireEmitter{}
	deps := Deps{
		STT:        stt,
		Synth:      mock.NewTTS(mock.TTSConfig{Payload: rawPCM(480)}),
		Generator:  gen,
		Transcoder: audio.NewTranscoder(audio.TranscoderConfig{}, nil, nil),
		Out:        wire,
		Agent:      agents.Agent{ID: "default"},
	}
	s, err := New(context.Background(), "MZregen", "CAregen", "tr-regen", "", Config{
		SilenceTimeout: 30 * time.Millisecond,
		ForwardInterim: true,
	}, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wire.mu.Lock()
	wire.onMark = s.HandleMark
	wire.mu.Unlock()
	defer s.Close("test_done")

	stt.pushFinal("first thought")
	waitFor(t, time.Second, func() bool { return gen.calls() == 1 })

	// Second utterance lands while the first reply is still generating.
	stt.pushFinal("second thought")
	waitFor(t, time.Second, func() bool { return gen.calls() == 2 })
	close(gate)

	waitFor(t, 2*time.Second, func() bool { return s.conv.Phase() == turn.PhaseIdle })

	req := gen.lastRequest()
	var users []string
	for _, turn := range req.Turns {
		if turn.Role == llm.RoleUser {
			users = append(users, turn.Content)
		}
	}
	if len(users) != 2 || !strings.Contains(users[1], "second thought") {
		t.Fatalf("regenerated request user turns = %v", users)
	}
}

func TestSayDeliversGreeting(t *testing.T) {
	ts := newTestSession(t,
		Config{SilenceTimeout: time.Second, ForwardInterim: true},
		mock.LLMConfig{},
		rawPCM(480), 0)

	ts.s.Say("Hello, how can I help?")

	waitFor(t, 2*time.Second, func() bool { return ts.wire.audioFrames() > 0 })
	if n := len(ts.gen.Requests()); n != 0 {
		t.Fatalf("generate calls = %d, want 0 for canned greeting", n)
	}

	waitFor(t, 2*time.Second, func() bool { return ts.s.conv.Phase() == turn.PhaseIdle })
	rec := ts.s.Record()
	if len(rec.Transcript) != 1 || rec.Transcript[0].Role != llm.RoleAssistant {
		t.Fatalf("transcript = %+v", rec.Transcript)
	}
}

func TestHangupKeepsSettledReply(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	gen := &gatedGenerator{gate: gate}

	stt := newScriptableSTT("MZhang")
	wire := &wireEmitter{}
	deps := Deps{
		STT:        stt,
		Synth:      mock.NewTTS(mock.TTSConfig{Payload: rawPCM(480)}),
		Generator:  gen,
		Transcoder: audio.NewTranscoder(audio.TranscoderConfig{}, nil, nil),
		Out:        wire,
		Agent:      agents.Agent{ID: "default"},
	}
	s, err := New(context.Background(), "MZhang", "CAhang", "tr-hang", "", Config{
		SilenceTimeout: 30 * time.Millisecond,
		ForwardInterim: true,
	}, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close("test_done")

	stt.pushFinal("hello")
	waitFor(t, time.Second, func() bool { return gen.calls() == 1 })

	// The reply outcome is queued but the caller hangs up before the
	// loop runs again. The turn must still land in the transcript.
	s.events <- event{kind: evReplyDone, seq: 1, text: "Hi there", sent: 3}
	s.Close("caller_hangup")

	rec := s.Record()
	if len(rec.Transcript) != 2 {
		t.Fatalf("transcript = %+v", rec.Transcript)
	}
	if rec.Transcript[1].Role != llm.RoleAssistant || rec.Transcript[1].Text != "Hi there" {
		t.Fatalf("assistant turn = %+v", rec.Transcript[1])
	}
}

// gatedGenerator blocks the first call until the gate opens, then
// answers instantly. Later calls never block.
type gatedGenerator struct {
	gate chan struct{}
	mu   sync.Mutex
	reqs []llm.Request
}

func (g *gatedGenerator) Name() string { return "gated_llm" }

func (g *gatedGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	first := len(g.reqs) == 1
	g.mu.Unlock()
	if first {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
	}
	return llm.Response{Text: "answer", FinishReason: "stop"}, nil
}

func (g *gatedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reqs)
}

func (g *gatedGenerator) lastRequest() llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reqs[len(g.reqs)-1]
}
