package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/wicara-ai/wicara/pkg/frames"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestSendClearControl(t *testing.T) {
	tr := New(Config{})
	sess := &wsSession{sendCh: make(chan []byte, 1)}
	tr.mu.Lock()
	tr.conns["stream-1"] = sess
	tr.mu.Unlock()

	cf := frames.NewControlFrame("stream-1", time.Now().UnixNano(), frames.ControlClear, nil)
	if err := tr.Send(cf); err != nil {
		t.Fatalf("send error: %v", err)
	}

	select {
	case msg := <-sess.sendCh:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt, _ := payload["event"].(string); evt != "clear" {
			t.Fatalf("expected clear event, got %q", evt)
		}
	default:
		t.Fatalf("expected clear event to be enqueued")
	}
}

func TestSendMarkControl(t *testing.T) {
	tr := New(Config{})
	sess := &wsSession{sendCh: make(chan []byte, 1)}
	tr.mu.Lock()
	tr.conns["stream-1"] = sess
	tr.mu.Unlock()

	meta := map[string]string{frames.MetaMarkName: "reply-7"}
	cf := frames.NewControlFrame("stream-1", time.Now().UnixNano(), frames.ControlMark, meta)
	if err := tr.Send(cf); err != nil {
		t.Fatalf("send error: %v", err)
	}

	select {
	case msg := <-sess.sendCh:
		var payload struct {
			Event string `json:"event"`
			Mark  struct {
				Name string `json:"name"`
			} `json:"mark"`
		}
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if payload.Event != "mark" || payload.Mark.Name != "reply-7" {
			t.Fatalf("got event=%q mark=%q", payload.Event, payload.Mark.Name)
		}
	default:
		t.Fatalf("expected mark event to be enqueued")
	}
}

func TestSendAudioEncodesBase64(t *testing.T) {
	tr := New(Config{})
	sess := &wsSession{sendCh: make(chan []byte, 1)}
	tr.mu.Lock()
	tr.conns["stream-1"] = sess
	tr.mu.Unlock()

	raw := []byte{0x01, 0x02, 0x03}
	af := frames.NewAudioFrame("stream-1", time.Now().UnixNano(), raw, 8000, 1, nil)
	if err := tr.Send(af); err != nil {
		t.Fatalf("send error: %v", err)
	}

	select {
	case msg := <-sess.sendCh:
		var payload struct {
			Event string `json:"event"`
			Media struct {
				Payload string `json:"payload"`
			} `json:"media"`
		}
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(payload.Media.Payload)
		if err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if string(decoded) != string(raw) {
			t.Fatalf("payload %v, want %v", decoded, raw)
		}
	default:
		t.Fatalf("expected media event to be enqueued")
	}
}

func TestSendToUnknownStream(t *testing.T) {
	tr := New(Config{})
	af := frames.NewAudioFrame("ghost", time.Now().UnixNano(), []byte{1}, 8000, 1, nil)
	if err := tr.Send(af); err == nil {
		t.Fatal("expected error for unknown stream")
	}
}

func TestHandleVoiceSignatureValidation(t *testing.T) {
	cfg := Config{AuthToken: "token", PublicURL: "https://example.com", VoicePath: "/voice"}
	tr := New(cfg)

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", "+123")
	body := form.Encode()

	req := httptest.NewRequest(http.MethodPost, "https://example.com/voice", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	params := map[string]string{"CallSid": "CA123", "From": "+123"}
	sig := computeSignature(cfg.AuthToken, tr.requestURL(req), params)
	req.Header.Set("X-Twilio-Signature", sig)

	w := httptest.NewRecorder()
	tr.handleVoice(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "wss://example.com/ws") {
		t.Fatalf("unexpected twiml: %s", w.Body.String())
	}

	reqInvalid := httptest.NewRequest(http.MethodPost, "https://example.com/voice", strings.NewReader(body))
	reqInvalid.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	reqInvalid.Header.Set("X-Twilio-Signature", "invalid")
	wInvalid := httptest.NewRecorder()
	tr.handleVoice(wInvalid, reqInvalid)
	if wInvalid.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", wInvalid.Code)
	}
}

func TestHandleStatusCallbackMapsCallEnd(t *testing.T) {
	cfg := Config{AuthToken: "token", PublicURL: "https://example.com", StatusCallbackPath: "/status"}
	tr := New(cfg)
	streamID := "stream-1"
	callSID := "CA123"

	tr.mu.Lock()
	tr.callStreams[callSID] = streamID
	tr.callSIDs[streamID] = callSID
	tr.mu.Unlock()

	form := url.Values{}
	form.Set("CallSid", callSID)
	form.Set("CallStatus", "completed")
	body := form.Encode()

	req := httptest.NewRequest(http.MethodPost, "https://example.com/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	params := map[string]string{"CallSid": callSID, "CallStatus": "completed"}
	sig := computeSignature(cfg.AuthToken, tr.requestURL(req), params)
	req.Header.Set("X-Twilio-Signature", sig)

	w := httptest.NewRecorder()
	tr.handleStatusCallback(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	select {
	case frame := <-tr.Recv():
		sys, ok := frame.(frames.SystemFrame)
		if !ok {
			t.Fatalf("expected SystemFrame, got %T", frame)
		}
		if sys.Name() != frames.SystemCallEnd {
			t.Fatalf("expected call_end, got %q", sys.Name())
		}
		if sys.Meta()[frames.MetaCallEndReason] != "completed" {
			t.Fatalf("reason = %q", sys.Meta()[frames.MetaCallEndReason])
		}
	case <-time.After(time.Second):
		t.Fatalf("expected call_end frame")
	}
}

type stubCallUpdater struct {
	lastSID    string
	lastStatus string
	err        error
}

func (s *stubCallUpdater) UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
	s.lastSID = sid
	if params != nil && params.Status != nil {
		s.lastStatus = *params.Status
	}
	if s.err != nil {
		return nil, s.err
	}
	return &api.ApiV2010Call{}, nil
}

func TestHangup(t *testing.T) {
	tr := New(Config{AccountSID: "AC123", AuthToken: "token"})
	stub := &stubCallUpdater{}
	tr.updateClient = stub

	if err := tr.Hangup(context.Background(), "CA123"); err != nil {
		t.Fatalf("hangup: %v", err)
	}
	if stub.lastSID != "CA123" || stub.lastStatus != "completed" {
		t.Fatalf("sid=%q status=%q", stub.lastSID, stub.lastStatus)
	}

	stub.err = errors.New("boom")
	if err := tr.Hangup(context.Background(), "CA123"); err == nil {
		t.Fatal("expected error on update failure")
	}
	if err := tr.Hangup(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty sid")
	}
}

func TestNormalizeCallEndReason(t *testing.T) {
	cases := map[string]string{
		"completed":        "completed",
		"hangup":           "completed",
		"busy":             "busy",
		"no-answer":        "no_answer",
		"failed":           "failed",
		"transport_closed": "failed",
		"ringing":          "",
		"":                 "",
		"weird":            "unknown",
	}
	for in, want := range cases {
		if got := normalizeCallEndReason(in); got != want {
			t.Errorf("normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func computeSignature(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	base := url
	for _, k := range keys {
		base += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	_, _ = mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
