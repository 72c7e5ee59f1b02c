package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder captures a call's outbound mu-law stream and flushes it to
// a WAV artifact on close. One recorder per call.
type Recorder struct {
	mu     sync.Mutex
	dir    string
	callID string
	data   []byte
	closed bool
}

func NewRecorder(dir, callID string) *Recorder {
	return &Recorder{dir: dir, callID: callID}
}

// Append buffers mu-law bytes as expanded linear samples.
func (r *Recorder) Append(mulaw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.data = append(r.data, mulaw...)
}

// Close writes the buffered audio to <dir>/<callID>.wav.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if len(r.data) == 0 {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}
	path := filepath.Join(r.dir, r.callID+".wav")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	linear := DecodeMulaw(r.data)
	buffer := &goaudio.IntBuffer{Format: &goaudio.Format{NumChannels: 1, SampleRate: TelephonyRate}}
	buffer.Data = make([]int, len(linear))
	for i, s := range linear {
		buffer.Data[i] = int(s)
	}

	enc := wav.NewEncoder(f, TelephonyRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
