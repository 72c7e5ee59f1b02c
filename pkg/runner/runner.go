package runner

import (
	"bytes"
	"context"
	"os"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

// Runner owns process lifecycle: start, block until cancelled, drain.
type Runner interface {
	Run(ctx context.Context) error
	Stop() error
	State() State
}

// Hooks fire at the edges of the lifecycle.
type Hooks struct {
	OnStart func()
	OnStop  func()
}

// Drainer unwinds in-flight work before shutdown completes.
type Drainer interface {
	Drain() error
}

// DrainerFunc adapts a plain function to the Drainer interface.
type DrainerFunc func() error

func (f DrainerFunc) Drain() error { return f() }

const Version = "dev"

func PrintBanner() {
	tpl := "{{ .Title \"WICARA\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}
