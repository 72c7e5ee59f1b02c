package session

import (
	"github.com/wicara-ai/wicara/pkg/errorsx"
)

var (
	// ErrDuplicateSession is returned when a stream id is already
	// registered.
	ErrDuplicateSession = errorsx.New("session already exists", errorsx.ReasonSessionDuplicate)
	// ErrSessionNotFound is returned when no session matches the
	// stream id.
	ErrSessionNotFound = errorsx.New("session not found", errorsx.ReasonSessionNotFound)
	// ErrDraining is returned when the registry no longer accepts new
	// sessions.
	ErrDraining = errorsx.New("registry is draining", errorsx.ReasonSessionDraining)
)
