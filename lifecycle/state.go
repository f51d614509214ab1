package lifecycle

import (
	"time"

	"github.com/MrEthical07/messpass/fault"
)

// Status is the lifecycle phase of a store.
type Status uint8

const (
	Initializing Status = iota
	Ready
	Error
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Error:
		return "error"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// State is a snapshot of one store's lifecycle. Values are copies; holding
// one never blocks the Manager.
type State struct {
	Name       string
	Status     Status
	Err        *fault.Info
	Generation uint64
	UpdatedAt  time.Time
}

// Ready reports whether the store finished loading.
func (s State) Ready() bool { return s.Status == Ready }
