package worker

import (
	"time"

	"github.com/thejerf/suture/v4"

	"stockledger/pkg/logger"
)

// TreeConfig tunes the supervisor's restart policy.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig matches suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// NewSupervisor creates the root supervisor. Supervisor events are logged
// through log.
func NewSupervisor(name string, log *logger.Logger, cfg TreeConfig) *suture.Supervisor {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}

	return suture.New(name, suture.Spec{
		EventHook:        eventHook(log),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}

func eventHook(log *logger.Logger) suture.EventHook {
	return func(e suture.Event) {
		kv := make([]any, 0, 2*len(e.Map()))
		for k, v := range e.Map() {
			kv = append(kv, k, v)
		}
		switch e.(type) {
		case suture.EventServicePanic, suture.EventBackoff:
			log.Errorw(e.String(), kv...)
		default:
			log.Warnw(e.String(), kv...)
		}
	}
}
