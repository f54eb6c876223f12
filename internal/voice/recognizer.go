// Package voice adapts speech input and output for the chat widget. Speech
// engines differ wildly between browsers and devices, so everything here
// degrades silently instead of failing the conversation.
package voice

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Engine is the underlying speech-recognition session. Implementations push
// results into the callback passed to Start; interim results carry
// final=false and may be revised.
type Engine interface {
	Start(onResult func(text string, final bool)) error
	Stop() error
}

// Recognizer accumulates finalized speech segments into a transcript.
// Starting twice or stopping an idle recognizer are no-ops, so UI toggles
// cannot double-start the engine.
type Recognizer struct {
	engine Engine
	logger *logrus.Logger

	mu       sync.Mutex
	active   bool
	segments []string
}

func NewRecognizer(engine Engine, logger *logrus.Logger) *Recognizer {
	return &Recognizer{engine: engine, logger: logger}
}

// Start begins listening. Interim results are discarded; only finalized
// segments reach the transcript.
func (r *Recognizer) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active || r.engine == nil {
		return
	}
	if err := r.engine.Start(r.onResult); err != nil {
		r.logger.WithError(err).Warn("speech recognition failed to start")
		return
	}
	r.active = true
}

// Stop ends the listening session. The accumulated transcript survives.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	if err := r.engine.Stop(); err != nil {
		r.logger.WithError(err).Warn("speech recognition failed to stop")
	}
	r.active = false
}

// Active reports whether a recognition session is running.
func (r *Recognizer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Transcript returns the finalized segments joined with spaces.
func (r *Recognizer) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.segments, " ")
}

// Take returns the transcript and clears it, typically when the visitor sends
// the dictated message.
func (r *Recognizer) Take() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := strings.Join(r.segments, " ")
	r.segments = nil
	return out
}

func (r *Recognizer) onResult(text string, final bool) {
	if !final {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	r.mu.Lock()
	r.segments = append(r.segments, text)
	r.mu.Unlock()
}
