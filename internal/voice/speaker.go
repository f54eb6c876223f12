package voice

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Voice describes one synthesizer voice.
type Voice struct {
	Name     string
	Locale   string
	Provider string
}

// Synthesizer turns text into audible speech. Speak blocks until playback of
// the given sentence has finished.
type Synthesizer interface {
	Voices() []Voice
	Speak(ctx context.Context, voice Voice, sentence string) error
}

// NoopSynthesizer reports no voices and plays nothing. Used when the runtime
// offers no speech output.
type NoopSynthesizer struct{}

func (NoopSynthesizer) Voices() []Voice { return nil }

func (NoopSynthesizer) Speak(context.Context, Voice, string) error { return nil }

// Speaker reads assistant messages aloud. Messages are split into sentences
// and played strictly one after another; a new message never interrupts a
// sentence already playing.
type Speaker struct {
	synth    Synthesizer
	locale   string
	provider string
	logger   *logrus.Logger

	queue  chan string
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	muted bool
}

// NewSpeaker starts the playback worker. locale selects the voice; provider
// is a soft preference among voices of that locale.
func NewSpeaker(synth Synthesizer, locale, provider string, logger *logrus.Logger) *Speaker {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Speaker{
		synth:    synth,
		locale:   locale,
		provider: provider,
		logger:   logger,
		queue:    make(chan string, 256),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Enqueue splits the text into sentences and appends them to the playback
// queue. When the queue is full the overflow is dropped, never blocked on.
func (s *Speaker) Enqueue(text string) {
	for _, sentence := range splitSentences(text) {
		select {
		case s.queue <- sentence:
		default:
			s.logger.Warn("speech queue full, dropping sentence")
			return
		}
	}
}

// Mute stops audible output. Queued sentences are still consumed so the queue
// never backs up while muted.
func (s *Speaker) Mute() {
	s.mu.Lock()
	s.muted = true
	s.mu.Unlock()
}

// Unmute restores audible output for sentences enqueued from now on.
func (s *Speaker) Unmute() {
	s.mu.Lock()
	s.muted = false
	s.mu.Unlock()
}

// Close stops the worker. Pending sentences are dropped.
func (s *Speaker) Close() {
	s.cancel()
	<-s.done
}

func (s *Speaker) run(ctx context.Context) {
	defer close(s.done)

	voice, ok := s.pickVoice()
	for {
		select {
		case <-ctx.Done():
			return
		case sentence := <-s.queue:
			s.mu.Lock()
			muted := s.muted
			s.mu.Unlock()
			if muted || !ok {
				continue
			}
			if err := s.synth.Speak(ctx, voice, sentence); err != nil {
				s.logger.WithError(err).Warn("speech synthesis failed")
			}
		}
	}
}

// pickVoice prefers a voice matching locale and provider, then any voice of
// the locale. Without a locale match the speaker stays silent.
func (s *Speaker) pickVoice() (Voice, bool) {
	var localeMatch *Voice
	for _, v := range s.synth.Voices() {
		if !strings.EqualFold(v.Locale, s.locale) {
			continue
		}
		if s.provider != "" && strings.EqualFold(v.Provider, s.provider) {
			return v, true
		}
		if localeMatch == nil {
			match := v
			localeMatch = &match
		}
	}
	if localeMatch != nil {
		return *localeMatch, true
	}
	return Voice{}, false
}

// splitSentences cuts text at sentence punctuation so long answers can be
// played and interrupted at natural boundaries.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
