package funnel

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// Conversation is the single source of truth for everything the funnel needs
// to render and resume: the message log, the current step plus its history
// stack, the accumulating lead form, and transient roof/qualification state.
// The Controller is the sole writer; nothing else calls the mutating methods.
type Conversation struct {
	ID       uuid.UUID
	Messages []types.Message
	Step     types.FunnelStep
	History  []types.FunnelStep
	Form     types.LeadForm
	Language string

	RoofAnalysis *types.RoofAnalysisResult
	Questions    []types.QualificationQuestion

	// Context is free-form grounding text seeded by a marketing page; it
	// flavors free-text answers but is never persisted.
	Context string
	// ComparisonContext marks an active product-comparison seed. While set,
	// snapshots are suppressed so a stale comparison is never resumed.
	ComparisonContext bool

	nextID int64
}

// MessagePayload carries the optional parts of a new message.
type MessagePayload struct {
	Text    string
	Options []string
	VideoID string
	Sources []types.Source
}

// NewConversation creates a fresh conversation seeded at the start step.
func NewConversation(language string) *Conversation {
	return &Conversation{
		ID:       uuid.New(),
		Step:     types.StepStart,
		History:  []types.FunnelStep{types.StepStart},
		Language: language,
		nextID:   1,
	}
}

// AppendMessage appends a new message with a unique id and returns it.
func (c *Conversation) AppendMessage(sender types.Sender, p MessagePayload) *types.Message {
	c.Messages = append(c.Messages, types.Message{
		ID:      c.nextID,
		Sender:  sender,
		Text:    p.Text,
		Options: p.Options,
		VideoID: p.VideoID,
		Sources: p.Sources,
	})
	c.nextID++
	return &c.Messages[len(c.Messages)-1]
}

// AppendChunk appends streamed text to the most recent assistant message.
// Chunks arriving for anything but a trailing assistant message indicate a
// controller bug and are rejected.
func (c *Conversation) AppendChunk(chunk string) error {
	if len(c.Messages) == 0 {
		return fmt.Errorf("append chunk: no messages")
	}
	last := &c.Messages[len(c.Messages)-1]
	if last.Sender != types.SenderAssistant {
		return fmt.Errorf("append chunk: last message is from %s", last.Sender)
	}
	last.Text += chunk
	return nil
}

// SetStep advances to the given step and pushes it onto the history stack.
// Illegal transitions are rejected so they surface instead of silently
// corrupting the stack.
func (c *Conversation) SetStep(step types.FunnelStep) error {
	if !canTransition(c.Step, step) {
		return fmt.Errorf("illegal transition %s -> %s", c.Step, step)
	}
	c.Step = step
	c.History = append(c.History, step)
	return nil
}

// ReplaceStep swaps the current step for the given one without growing the
// history stack. Transient steps like the running roof analysis use this so
// back navigation can never land on them.
func (c *Conversation) ReplaceStep(step types.FunnelStep) error {
	if !canTransition(c.Step, step) {
		return fmt.Errorf("illegal transition %s -> %s", c.Step, step)
	}
	c.Step = step
	c.History[len(c.History)-1] = step
	return nil
}

// PopHistory removes the current step from the history stack and returns the
// new current step. With only the start entry left this is a no-op: back
// navigation never underflows.
func (c *Conversation) PopHistory() types.FunnelStep {
	if len(c.History) > 1 {
		c.History = c.History[:len(c.History)-1]
		c.Step = c.History[len(c.History)-1]
	}
	return c.Step
}

// MergeForm shallow-merges the non-zero fields of partial into the lead form.
// Answers are merged key-by-key.
func (c *Conversation) MergeForm(partial types.LeadForm) {
	if partial.Name != "" {
		c.Form.Name = partial.Name
	}
	if partial.Email != "" {
		c.Form.Email = partial.Email
	}
	if partial.Phone != "" {
		c.Form.Phone = partial.Phone
	}
	if partial.ServiceType != "" {
		c.Form.ServiceType = partial.ServiceType
	}
	if partial.UserType != "" {
		c.Form.UserType = partial.UserType
	}
	if partial.Message != "" {
		c.Form.Message = partial.Message
	}
	for q, a := range partial.Answers {
		if c.Form.Answers == nil {
			c.Form.Answers = map[string]string{}
		}
		c.Form.Answers[q] = a
	}
}

// Reset clears the conversation back to a fresh start state. The id and
// language survive so the visitor keeps their session.
func (c *Conversation) Reset() {
	c.Messages = nil
	c.Step = types.StepStart
	c.History = []types.FunnelStep{types.StepStart}
	c.Form = types.LeadForm{}
	c.RoofAnalysis = nil
	c.Questions = nil
	c.Context = ""
	c.ComparisonContext = false
	c.nextID = 1
}

// Snapshot captures the conversation for persistence.
func (c *Conversation) Snapshot() types.ConversationSnapshot {
	return types.ConversationSnapshot{
		ConversationID: c.ID,
		Messages:       c.Messages,
		Step:           c.Step,
		StepHistory:    c.History,
		Form:           c.Form,
		Language:       c.Language,
		RoofAnalysis:   c.RoofAnalysis,
		Questions:      c.Questions,
		UpdatedAt:      time.Now().UTC(),
	}
}

// FromSnapshot rebuilds a conversation from a persisted snapshot.
func FromSnapshot(snap types.ConversationSnapshot) *Conversation {
	var next int64 = 1
	for _, m := range snap.Messages {
		if m.ID >= next {
			next = m.ID + 1
		}
	}
	step := snap.Step
	history := snap.StepHistory
	if len(history) == 0 {
		history = []types.FunnelStep{types.StepStart}
		step = types.StepStart
	}
	return &Conversation{
		ID:           snap.ConversationID,
		Messages:     snap.Messages,
		Step:         step,
		History:      history,
		Form:         snap.Form,
		Language:     snap.Language,
		RoofAnalysis: snap.RoofAnalysis,
		Questions:    snap.Questions,
		nextID:       next,
	}
}
