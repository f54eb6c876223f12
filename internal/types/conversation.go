package types

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Source is a grounding citation attached to an AI-generated answer.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Message is a single entry in the conversation log. Messages are append-only;
// the only post-creation mutation allowed is appending streamed text chunks to
// the most recent assistant message.
type Message struct {
	ID      int64    `json:"id"`
	Sender  Sender   `json:"sender"`
	Text    string   `json:"text,omitempty"`
	Options []string `json:"options,omitempty"`
	VideoID string   `json:"video_id,omitempty"`
	Sources []Source `json:"sources,omitempty"`
}

// FunnelStep is the current stage of the guided lead-qualification dialogue.
type FunnelStep string

const (
	StepStart         FunnelStep = "start"
	StepInquiryType   FunnelStep = "inquiry_type"
	StepServiceType   FunnelStep = "service_type"
	StepQualification FunnelStep = "qualification"
	StepGetName       FunnelStep = "get_name"
	StepGetEmail      FunnelStep = "get_email"
	StepGetPhone      FunnelStep = "get_phone"
	StepConfirmSend   FunnelStep = "confirm_and_send"
	StepFinal         FunnelStep = "final"
	StepGeneralChat   FunnelStep = "general_chat"

	// Shortened callback path: name and phone only, then confirmation.
	StepCallbackName    FunnelStep = "get_name_for_callback"
	StepCallbackPhone   FunnelStep = "get_phone_for_callback"
	StepCallbackConfirm FunnelStep = "confirm_callback"
	StepCallbackFinal   FunnelStep = "callback_final"

	// Roof-analysis subflow.
	StepGetAddress    FunnelStep = "get_address"
	StepAnalyzingRoof FunnelStep = "analyzing_roof"
	StepConfirmRoof   FunnelStep = "confirm_roof"
)

// Terminal reports whether the step ends the funnel.
func (s FunnelStep) Terminal() bool {
	return s == StepFinal || s == StepCallbackFinal
}

// Confirmation reports whether the step is a confirmation step. Snapshots are
// never taken while the conversation sits on a confirmation step.
func (s FunnelStep) Confirmation() bool {
	return s == StepConfirmSend || s == StepCallbackConfirm
}

// LeadForm is the accumulating record of contact and project details collected
// across funnel steps. Fields are merged in incrementally and never reset
// except on conversation restart.
type LeadForm struct {
	Name        string            `json:"name,omitempty"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	ServiceType string            `json:"service_type,omitempty"`
	UserType    string            `json:"user_type,omitempty"`
	Message     string            `json:"message,omitempty"`
	Answers     map[string]string `json:"answers,omitempty"`
}

// ReadyToSubmit reports whether the form satisfies the minimum submission
// contract: a contact name, a plausible email, and an identified service.
// The callback path relaxes the email requirement.
func (f *LeadForm) ReadyToSubmit(callback bool) bool {
	if f.Name == "" {
		return false
	}
	if callback {
		return f.Phone != ""
	}
	return PlausibleEmail(f.Email) && f.ServiceType != ""
}

// PlausibleEmail implements the funnel's deliberately loose email check:
// anything containing both "@" and "." passes.
func PlausibleEmail(s string) bool {
	hasAt := false
	hasDot := false
	for _, r := range s {
		switch r {
		case '@':
			hasAt = true
		case '.':
			hasDot = true
		}
	}
	return hasAt && hasDot
}

// RoofAnalysisResult is the outcome of the satellite-image roof measurement.
// It lives only between the analysis call and the user's confirm/reject
// decision; on confirm it is folded into LeadForm.Message, on reject it is
// discarded.
type RoofAnalysisResult struct {
	AnalysisPossible     bool     `json:"analysis_possible"`
	UsableAreaSqm        float64  `json:"usable_area_sqm"`
	Obstructions         []string `json:"obstructions"`
	EstimatedModuleCount int      `json:"estimated_module_count"`
}

// QualificationQuestion is one AI-generated multiple-choice question asked
// during the qualification substep.
type QualificationQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// ConversationSnapshot is the persisted form of a conversation: everything
// needed to resume exactly where the visitor left off. Invariant: Step equals
// the top of StepHistory, and the form matches the steps that have executed.
type ConversationSnapshot struct {
	ConversationID uuid.UUID               `json:"conversation_id"`
	Messages       []Message               `json:"messages"`
	Step           FunnelStep              `json:"step"`
	StepHistory    []FunnelStep            `json:"step_history"`
	Form           LeadForm                `json:"form"`
	Language       string                  `json:"language"`
	RoofAnalysis   *RoofAnalysisResult     `json:"roof_analysis,omitempty"`
	Questions      []QualificationQuestion `json:"questions,omitempty"`
	UpdatedAt      time.Time               `json:"updated_at"`
}
