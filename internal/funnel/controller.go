package funnel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// Gateway is the AI provider surface the controller depends on. It is passed
// in at construction; the controller never reaches for a package-level client.
type Gateway interface {
	GenerateText(ctx context.Context, prompt string) (string, []types.Source, error)
	GenerateStream(ctx context.Context, prompt string, onDelta func(chunk string) error) (string, error)
	GenerateStructured(ctx context.Context, prompt, schemaName string, schema json.RawMessage, out any) error
	DescribeImage(ctx context.Context, prompt string, image []byte, schemaName string, schema json.RawMessage, out any) error
}

// LeadSender forwards a completed lead form to the lead backend.
type LeadSender interface {
	Submit(ctx context.Context, form types.LeadForm) error
}

// RoofImagery fetches a satellite image for an address at a given zoom level.
type RoofImagery interface {
	FetchImage(ctx context.Context, address string, zoom int) ([]byte, error)
}

// CatalogProvider lists the services the funnel can match against. It always
// returns a usable list, falling back to built-in defaults on backend trouble.
type CatalogProvider interface {
	Services(ctx context.Context) []types.Service
}

// LeadArchive keeps a durable copy of submitted leads. Optional; archive
// failures are logged, never surfaced to the visitor.
type LeadArchive interface {
	ArchiveLead(ctx context.Context, conversationID uuid.UUID, form types.LeadForm, callback bool) error
}

// DeltaFunc receives streamed answer chunks in arrival order.
type DeltaFunc func(chunk string) error

// Controller decides the next step and side effects for every user input. It
// is the sole writer of Conversation state.
type Controller struct {
	gateway    Gateway // nil when no AI key is configured
	leads      LeadSender
	imagery    RoofImagery
	catalog    CatalogProvider
	archive    LeadArchive
	zoomLevels []int
	logger     *logrus.Logger
}

// NewController wires the controller with its collaborators. gateway, imagery
// and archive may be nil; the funnel degrades instead of failing.
func NewController(gateway Gateway, leads LeadSender, imagery RoofImagery, catalog CatalogProvider, archive LeadArchive, zoomLevels []int, logger *logrus.Logger) *Controller {
	return &Controller{
		gateway:    gateway,
		leads:      leads,
		imagery:    imagery,
		catalog:    catalog,
		archive:    archive,
		zoomLevels: zoomLevels,
		logger:     logger,
	}
}

// Degraded reports whether the AI provider is unconfigured. The funnel then
// shows a static unavailability notice instead of the guided dialogue.
func (fc *Controller) Degraded() bool {
	return fc.gateway == nil
}

// Greet seeds a fresh conversation with the greeting and the start menu.
func (fc *Controller) Greet(conv *Conversation) {
	if fc.Degraded() {
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAIUnavailable)})
		return
	}
	conv.AppendMessage(types.SenderAssistant, MessagePayload{
		Text:    text(conv.Language, msgGreeting),
		Options: startMenu(conv.Language),
	})
}

// Back pops the history stack by one step and returns the new current step.
// Calling it with only the start entry left is a no-op.
func (fc *Controller) Back(conv *Conversation) types.FunnelStep {
	return conv.PopHistory()
}

// Reset restarts the conversation and greets again.
func (fc *Controller) Reset(conv *Conversation) {
	conv.Reset()
	fc.Greet(conv)
}

// HandleInput routes user input (typed text or a selected option) through the
// transition table for the current step. User-visible failures become chat
// messages; the returned error covers internal invariant violations only.
func (fc *Controller) HandleInput(ctx context.Context, conv *Conversation, input string, onDelta DeltaFunc) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	conv.AppendMessage(types.SenderUser, MessagePayload{Text: input})

	if fc.Degraded() {
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAIUnavailable)})
		return nil
	}

	switch conv.Step {
	case types.StepStart:
		return fc.handleStart(ctx, conv, input, onDelta)
	case types.StepGeneralChat:
		fc.answerQuestion(ctx, conv, input, onDelta)
		return nil
	case types.StepInquiryType:
		return fc.handleInquiryType(ctx, conv, input)
	case types.StepServiceType:
		return fc.handleServiceType(ctx, conv, input)
	case types.StepQualification:
		return fc.handleQualification(ctx, conv, input)
	case types.StepGetName:
		return fc.handleName(conv, input, types.StepGetEmail, msgAskEmail)
	case types.StepGetEmail:
		return fc.handleEmail(conv, input)
	case types.StepGetPhone:
		return fc.handlePhone(conv, input)
	case types.StepCallbackName:
		return fc.handleName(conv, input, types.StepCallbackPhone, msgCallbackPhone)
	case types.StepCallbackPhone:
		return fc.handleCallbackPhone(conv, input)
	case types.StepConfirmSend, types.StepCallbackConfirm:
		if equalsAny(input, submitLabel(conv.Language), optSubmit, optSubmitEN) {
			return fc.Confirm(ctx, conv)
		}
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgUnknownOption)})
		return nil
	case types.StepGetAddress:
		return fc.runRoofAnalysis(ctx, conv, input)
	case types.StepConfirmRoof:
		return fc.handleConfirmRoof(conv, input)
	case types.StepFinal, types.StepCallbackFinal:
		fc.answerQuestion(ctx, conv, input, onDelta)
		return nil
	default:
		return fmt.Errorf("unhandled funnel step %q", conv.Step)
	}
}

func (fc *Controller) handleStart(ctx context.Context, conv *Conversation, input string, onDelta DeltaFunc) error {
	switch {
	case equalsAny(input, optRequest, optRequestEN):
		conv.AppendMessage(types.SenderAssistant, MessagePayload{
			Text:    text(conv.Language, msgAskUserType),
			Options: userTypeMenu(conv.Language),
		})
		return conv.SetStep(types.StepInquiryType)
	case equalsAny(input, optRoof, optRoofEN):
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAskAddress)})
		return conv.SetStep(types.StepGetAddress)
	case equalsAny(input, optQuestion, optQuestionEN):
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAskQuestion)})
		return conv.SetStep(types.StepGeneralChat)
	default:
		// Anything off-menu at the start is treated as a free-text question.
		if err := conv.SetStep(types.StepGeneralChat); err != nil {
			return err
		}
		fc.answerQuestion(ctx, conv, input, onDelta)
		return nil
	}
}

func (fc *Controller) handleInquiryType(ctx context.Context, conv *Conversation, input string) error {
	var userType string
	switch {
	case equalsAny(input, optPrivate, optPrivateEN):
		userType = optPrivate
	case equalsAny(input, optCommercial, optCommercialEN):
		userType = optCommercial
	default:
		conv.AppendMessage(types.SenderAssistant, MessagePayload{
			Text:    text(conv.Language, msgUnknownOption),
			Options: userTypeMenu(conv.Language),
		})
		return nil
	}
	conv.MergeForm(types.LeadForm{UserType: userType})

	// A service seeded from a product page skips the service menu entirely.
	if conv.Form.ServiceType != "" {
		return fc.startQualification(ctx, conv)
	}

	options := serviceNames(fc.catalog.Services(ctx))
	conv.AppendMessage(types.SenderAssistant, MessagePayload{
		Text:    text(conv.Language, msgAskService),
		Options: options,
	})
	return conv.SetStep(types.StepServiceType)
}

func (fc *Controller) handleServiceType(ctx context.Context, conv *Conversation, input string) error {
	services := fc.catalog.Services(ctx)
	for _, s := range services {
		if equalsAny(input, s.Name) {
			conv.MergeForm(types.LeadForm{ServiceType: s.Name})
			return fc.startQualification(ctx, conv)
		}
	}

	// Off-menu text: let the model decide between a service match and a
	// conversational answer.
	match, err := fc.matchService(ctx, conv.Language, input, services)
	if err != nil {
		fc.logger.WithError(err).Warn("service matching failed")
		conv.AppendMessage(types.SenderAssistant, MessagePayload{
			Text:    text(conv.Language, msgServiceReprompt),
			Options: serviceNames(services),
		})
		return nil
	}

	switch match.Kind {
	case MatchKindService:
		for _, s := range services {
			if s.ID == match.ServiceID {
				conv.MergeForm(types.LeadForm{ServiceType: s.Name})
				return fc.startQualification(ctx, conv)
			}
		}
		fallthrough
	default:
		payload := MessagePayload{
			Text:    match.Body,
			Options: serviceNames(services),
		}
		if payload.Text == "" {
			payload.Text = text(conv.Language, msgServiceReprompt)
		}
		conv.AppendMessage(types.SenderAssistant, payload)
		return nil
	}
}

// startQualification asks the model for 2-4 service-specific questions. If
// generation fails the funnel degrades to collecting contact data directly.
func (fc *Controller) startQualification(ctx context.Context, conv *Conversation) error {
	questions, err := fc.generateQuestions(ctx, conv.Language, conv.Form.ServiceType)
	if err != nil {
		fc.logger.WithError(err).Warn("question generation failed")
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAskName)})
		return conv.SetStep(types.StepGetName)
	}

	conv.Questions = questions
	if err := conv.SetStep(types.StepQualification); err != nil {
		return err
	}
	fc.askNextQuestion(conv)
	return nil
}

func (fc *Controller) handleQualification(ctx context.Context, conv *Conversation, input string) error {
	if equalsAny(input, optSkip, optSkipEN) {
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgCallbackName)})
		return conv.SetStep(types.StepCallbackName)
	}

	q := fc.currentQuestion(conv)
	if q == nil {
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAskName)})
		return conv.SetStep(types.StepGetName)
	}

	for _, opt := range q.Options {
		if equalsAny(input, opt) {
			conv.MergeForm(types.LeadForm{Answers: map[string]string{q.Question: opt}})
			if fc.currentQuestion(conv) == nil {
				conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAskName)})
				return conv.SetStep(types.StepGetName)
			}
			fc.askNextQuestion(conv)
			return nil
		}
	}

	conv.AppendMessage(types.SenderAssistant, MessagePayload{
		Text:    text(conv.Language, msgUnknownOption),
		Options: append(append([]string{}, q.Options...), skipLabel(conv.Language)),
	})
	return nil
}

// currentQuestion returns the first unanswered qualification question.
func (fc *Controller) currentQuestion(conv *Conversation) *types.QualificationQuestion {
	for i := range conv.Questions {
		if _, answered := conv.Form.Answers[conv.Questions[i].Question]; !answered {
			return &conv.Questions[i]
		}
	}
	return nil
}

func (fc *Controller) askNextQuestion(conv *Conversation) {
	q := fc.currentQuestion(conv)
	if q == nil {
		return
	}
	conv.AppendMessage(types.SenderAssistant, MessagePayload{
		Text:    q.Question,
		Options: append(append([]string{}, q.Options...), skipLabel(conv.Language)),
	})
}

func (fc *Controller) handleName(conv *Conversation, input string, next types.FunnelStep, nextKey string) error {
	conv.MergeForm(types.LeadForm{Name: input})
	conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, nextKey)})
	return conv.SetStep(next)
}

// handleEmail is the one locally validated input: without both "@" and "." the
// step does not advance and the visitor is re-prompted.
func (fc *Controller) handleEmail(conv *Conversation, input string) error {
	if !types.PlausibleEmail(input) {
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgEmailInvalid)})
		return nil
	}
	conv.MergeForm(types.LeadForm{Email: input})
	conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAskPhone)})
	return conv.SetStep(types.StepGetPhone)
}

func (fc *Controller) handlePhone(conv *Conversation, input string) error {
	conv.MergeForm(types.LeadForm{Phone: input})
	conv.AppendMessage(types.SenderAssistant, MessagePayload{
		Text:    confirmationSummary(conv, msgConfirmIntro),
		Options: []string{submitLabel(conv.Language)},
	})
	return conv.SetStep(types.StepConfirmSend)
}

func (fc *Controller) handleCallbackPhone(conv *Conversation, input string) error {
	conv.MergeForm(types.LeadForm{Phone: input})
	conv.AppendMessage(types.SenderAssistant, MessagePayload{
		Text:    confirmationSummary(conv, msgCallbackIntro),
		Options: []string{submitLabel(conv.Language)},
	})
	return conv.SetStep(types.StepCallbackConfirm)
}

// Confirm performs the user-triggered lead submission. On failure the
// conversation stays on the confirmation step so the visitor can retry
// manually; there is no automatic resubmission.
func (fc *Controller) Confirm(ctx context.Context, conv *Conversation) error {
	if !conv.Step.Confirmation() {
		return fmt.Errorf("confirm called on step %q", conv.Step)
	}
	callback := conv.Step == types.StepCallbackConfirm

	if !conv.Form.ReadyToSubmit(callback) {
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgFormIncomplete)})
		return nil
	}

	if err := fc.leads.Submit(ctx, conv.Form); err != nil {
		fc.logger.WithError(err).WithField("conversation_id", conv.ID).Error("lead submission failed")
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgSubmitFailed)})
		return nil
	}

	if fc.archive != nil {
		if err := fc.archive.ArchiveLead(ctx, conv.ID, conv.Form, callback); err != nil {
			fc.logger.WithError(err).Warn("lead archive failed")
		}
	}

	if callback {
		if err := conv.SetStep(types.StepCallbackFinal); err != nil {
			return err
		}
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgCallbackThanks)})
		return nil
	}
	if err := conv.SetStep(types.StepFinal); err != nil {
		return err
	}
	conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgThanks)})
	return nil
}

// answerQuestion streams a free-text answer into a fresh assistant message,
// appending chunks in arrival order so the client can render token-by-token.
func (fc *Controller) answerQuestion(ctx context.Context, conv *Conversation, question string, onDelta DeltaFunc) {
	prompt := buildAnswerPrompt(conv.Language, fc.withContext(conv, question))
	msg := conv.AppendMessage(types.SenderAssistant, MessagePayload{})

	_, err := fc.gateway.GenerateStream(ctx, prompt, func(chunk string) error {
		if err := conv.AppendChunk(chunk); err != nil {
			return err
		}
		if onDelta != nil {
			return onDelta(chunk)
		}
		return nil
	})
	if err != nil {
		fc.logger.WithError(err).Warn("free-text answer failed")
		if msg.Text == "" {
			msg.Text = fc.aiFailureText(conv.Language, err)
		}
	}
}

// withContext prepends any seeded grounding context to the question.
func (fc *Controller) withContext(conv *Conversation, question string) string {
	if conv.Context == "" {
		return question
	}
	return "Context: " + conv.Context + "\n\n" + question
}

func (fc *Controller) matchService(ctx context.Context, language, input string, services []types.Service) (ServiceMatch, error) {
	var parsed struct {
		ServiceID string `json:"service_id"`
		Answer    string `json:"answer"`
	}
	prompt := buildMatchServicePrompt(language, input, services)
	if err := fc.gateway.GenerateStructured(ctx, prompt, "service_match", matchServiceSchema, &parsed); err != nil {
		return ServiceMatch{}, err
	}
	if parsed.ServiceID != "" {
		return ServiceMatch{Kind: MatchKindService, ServiceID: parsed.ServiceID}, nil
	}
	return ServiceMatch{Kind: MatchKindText, Body: parsed.Answer}, nil
}

func (fc *Controller) generateQuestions(ctx context.Context, language, serviceName string) ([]types.QualificationQuestion, error) {
	var parsed struct {
		Questions []types.QualificationQuestion `json:"questions"`
	}
	prompt := buildQuestionsPrompt(language, serviceName)
	if err := fc.gateway.GenerateStructured(ctx, prompt, "qualification_questions", questionsSchema, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Questions) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}
	return parsed.Questions, nil
}

// aiFailureText maps an AI error to the visitor-facing notice: rate limiting
// becomes the heavy-load message, everything else the generic technical one.
func (fc *Controller) aiFailureText(language string, err error) string {
	if isRateLimitFlavored(err) {
		return text(language, msgAIOverloaded)
	}
	return text(language, msgAIError)
}

func isRateLimitFlavored(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func confirmationSummary(conv *Conversation, introKey string) string {
	var b strings.Builder
	b.WriteString(text(conv.Language, introKey))
	b.WriteString("\n\n")
	if conv.Form.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", conv.Form.Name)
	}
	if conv.Form.Email != "" {
		fmt.Fprintf(&b, "E-Mail: %s\n", conv.Form.Email)
	}
	if conv.Form.Phone != "" {
		fmt.Fprintf(&b, "Telefon: %s\n", conv.Form.Phone)
	}
	if conv.Form.ServiceType != "" {
		fmt.Fprintf(&b, "Leistung: %s\n", conv.Form.ServiceType)
	}
	return strings.TrimRight(b.String(), "\n")
}

func serviceNames(services []types.Service) []string {
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = s.Name
	}
	return names
}

func equalsAny(input string, candidates ...string) bool {
	in := strings.ToLower(strings.TrimSpace(input))
	for _, c := range candidates {
		if in == strings.ToLower(strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}
