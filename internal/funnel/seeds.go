package funnel

import (
	"context"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// Seed entry points. Marketing pages publish triggers on the event bus; the
// chat service clears any stored snapshot and then calls one of these to
// start a purpose-built conversation.

// SeedPromo starts a fresh conversation flavored by a promotional deep link.
func (fc *Controller) SeedPromo(conv *Conversation, promo string) {
	conv.Reset()
	if fc.Degraded() {
		fc.Greet(conv)
		return
	}
	conv.Context = promo
	conv.AppendMessage(types.SenderAssistant, MessagePayload{
		Text:    text(conv.Language, msgPromoIntro),
		Options: startMenu(conv.Language),
	})
}

// SeedContext starts a fresh conversation grounded on a use-case description
// from the page the visitor came from.
func (fc *Controller) SeedContext(conv *Conversation, grounding string) {
	conv.Reset()
	conv.Context = grounding
	fc.Greet(conv)
}

// SeedComparison starts a fresh conversation with an AI-generated comparison
// of the given products. While the comparison is active no snapshots are
// taken, so reopening the chat never resumes a stale comparison.
func (fc *Controller) SeedComparison(ctx context.Context, conv *Conversation, products []string) error {
	conv.Reset()
	if fc.Degraded() {
		fc.Greet(conv)
		return nil
	}
	conv.ComparisonContext = true
	conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgComparisonIntro)})

	summary, sources, err := fc.gateway.GenerateText(ctx, buildComparisonPrompt(conv.Language, products))
	if err != nil {
		fc.logger.WithError(err).Warn("product comparison failed")
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: fc.aiFailureText(conv.Language, err)})
		return conv.SetStep(types.StepGeneralChat)
	}
	conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: summary, Sources: sources})
	return conv.SetStep(types.StepGeneralChat)
}

// SeedService starts a fresh conversation with the service already selected,
// as triggered from a product page. The service menu is skipped; the funnel
// continues with the user-type question.
func (fc *Controller) SeedService(conv *Conversation, svc types.Service) error {
	conv.Reset()
	if fc.Degraded() {
		fc.Greet(conv)
		return nil
	}
	conv.MergeForm(types.LeadForm{ServiceType: svc.Name})
	conv.AppendMessage(types.SenderAssistant, MessagePayload{
		Text:    text(conv.Language, msgAskUserType),
		Options: userTypeMenu(conv.Language),
	})
	return conv.SetStep(types.StepInquiryType)
}
