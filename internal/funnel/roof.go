package funnel

import (
	"context"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// runRoofAnalysis drives the get_address -> analyzing_roof -> confirm_roof
// subflow. Zoom levels are tried strictly one after another; the first image
// that passes the validity check is measured. Soft failures (no zoom level
// yields a usable image) re-prompt the address with an apology; hard failures
// (image lookup or either AI call erroring) fall back to the manual
// inquiry path instead of retrying.
//
// analyzing_roof is transient: every exit replaces or pops it on the history
// stack, so the conversation never rests there and back navigation never
// returns to it.
func (fc *Controller) runRoofAnalysis(ctx context.Context, conv *Conversation, address string) error {
	conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAnalyzingRoof)})
	if err := conv.SetStep(types.StepAnalyzingRoof); err != nil {
		return err
	}

	if fc.imagery == nil {
		return fc.roofFallback(conv)
	}

	for _, zoom := range fc.zoomLevels {
		image, err := fc.imagery.FetchImage(ctx, address, zoom)
		if err != nil {
			fc.logger.WithError(err).WithField("zoom", zoom).Warn("satellite image fetch failed")
			return fc.roofFallback(conv)
		}

		valid, err := fc.validateRoofImage(ctx, image)
		if err != nil {
			fc.logger.WithError(err).WithField("zoom", zoom).Warn("roof image validation failed")
			return fc.roofFallback(conv)
		}
		if !valid {
			continue
		}

		result, err := fc.measureRoof(ctx, image)
		if err != nil {
			fc.logger.WithError(err).WithField("zoom", zoom).Warn("roof measurement failed")
			return fc.roofFallback(conv)
		}
		if !result.AnalysisPossible {
			continue
		}

		conv.RoofAnalysis = result
		conv.AppendMessage(types.SenderAssistant, MessagePayload{
			Text:    text(conv.Language, msgRoofConfirm) + "\n\n" + roofSummary(conv.Language, result),
			Options: roofMenu(conv.Language),
		})
		return conv.ReplaceStep(types.StepConfirmRoof)
	}

	// Every zoom level came back unusable: apologize and ask again rather
	// than stalling in analyzing_roof. Popping restores the get_address
	// entry the analysis was started from.
	conv.RoofAnalysis = nil
	conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgRoofApology)})
	conv.PopHistory()
	return nil
}

// roofFallback abandons the analysis and returns control to the manual
// inquiry path.
func (fc *Controller) roofFallback(conv *Conversation) error {
	conv.RoofAnalysis = nil
	conv.AppendMessage(types.SenderAssistant, MessagePayload{
		Text:    text(conv.Language, msgRoofFallback) + "\n\n" + text(conv.Language, msgAskUserType),
		Options: userTypeMenu(conv.Language),
	})
	return conv.ReplaceStep(types.StepInquiryType)
}

func (fc *Controller) handleConfirmRoof(conv *Conversation, input string) error {
	switch {
	case equalsAny(input, optRoofAccept, optRoofAcceptEN):
		if conv.RoofAnalysis != nil {
			summary := roofSummary(conv.Language, conv.RoofAnalysis)
			if conv.Form.Message != "" {
				summary = conv.Form.Message + "\n" + summary
			}
			conv.MergeForm(types.LeadForm{Message: summary})
			conv.RoofAnalysis = nil
		}
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAskName)})
		return conv.SetStep(types.StepGetName)
	case equalsAny(input, optRoofReject, optRoofRejectEN):
		conv.RoofAnalysis = nil
		conv.AppendMessage(types.SenderAssistant, MessagePayload{Text: text(conv.Language, msgAskAddress)})
		return conv.SetStep(types.StepGetAddress)
	default:
		conv.AppendMessage(types.SenderAssistant, MessagePayload{
			Text:    text(conv.Language, msgUnknownOption),
			Options: roofMenu(conv.Language),
		})
		return nil
	}
}

func (fc *Controller) validateRoofImage(ctx context.Context, image []byte) (bool, error) {
	var parsed struct {
		RoofVisible bool `json:"roof_visible"`
	}
	if err := fc.gateway.DescribeImage(ctx, roofValidityPrompt, image, "roof_validity", roofValiditySchema, &parsed); err != nil {
		return false, err
	}
	return parsed.RoofVisible, nil
}

func (fc *Controller) measureRoof(ctx context.Context, image []byte) (*types.RoofAnalysisResult, error) {
	var result types.RoofAnalysisResult
	if err := fc.gateway.DescribeImage(ctx, roofMeasurePrompt, image, "roof_measurement", roofMeasureSchema, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
