package funnel

import (
	"fmt"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// transitions is the explicit forward-transition table of the funnel. A step
// may only be entered from a step that lists it here; anything else is a
// programming error surfaced by SetStep. Back navigation is not part of this
// table, it replays the history stack instead.
var transitions = map[types.FunnelStep][]types.FunnelStep{
	types.StepStart:         {types.StepInquiryType, types.StepGeneralChat, types.StepGetAddress, types.StepServiceType},
	types.StepInquiryType:   {types.StepServiceType, types.StepQualification, types.StepGetName, types.StepGetAddress},
	types.StepServiceType:   {types.StepQualification, types.StepGetName},
	types.StepQualification: {types.StepQualification, types.StepGetName, types.StepCallbackName},
	types.StepGetName:       {types.StepGetEmail},
	types.StepGetEmail:      {types.StepGetPhone},
	types.StepGetPhone:      {types.StepConfirmSend},
	types.StepConfirmSend:   {types.StepFinal},
	types.StepGeneralChat:   {types.StepGeneralChat, types.StepInquiryType},

	types.StepCallbackName:    {types.StepCallbackPhone},
	types.StepCallbackPhone:   {types.StepCallbackConfirm},
	types.StepCallbackConfirm: {types.StepCallbackFinal},

	types.StepGetAddress:    {types.StepAnalyzingRoof},
	types.StepAnalyzingRoof: {types.StepConfirmRoof, types.StepGetAddress, types.StepInquiryType},
	types.StepConfirmRoof:   {types.StepGetName, types.StepGetAddress},

	types.StepFinal:         {},
	types.StepCallbackFinal: {},
}

func init() {
	// Every step named as a target must itself be a known state. Catching a
	// typo here turns a silently dead branch into a startup panic.
	for from, targets := range transitions {
		for _, to := range targets {
			if _, ok := transitions[to]; !ok {
				panic(fmt.Sprintf("funnel: transition %s -> %s targets unknown step", from, to))
			}
		}
	}
}

func canTransition(from, to types.FunnelStep) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
