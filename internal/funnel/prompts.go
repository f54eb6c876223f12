package funnel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// MatchKind discriminates the outcome of a service-matching call.
type MatchKind string

const (
	// MatchKindService means the input was matched to a known service id.
	MatchKindService MatchKind = "service_match"
	// MatchKindText means no service matched; Body carries a conversational
	// answer to show instead.
	MatchKindText MatchKind = "text"
)

// ServiceMatch is the discriminated result of matching free text against the
// service catalog. Callers switch on Kind instead of probing loosely typed
// JSON.
type ServiceMatch struct {
	Kind      MatchKind
	ServiceID string
	Body      string
}

const answerPrompt = `You are the friendly assistant on the website of a German solar-energy company.
Answer the visitor's question helpfully and concisely in %s.
Only cover topics around photovoltaics, heat pumps, energy storage, wallboxes and funding programs.
For anything else, politely steer the visitor back to solar topics.

Question: %s`

const matchServicePrompt = `A visitor of a solar-energy website wrote the following free text.
Decide whether it clearly refers to one of these services:

%s

Text: %q

If one service clearly matches, return its id in service_id and leave answer empty.
If none matches, leave service_id empty and write a short helpful reply in %s into answer.`

var matchServiceSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"service_id": {"type": "string"},
		"answer": {"type": "string"}
	},
	"required": ["service_id", "answer"],
	"additionalProperties": false
}`)

const questionsPrompt = `Generate between 2 and 4 short qualification questions that a solar-energy
company would ask a potential customer interested in %q. Write them in %s.
Every question must be multiple choice with 2 to 4 short answer options.`

var questionsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"questions": {
			"type": "array",
			"minItems": 2,
			"maxItems": 4,
			"items": {
				"type": "object",
				"properties": {
					"question": {"type": "string"},
					"options": {
						"type": "array",
						"minItems": 2,
						"maxItems": 4,
						"items": {"type": "string"}
					}
				},
				"required": ["question", "options"],
				"additionalProperties": false
			}
		}
	},
	"required": ["questions"],
	"additionalProperties": false
}`)

const comparisonPrompt = `A visitor of a solar-energy website wants to compare these products:

%s

Write a short, factual comparison in %s covering typical use cases, strengths
and weaknesses. Close with one sentence on which kind of customer each product
suits best.`

const roofValidityPrompt = `This is a satellite image that should show a single building.
Is a building roof clearly and completely visible, sharp enough to estimate its usable area?`

var roofValiditySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"roof_visible": {"type": "boolean"}
	},
	"required": ["roof_visible"],
	"additionalProperties": false
}`)

const roofMeasurePrompt = `This satellite image shows a building roof. Estimate its solar potential:
whether an analysis is possible at all, the usable roof area in square meters,
visible obstructions (chimneys, dormers, skylights, shading), and how many
standard 2 square-meter photovoltaic modules would roughly fit.`

var roofMeasureSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"analysis_possible": {"type": "boolean"},
		"usable_area_sqm": {"type": "number"},
		"obstructions": {"type": "array", "items": {"type": "string"}},
		"estimated_module_count": {"type": "integer"}
	},
	"required": ["analysis_possible", "usable_area_sqm", "obstructions", "estimated_module_count"],
	"additionalProperties": false
}`)

func languageName(language string) string {
	if language == "en" {
		return "English"
	}
	return "German"
}

func buildAnswerPrompt(language, question string) string {
	return fmt.Sprintf(answerPrompt, languageName(language), question)
}

func buildMatchServicePrompt(language, input string, services []types.Service) string {
	var list strings.Builder
	for _, s := range services {
		fmt.Fprintf(&list, "- id: %s, name: %s\n", s.ID, s.Name)
	}
	return fmt.Sprintf(matchServicePrompt, list.String(), input, languageName(language))
}

func buildQuestionsPrompt(language, serviceName string) string {
	return fmt.Sprintf(questionsPrompt, serviceName, languageName(language))
}

func buildComparisonPrompt(language string, products []string) string {
	return fmt.Sprintf(comparisonPrompt, "- "+strings.Join(products, "\n- "), languageName(language))
}

// roofSummary renders the analysis result into the free-text form field when
// the visitor accepts it.
func roofSummary(language string, r *types.RoofAnalysisResult) string {
	obstructions := strings.Join(r.Obstructions, ", ")
	if language == "en" {
		if obstructions == "" {
			obstructions = "none"
		}
		return fmt.Sprintf("Roof analysis: approx. %.0f sqm usable area, room for about %d modules, obstructions: %s.",
			r.UsableAreaSqm, r.EstimatedModuleCount, obstructions)
	}
	if obstructions == "" {
		obstructions = "keine"
	}
	return fmt.Sprintf("Dach-Analyse: ca. %.0f qm nutzbare Fläche, Platz für etwa %d Module, Hindernisse: %s.",
		r.UsableAreaSqm, r.EstimatedModuleCount, obstructions)
}
