package funnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

type fakeGateway struct {
	text       string
	textErr    error
	stream     []string
	streamErr  error
	structured map[string]any
	structErr  map[string]error

	validity    []bool
	validityErr error
	measure     *types.RoofAnalysisResult
	measureErr  error

	validityCalls int
	measureCalls  int
}

func (g *fakeGateway) GenerateText(context.Context, string) (string, []types.Source, error) {
	return g.text, []types.Source{}, g.textErr
}

func (g *fakeGateway) GenerateStream(_ context.Context, _ string, onDelta func(string) error) (string, error) {
	if g.streamErr != nil {
		return "", g.streamErr
	}
	full := ""
	for _, chunk := range g.stream {
		full += chunk
		if onDelta != nil {
			if err := onDelta(chunk); err != nil {
				return full, err
			}
		}
	}
	return full, nil
}

func (g *fakeGateway) GenerateStructured(_ context.Context, _, name string, _ json.RawMessage, out any) error {
	if err := g.structErr[name]; err != nil {
		return err
	}
	v, ok := g.structured[name]
	if !ok {
		return fmt.Errorf("no fake response for schema %s", name)
	}
	raw, _ := json.Marshal(v)
	return json.Unmarshal(raw, out)
}

func (g *fakeGateway) DescribeImage(_ context.Context, _ string, _ []byte, name string, _ json.RawMessage, out any) error {
	switch name {
	case "roof_validity":
		if g.validityErr != nil {
			return g.validityErr
		}
		visible := false
		if g.validityCalls < len(g.validity) {
			visible = g.validity[g.validityCalls]
		}
		g.validityCalls++
		raw, _ := json.Marshal(map[string]bool{"roof_visible": visible})
		return json.Unmarshal(raw, out)
	case "roof_measurement":
		g.measureCalls++
		if g.measureErr != nil {
			return g.measureErr
		}
		raw, _ := json.Marshal(g.measure)
		return json.Unmarshal(raw, out)
	default:
		return fmt.Errorf("unexpected schema %s", name)
	}
}

type fakeLeads struct {
	err   error
	forms []types.LeadForm
}

func (l *fakeLeads) Submit(_ context.Context, form types.LeadForm) error {
	if l.err != nil {
		return l.err
	}
	l.forms = append(l.forms, form)
	return nil
}

type fakeImagery struct {
	err   error
	zooms []int
}

func (i *fakeImagery) FetchImage(_ context.Context, _ string, zoom int) ([]byte, error) {
	if i.err != nil {
		return nil, i.err
	}
	i.zooms = append(i.zooms, zoom)
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Services(context.Context) []types.Service {
	return []types.Service{
		{ID: "photovoltaik", Name: "Photovoltaik-Anlage"},
		{ID: "waermepumpe", Name: "Wärmepumpe"},
		{ID: "stromspeicher", Name: "Stromspeicher"},
	}
}

type fakeArchive struct {
	leads int
}

func (a *fakeArchive) ArchiveLead(context.Context, uuid.UUID, types.LeadForm, bool) error {
	a.leads++
	return nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func questionsFixture() map[string]any {
	return map[string]any{
		"qualification_questions": map[string]any{
			"questions": []map[string]any{
				{"question": "Wie ist Ihr Dach ausgerichtet?", "options": []string{"Süd", "Ost/West"}},
				{"question": "Wann soll das Projekt starten?", "options": []string{"Sofort", "In 6 Monaten"}},
			},
		},
	}
}

func newTestController(g *fakeGateway, l *fakeLeads, img *fakeImagery) (*Controller, *fakeArchive) {
	arch := &fakeArchive{}
	var imagery RoofImagery
	if img != nil {
		imagery = img
	}
	return NewController(g, l, imagery, fakeCatalog{}, arch, []int{19, 20, 18}, testLogger()), arch
}

func lastMessage(t *testing.T, conv *Conversation) types.Message {
	t.Helper()
	require.NotEmpty(t, conv.Messages)
	return conv.Messages[len(conv.Messages)-1]
}

// send drives one input through the controller and asserts the history
// invariant afterwards: the top of the stack always equals the current step.
func send(t *testing.T, fc *Controller, conv *Conversation, input string) {
	t.Helper()
	require.NoError(t, fc.HandleInput(context.Background(), conv, input, nil))
	require.Equal(t, conv.Step, conv.History[len(conv.History)-1])
}

func TestFullLeadFunnelScenario(t *testing.T) {
	g := &fakeGateway{structured: questionsFixture()}
	leads := &fakeLeads{}
	fc, arch := newTestController(g, leads, nil)

	conv := NewConversation("de")
	fc.Greet(conv)
	assert.Equal(t, startMenu("de"), conv.Messages[0].Options)

	send(t, fc, conv, "Anfrage stellen")
	assert.Equal(t, types.StepInquiryType, conv.Step)

	send(t, fc, conv, "Gewerblich")
	assert.Equal(t, types.StepServiceType, conv.Step)
	assert.Equal(t, "Gewerblich", conv.Form.UserType)

	send(t, fc, conv, "Photovoltaik-Anlage")
	assert.Equal(t, types.StepQualification, conv.Step)
	assert.Equal(t, "Photovoltaik-Anlage", conv.Form.ServiceType)

	send(t, fc, conv, "Süd")
	send(t, fc, conv, "Sofort")
	assert.Equal(t, types.StepGetName, conv.Step)

	send(t, fc, conv, "Max Mustermann")
	assert.Equal(t, types.StepGetEmail, conv.Step)

	// Invalid email is rejected in place.
	send(t, fc, conv, "invalid-email")
	assert.Equal(t, types.StepGetEmail, conv.Step)
	assert.Equal(t, textsDE[msgEmailInvalid], lastMessage(t, conv).Text)

	send(t, fc, conv, "max@example.com")
	assert.Equal(t, types.StepGetPhone, conv.Step)

	send(t, fc, conv, "030123456")
	assert.Equal(t, types.StepConfirmSend, conv.Step)
	summary := lastMessage(t, conv)
	assert.Contains(t, summary.Text, "Max Mustermann")
	assert.Contains(t, summary.Text, "max@example.com")
	assert.Contains(t, summary.Text, "030123456")
	assert.Equal(t, []string{optSubmit}, summary.Options)

	send(t, fc, conv, "Absenden")
	assert.Equal(t, types.StepFinal, conv.Step)
	assert.Equal(t, textsDE[msgThanks], lastMessage(t, conv).Text)
	require.Len(t, leads.forms, 1)
	assert.Equal(t, "Max Mustermann", leads.forms[0].Name)
	assert.Equal(t, 1, arch.leads)
}

func TestSubmitFailureStaysOnConfirmStep(t *testing.T) {
	g := &fakeGateway{structured: questionsFixture()}
	leads := &fakeLeads{err: errors.New("backend down")}
	fc, arch := newTestController(g, leads, nil)

	conv := NewConversation("de")
	fc.Greet(conv)
	for _, input := range []string{"Anfrage stellen", "Privat", "Wärmepumpe", "Süd", "Sofort", "Max", "max@example.com", "030"} {
		send(t, fc, conv, input)
	}
	require.Equal(t, types.StepConfirmSend, conv.Step)

	send(t, fc, conv, "Absenden")
	assert.Equal(t, types.StepConfirmSend, conv.Step, "manual-retry policy: step unchanged")
	assert.Equal(t, textsDE[msgSubmitFailed], lastMessage(t, conv).Text)
	assert.Equal(t, 0, arch.leads)

	// Manual retry after the backend recovers.
	leads.err = nil
	send(t, fc, conv, "Absenden")
	assert.Equal(t, types.StepFinal, conv.Step)
	assert.Equal(t, 1, arch.leads)
}

func TestSkipQuestionsTakesCallbackPath(t *testing.T) {
	g := &fakeGateway{structured: questionsFixture()}
	leads := &fakeLeads{}
	fc, _ := newTestController(g, leads, nil)

	conv := NewConversation("de")
	fc.Greet(conv)
	for _, input := range []string{"Anfrage stellen", "Privat", "Stromspeicher"} {
		send(t, fc, conv, input)
	}
	require.Equal(t, types.StepQualification, conv.Step)

	send(t, fc, conv, "Fragen überspringen")
	assert.Equal(t, types.StepCallbackName, conv.Step)

	send(t, fc, conv, "Erika Musterfrau")
	assert.Equal(t, types.StepCallbackPhone, conv.Step)

	send(t, fc, conv, "017612345")
	assert.Equal(t, types.StepCallbackConfirm, conv.Step)

	send(t, fc, conv, "Absenden")
	assert.Equal(t, types.StepCallbackFinal, conv.Step)
	require.Len(t, leads.forms, 1)
	assert.Empty(t, leads.forms[0].Email, "callback path needs no email")
}

func TestBackRestoresPriorStep(t *testing.T) {
	g := &fakeGateway{structured: questionsFixture()}
	fc, _ := newTestController(g, &fakeLeads{}, nil)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Anfrage stellen")
	send(t, fc, conv, "Privat")
	require.Equal(t, types.StepServiceType, conv.Step)

	assert.Equal(t, types.StepInquiryType, fc.Back(conv))
	assert.Equal(t, types.StepStart, fc.Back(conv))
	assert.Equal(t, types.StepStart, fc.Back(conv), "back at start is a no-op")
}

func TestUnknownMenuInputReprompts(t *testing.T) {
	g := &fakeGateway{structured: questionsFixture()}
	fc, _ := newTestController(g, &fakeLeads{}, nil)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Anfrage stellen")
	require.Equal(t, types.StepInquiryType, conv.Step)

	send(t, fc, conv, "vielleicht")
	assert.Equal(t, types.StepInquiryType, conv.Step)
	assert.Equal(t, textsDE[msgUnknownOption], lastMessage(t, conv).Text)
}

func TestFreeTextAtStartStreamsAnswer(t *testing.T) {
	g := &fakeGateway{stream: []string{"Eine PV-Anlage ", "lohnt sich meistens."}}
	fc, _ := newTestController(g, &fakeLeads{}, nil)

	conv := NewConversation("de")
	fc.Greet(conv)

	var streamed string
	require.NoError(t, fc.HandleInput(context.Background(), conv, "Lohnt sich Photovoltaik?", func(chunk string) error {
		streamed += chunk
		return nil
	}))

	assert.Equal(t, types.StepGeneralChat, conv.Step)
	assert.Equal(t, "Eine PV-Anlage lohnt sich meistens.", lastMessage(t, conv).Text)
	assert.Equal(t, "Eine PV-Anlage lohnt sich meistens.", streamed)
}

func TestStreamFailureYieldsErrorNotice(t *testing.T) {
	g := &fakeGateway{streamErr: errors.New("status 429: rate limited")}
	fc, _ := newTestController(g, &fakeLeads{}, nil)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Was kostet eine Anlage?")

	assert.Equal(t, textsDE[msgAIOverloaded], lastMessage(t, conv).Text)
}

func TestServiceMatchViaModel(t *testing.T) {
	g := &fakeGateway{structured: questionsFixture()}
	g.structured["service_match"] = map[string]any{"service_id": "waermepumpe", "answer": ""}
	fc, _ := newTestController(g, &fakeLeads{}, nil)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Anfrage stellen")
	send(t, fc, conv, "Privat")
	send(t, fc, conv, "ich will nicht mehr mit Gas heizen")

	assert.Equal(t, "Wärmepumpe", conv.Form.ServiceType)
	assert.Equal(t, types.StepQualification, conv.Step)
}

func TestServiceMatchTextAnswerReprompts(t *testing.T) {
	g := &fakeGateway{structured: questionsFixture()}
	g.structured["service_match"] = map[string]any{"service_id": "", "answer": "Das bieten wir leider nicht an."}
	fc, _ := newTestController(g, &fakeLeads{}, nil)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Anfrage stellen")
	send(t, fc, conv, "Privat")
	send(t, fc, conv, "ein neues Auto bitte")

	assert.Equal(t, types.StepServiceType, conv.Step)
	last := lastMessage(t, conv)
	assert.Equal(t, "Das bieten wir leider nicht an.", last.Text)
	assert.NotEmpty(t, last.Options, "service menu offered again")
}

func TestRoofAnalysisHappyPath(t *testing.T) {
	g := &fakeGateway{
		validity: []bool{true},
		measure: &types.RoofAnalysisResult{
			AnalysisPossible:     true,
			UsableAreaSqm:        62,
			Obstructions:         []string{"Schornstein"},
			EstimatedModuleCount: 24,
		},
	}
	img := &fakeImagery{}
	fc, _ := newTestController(g, &fakeLeads{}, img)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Dach-Potenzial analysieren")
	require.Equal(t, types.StepGetAddress, conv.Step)

	send(t, fc, conv, "Musterstraße 1, Berlin")
	assert.Equal(t, types.StepConfirmRoof, conv.Step)
	assert.Equal(t, []int{19}, img.zooms, "first zoom level wins, later ones untried")
	require.NotNil(t, conv.RoofAnalysis)

	send(t, fc, conv, "Ergebnis übernehmen")
	assert.Equal(t, types.StepGetName, conv.Step)
	assert.Nil(t, conv.RoofAnalysis, "result folded into form and discarded")
	assert.Contains(t, conv.Form.Message, "62")
	assert.Contains(t, conv.Form.Message, "Schornstein")
}

func TestRoofAnalysisAllZoomsInvalid(t *testing.T) {
	g := &fakeGateway{validity: []bool{false, false, false}}
	img := &fakeImagery{}
	fc, _ := newTestController(g, &fakeLeads{}, img)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Dach-Potenzial analysieren")
	send(t, fc, conv, "Musterstraße 1, Berlin")

	assert.Equal(t, types.StepGetAddress, conv.Step, "never stalls in analyzing_roof")
	assert.Equal(t, textsDE[msgRoofApology], lastMessage(t, conv).Text)
	assert.Nil(t, conv.RoofAnalysis)
	assert.Equal(t, []int{19, 20, 18}, img.zooms, "zoom levels tried in order")
	assert.Equal(t, 3, g.validityCalls)
	assert.Equal(t, 0, g.measureCalls)
}

func TestRoofAnalysisHardFailureFallsBackToInquiry(t *testing.T) {
	g := &fakeGateway{}
	img := &fakeImagery{err: errors.New("maps unavailable")}
	fc, _ := newTestController(g, &fakeLeads{}, img)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Dach-Potenzial analysieren")
	send(t, fc, conv, "Musterstraße 1, Berlin")

	assert.Equal(t, types.StepInquiryType, conv.Step)
	assert.Contains(t, lastMessage(t, conv).Text, textsDE[msgRoofFallback])
}

func TestRoofRejectReturnsToAddress(t *testing.T) {
	g := &fakeGateway{
		validity: []bool{true},
		measure:  &types.RoofAnalysisResult{AnalysisPossible: true, UsableAreaSqm: 40, EstimatedModuleCount: 15},
	}
	fc, _ := newTestController(g, &fakeLeads{}, &fakeImagery{})

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Dach-Potenzial analysieren")
	send(t, fc, conv, "Musterstraße 1, Berlin")
	require.Equal(t, types.StepConfirmRoof, conv.Step)

	send(t, fc, conv, "Andere Adresse")
	assert.Equal(t, types.StepGetAddress, conv.Step)
	assert.Nil(t, conv.RoofAnalysis)
	assert.Empty(t, conv.Form.Message)
}

func TestBackAfterRoofAnalysisSkipsTransientStep(t *testing.T) {
	g := &fakeGateway{
		validity: []bool{true, true},
		measure:  &types.RoofAnalysisResult{AnalysisPossible: true, UsableAreaSqm: 55, EstimatedModuleCount: 20},
	}
	img := &fakeImagery{}
	fc, _ := newTestController(g, &fakeLeads{}, img)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Dach-Potenzial analysieren")
	send(t, fc, conv, "Musterstraße 1, Berlin")
	require.Equal(t, types.StepConfirmRoof, conv.Step)
	assert.NotContains(t, conv.History, types.StepAnalyzingRoof, "analysis step never rests on the stack")

	// Back from the confirmation must land on the address prompt, and the
	// funnel must keep working from there.
	assert.Equal(t, types.StepGetAddress, fc.Back(conv))
	send(t, fc, conv, "Beispielweg 2, Hamburg")
	assert.Equal(t, types.StepConfirmRoof, conv.Step)
	assert.NotContains(t, conv.History, types.StepAnalyzingRoof)
}

func TestBackAfterRoofApologyReturnsToStart(t *testing.T) {
	g := &fakeGateway{validity: []bool{false, false, false}}
	fc, _ := newTestController(g, &fakeLeads{}, &fakeImagery{})

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Dach-Potenzial analysieren")
	send(t, fc, conv, "Musterstraße 1, Berlin")
	require.Equal(t, types.StepGetAddress, conv.Step)
	assert.NotContains(t, conv.History, types.StepAnalyzingRoof)

	assert.Equal(t, types.StepStart, fc.Back(conv))
}

func TestQuestionGenerationFailureDegradesToContactData(t *testing.T) {
	g := &fakeGateway{structErr: map[string]error{"qualification_questions": errors.New("boom")}}
	fc, _ := newTestController(g, &fakeLeads{}, nil)

	conv := NewConversation("de")
	fc.Greet(conv)
	send(t, fc, conv, "Anfrage stellen")
	send(t, fc, conv, "Privat")
	send(t, fc, conv, "Photovoltaik-Anlage")

	assert.Equal(t, types.StepGetName, conv.Step)
}

func TestDegradedModeWithoutAPIKey(t *testing.T) {
	fc := NewController(nil, &fakeLeads{}, nil, fakeCatalog{}, nil, []int{19}, testLogger())

	conv := NewConversation("de")
	fc.Greet(conv)
	assert.Equal(t, textsDE[msgAIUnavailable], conv.Messages[0].Text)
	assert.Empty(t, conv.Messages[0].Options)

	require.NoError(t, fc.HandleInput(context.Background(), conv, "Anfrage stellen", nil))
	assert.Equal(t, types.StepStart, conv.Step)
	assert.Equal(t, textsDE[msgAIUnavailable], lastMessage(t, conv).Text)
}

func TestSeedServiceSkipsServiceMenu(t *testing.T) {
	g := &fakeGateway{structured: questionsFixture()}
	fc, _ := newTestController(g, &fakeLeads{}, nil)

	conv := NewConversation("de")
	require.NoError(t, fc.SeedService(conv, types.Service{ID: "photovoltaik", Name: "Photovoltaik-Anlage"}))
	assert.Equal(t, types.StepInquiryType, conv.Step)

	send(t, fc, conv, "Privat")
	assert.Equal(t, types.StepQualification, conv.Step, "service menu skipped")
	assert.Equal(t, "Photovoltaik-Anlage", conv.Form.ServiceType)
}

func TestSeedComparisonSuppressesSnapshots(t *testing.T) {
	g := &fakeGateway{text: "Produkt A passt zu kleinen Dächern, Produkt B zu großen."}
	fc, _ := newTestController(g, &fakeLeads{}, nil)

	conv := NewConversation("de")
	require.NoError(t, fc.SeedComparison(context.Background(), conv, []string{"Produkt A", "Produkt B"}))

	assert.True(t, conv.ComparisonContext)
	assert.Equal(t, types.StepGeneralChat, conv.Step)
	assert.Contains(t, lastMessage(t, conv).Text, "Produkt A")
}
