package funnel

// Text keys for the bilingual message catalog. The funnel speaks German by
// default; visitors can switch to English.
const (
	msgGreeting        = "greeting"
	msgAskUserType     = "ask_user_type"
	msgAskService      = "ask_service"
	msgServiceReprompt = "service_reprompt"
	msgAskName         = "ask_name"
	msgAskEmail        = "ask_email"
	msgEmailInvalid    = "email_invalid"
	msgAskPhone        = "ask_phone"
	msgConfirmIntro    = "confirm_intro"
	msgThanks          = "thanks"
	msgSubmitFailed    = "submit_failed"
	msgUnknownOption   = "unknown_option"
	msgAskAddress      = "ask_address"
	msgAnalyzingRoof   = "analyzing_roof"
	msgRoofConfirm     = "roof_confirm"
	msgRoofApology     = "roof_apology"
	msgRoofFallback    = "roof_fallback"
	msgCallbackName    = "callback_name"
	msgCallbackPhone   = "callback_phone"
	msgCallbackIntro   = "callback_intro"
	msgCallbackThanks  = "callback_thanks"
	msgAskQuestion     = "ask_question"
	msgAIUnavailable   = "ai_unavailable"
	msgAIOverloaded    = "ai_overloaded"
	msgAIError         = "ai_error"
	msgPromoIntro      = "promo_intro"
	msgComparisonIntro = "comparison_intro"
	msgFormIncomplete  = "form_incomplete"
)

// Menu labels. Matching is case-insensitive.
const (
	optRequest      = "Anfrage stellen"
	optRoof         = "Dach-Potenzial analysieren"
	optQuestion     = "Allgemeine Frage"
	optPrivate      = "Privat"
	optCommercial   = "Gewerblich"
	optSkip         = "Fragen überspringen"
	optSubmit       = "Absenden"
	optRoofAccept   = "Ergebnis übernehmen"
	optRoofReject   = "Andere Adresse"
	optRequestEN    = "Make an inquiry"
	optRoofEN       = "Analyze roof potential"
	optQuestionEN   = "General question"
	optPrivateEN    = "Private"
	optCommercialEN = "Commercial"
	optSkipEN       = "Skip questions"
	optSubmitEN     = "Submit"
	optRoofAcceptEN = "Use this result"
	optRoofRejectEN = "Different address"
)

var textsDE = map[string]string{
	msgGreeting:        "Hallo! Ich bin Ihr digitaler Solar-Assistent. Wie kann ich Ihnen helfen?",
	msgAskUserType:     "Gerne! Stellen Sie die Anfrage privat oder gewerblich?",
	msgAskService:      "Für welche Leistung interessieren Sie sich?",
	msgServiceReprompt: "Bitte wählen Sie eine der angebotenen Leistungen aus.",
	msgAskName:         "Wie lautet Ihr Name?",
	msgAskEmail:        "Danke! Unter welcher E-Mail-Adresse können wir Sie erreichen?",
	msgEmailInvalid:    "Das sieht leider nicht wie eine gültige E-Mail-Adresse aus. Bitte versuchen Sie es noch einmal.",
	msgAskPhone:        "Und Ihre Telefonnummer für Rückfragen?",
	msgConfirmIntro:    "Fast geschafft! Bitte prüfen Sie Ihre Angaben und senden Sie die Anfrage ab.",
	msgThanks:          "Vielen Dank für Ihre Anfrage! Wir melden uns in Kürze bei Ihnen.",
	msgSubmitFailed:    "Das Senden hat leider nicht geklappt. Bitte versuchen Sie es gleich noch einmal.",
	msgUnknownOption:   "Das habe ich leider nicht verstanden. Bitte wählen Sie eine der Optionen.",
	msgAskAddress:      "Wie lautet die Adresse des Gebäudes, dessen Dach ich analysieren soll?",
	msgAnalyzingRoof:   "Einen Moment, ich analysiere das Satellitenbild Ihres Dachs ...",
	msgRoofConfirm:     "Hier ist meine Einschätzung Ihres Dachs. Möchten Sie das Ergebnis in Ihre Anfrage übernehmen?",
	msgRoofApology:     "Entschuldigung, ich konnte Ihr Dach auf den Satellitenbildern nicht zuverlässig erkennen. Bitte prüfen Sie die Adresse und versuchen Sie es erneut.",
	msgRoofFallback:    "Die Dach-Analyse ist gerade nicht möglich. Lassen Sie uns stattdessen mit Ihrer Anfrage fortfahren.",
	msgCallbackName:    "Kein Problem, wir rufen Sie gerne zurück. Wie lautet Ihr Name?",
	msgCallbackPhone:   "Unter welcher Telefonnummer erreichen wir Sie am besten?",
	msgCallbackIntro:   "Bitte bestätigen Sie Ihre Rückruf-Anfrage.",
	msgCallbackThanks:  "Vielen Dank! Wir rufen Sie so bald wie möglich zurück.",
	msgAskQuestion:     "Gerne! Was möchten Sie wissen?",
	msgAIUnavailable:   "Unser KI-Assistent ist derzeit nicht verfügbar. Bitte rufen Sie uns an oder nutzen Sie das Kontaktformular.",
	msgAIOverloaded:    "Unsere Systeme sind gerade stark ausgelastet. Bitte versuchen Sie es in ein paar Minuten erneut.",
	msgAIError:         "Da ist leider ein technischer Fehler aufgetreten. Bitte versuchen Sie es später noch einmal.",
	msgPromoIntro:      "Schön, dass Sie über unsere Aktion hier sind! Wie kann ich Ihnen helfen?",
	msgComparisonIntro: "Gerne vergleiche ich die ausgewählten Produkte für Sie.",
	msgFormIncomplete:  "Es fehlen noch Angaben, bevor ich die Anfrage senden kann.",
}

var textsEN = map[string]string{
	msgGreeting:        "Hello! I am your digital solar assistant. How can I help you?",
	msgAskUserType:     "Great! Is this a private or a commercial inquiry?",
	msgAskService:      "Which service are you interested in?",
	msgServiceReprompt: "Please pick one of the listed services.",
	msgAskName:         "What is your name?",
	msgAskEmail:        "Thanks! What email address can we reach you at?",
	msgEmailInvalid:    "That does not look like a valid email address. Please try again.",
	msgAskPhone:        "And your phone number for follow-up questions?",
	msgConfirmIntro:    "Almost done! Please review your details and submit the inquiry.",
	msgThanks:          "Thank you for your inquiry! We will get back to you shortly.",
	msgSubmitFailed:    "Sending failed, sorry. Please try again in a moment.",
	msgUnknownOption:   "Sorry, I did not catch that. Please pick one of the options.",
	msgAskAddress:      "What is the address of the building whose roof I should analyze?",
	msgAnalyzingRoof:   "One moment, I am analyzing the satellite image of your roof ...",
	msgRoofConfirm:     "Here is my assessment of your roof. Would you like to include it in your inquiry?",
	msgRoofApology:     "Sorry, I could not reliably detect your roof on the satellite images. Please check the address and try again.",
	msgRoofFallback:    "Roof analysis is not available right now. Let us continue with your inquiry instead.",
	msgCallbackName:    "No problem, we are happy to call you back. What is your name?",
	msgCallbackPhone:   "What phone number is best to reach you at?",
	msgCallbackIntro:   "Please confirm your callback request.",
	msgCallbackThanks:  "Thank you! We will call you back as soon as possible.",
	msgAskQuestion:     "Sure! What would you like to know?",
	msgAIUnavailable:   "Our AI assistant is currently unavailable. Please call us or use the contact form.",
	msgAIOverloaded:    "Our systems are under heavy load right now. Please try again in a few minutes.",
	msgAIError:         "A technical error occurred. Please try again later.",
	msgPromoIntro:      "Glad our promotion brought you here! How can I help?",
	msgComparisonIntro: "Happy to compare the selected products for you.",
	msgFormIncomplete:  "Some details are still missing before I can send the inquiry.",
}

// text resolves a catalog key for a language, falling back to German.
func text(language, key string) string {
	if language == "en" {
		if s, ok := textsEN[key]; ok {
			return s
		}
	}
	return textsDE[key]
}

// startMenu returns the option labels shown on the greeting message.
func startMenu(language string) []string {
	if language == "en" {
		return []string{optRequestEN, optRoofEN, optQuestionEN}
	}
	return []string{optRequest, optRoof, optQuestion}
}

func userTypeMenu(language string) []string {
	if language == "en" {
		return []string{optPrivateEN, optCommercialEN}
	}
	return []string{optPrivate, optCommercial}
}

func skipLabel(language string) string {
	if language == "en" {
		return optSkipEN
	}
	return optSkip
}

func submitLabel(language string) string {
	if language == "en" {
		return optSubmitEN
	}
	return optSubmit
}

func roofMenu(language string) []string {
	if language == "en" {
		return []string{optRoofAcceptEN, optRoofRejectEN}
	}
	return []string{optRoofAccept, optRoofReject}
}
