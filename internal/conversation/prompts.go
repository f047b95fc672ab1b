package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/mediswift/intake-platform/internal/session"
)

const systemPromptWithHistory = `You are MediSwift, a virtual medical assistant designed to aid doctors. The patient is here for a follow-up visit or a new consultation. Here is the patient's medical history: """%s""".
Start by asking the patient if this visit is a follow-up appointment or a new visit. Use their response to guide the conversation while considering the existing medical history. Use """%s""" for the conversation. The user may reply in any language, but you should reply only in """%s""".
Begin by summarizing the key points of their medical history. Ask questions based on their response and the provided medical history. Gather detailed information that will help the doctor understand the patient's current condition better.
If the patient provides incomplete or unclear information, politely ask for clarification.
Maintain a tone that conveys empathy and understanding, and keep the language simple, avoiding medical jargon where possible.`

const systemPromptNewPatient = `You are MediSwift, a virtual medical assistant designed to aid doctors. You are chatting with a patient inside a hospital waiting area right before their visit to the doctor. Your role is to gather information about the patient's current health concerns in a step-by-step manner. You do not provide diagnoses or medical advice. As soon as you receive a message, start asking questions (try to start the conversation with a message like "Can you please tell me the problem you are facing?"). Ask one question at a time based on the patient's responses. Gather detailed information that will help the doctor understand the patient's condition better. Since the doctor does not know about the patient, help him know about underlying conditions like allergies or past medical issues by asking the patient. Use %s for the conversation. The user may reply in any language but you should reply only in %s. If the patient provides incomplete or unclear information, politely ask follow-up questions for clarification. Keep questions concise but ensure they gather all necessary information. Maintain a tone that conveys empathy and understanding.`

// SummarizationInstruction replaces the system prompt when a session ends and
// the transcript is summarized into a structured clinical report.
const SummarizationInstruction = `You are part of a virtual medical assistant designed to aid doctors. A chatbot was deployed to talk to the patient to gather detailed information about their concerns, symptoms, medical history, etc., to help the doctor understand the purpose of the visit while providing all the details retrieved during the chat. Your job is to understand the conversation and extract all relevant information from the conversation in a structured JSON format that follows a predefined schema.`

// DisplayConversionInstruction drives the second summarization pass that turns
// the structured summary into doctor-friendly display JSON.
const DisplayConversionInstruction = `You are a helpful assistant designed to output JSON. Given a medical summary, output a structured JSON object. The JSON should include fields such as Purpose of Visit, Chronic Diseases, Acute Symptoms, Allergies, Medications, Previous Treatments, Patient Concerns, Infectious Disease Exposure, Nutritional Status, Family Medical History, and Lifestyle Factors. These fields are suggestions and not a fixed scheme. Add and remove fields as needed. Use the information available in the summary to populate the fields. If information for a field is not available, either omit the field or set it to null. Ensure the JSON is formatted in a user-friendly manner as it will be displayed to and read by doctors.`

// BuildSystemPrompt selects between the follow-up and new-patient templates
// based on whether medical history is present.
func BuildSystemPrompt(history []json.RawMessage, language string) string {
	if language == "" {
		language = "English"
	}
	if len(history) > 0 {
		historyJSON, err := json.MarshalIndent(history, "", "  ")
		if err != nil {
			historyJSON = []byte("[]")
		}
		return fmt.Sprintf(systemPromptWithHistory, historyJSON, language, language)
	}
	return fmt.Sprintf(systemPromptNewPatient, language, language)
}

// localized holds the canned user-facing texts per language. Unknown languages
// fall back to English.
type localized struct {
	languagePrompt     string
	namePrompt         string
	hospitalCodePrompt string
	invalidCode        string
	notQueued          string
	audioFailed        string
	dialogueFailed     string
	closing            string
}

var messages = map[string]localized{
	"English": {
		languagePrompt:     "Welcome to MediSwift. Please choose your preferred language: English / हिन्दी",
		namePrompt:         "Please tell me your full name so I can register you.",
		hospitalCodePrompt: "Thank you. Now please enter your hospital code.",
		invalidCode:        "That hospital code was not recognised. Please check it and try again.",
		notQueued:          "You are not currently in the queue for a consultation. Please contact the hospital reception.",
		audioFailed:        "Sorry, I could not process your voice message. Please try again or type your message.",
		dialogueFailed:     "Sorry, something went wrong on my side. Please send your message again.",
		closing:            "Session Complete. Thank you. I have recorded all your information and forwarded it to the doctor. The doctor will attend to you shortly.",
	},
	"Hindi": {
		languagePrompt:     "MediSwift में आपका स्वागत है। कृपया अपनी भाषा चुनें: English / हिन्दी",
		namePrompt:         "कृपया पंजीकरण के लिए अपना पूरा नाम बताएं।",
		hospitalCodePrompt: "धन्यवाद। अब कृपया अपना अस्पताल कोड दर्ज करें।",
		invalidCode:        "यह अस्पताल कोड मान्य नहीं है। कृपया जांच कर दोबारा भेजें।",
		notQueued:          "आप अभी परामर्श की कतार में नहीं हैं। कृपया अस्पताल रिसेप्शन से संपर्क करें।",
		audioFailed:        "क्षमा करें, मैं आपका वॉयस संदेश समझ नहीं पाया। कृपया दोबारा भेजें या लिखकर बताएं।",
		dialogueFailed:     "क्षमा करें, कुछ गड़बड़ हो गई। कृपया अपना संदेश दोबारा भेजें।",
		closing:            "धन्यवाद। मैंने आपकी सभी जानकारी दर्ज कर ली है और उसे डॉक्टर को भेज दिया है। डॉक्टर कुछ ही मिनटों में आपसे मिलेंगे।",
	},
}

func textsFor(language string) localized {
	if m, ok := messages[language]; ok {
		return m
	}
	return messages["English"]
}

// ClosingMessage returns the localized end-of-session text. English sessions
// also carry the Hindi closing line, matching the bilingual hospital signage.
func ClosingMessage(language string) string {
	if language == "Hindi" {
		return messages["Hindi"].closing
	}
	return messages["English"].closing + "\n\n\"" + messages["Hindi"].closing + "\""
}

// StripSystemTurns returns the transcript without system entries, ready for
// summarization.
func StripSystemTurns(transcript []session.Turn) []session.Turn {
	out := make([]session.Turn, 0, len(transcript))
	for _, turn := range transcript {
		if turn.Role == session.RoleSystem {
			continue
		}
		out = append(out, turn)
	}
	return out
}
