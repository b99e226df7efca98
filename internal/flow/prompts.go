package flow

import (
	"github.com/BTreeMap/IntakeLine/internal/models"
)

// Sub-stages carried in the field parameter of the callback URL.
const (
	fieldName        = "name"
	fieldNameConfirm = "name_confirm"
	fieldHouse       = "house"
	fieldStreet      = "street"
	fieldCity        = "city"
	fieldZip         = "zip"
	fieldJob         = "job"
	fieldJobConfirm  = "job_confirm"
	fieldTiming      = "timing"
	fieldCallback    = "callback"
)

// Webhook paths the machine points the platform at.
const (
	MenuPath         = "/voice-menu"
	ResumeChoicePath = "/resume-choice"
	VoicemailPath    = "/twilio/voicemail"
)

const (
	textGreetingMenu    = "If this is an emergency, press 1. To leave details for an estimate, press 2."
	textAskName         = "First, please say your full name."
	textAskNameAgain    = "Please say your full name now."
	textConfirmDigits   = "Press 1 to confirm, or press 2 to repeat."
	textConfirmAgain    = "Please press 1 to confirm, or press 2 to repeat."
	textNameThanks      = "Thanks."
	textNameUnconfirmed = "Thanks. We'll continue and we can confirm spelling later."

	textAddressIntro = "Alright, let's get the service address step by step. " +
		"I'll ask for the house number, then the street name, then the city, and finally the zip code."

	textAskHouse = "First, please enter the house or building number, then press pound. " +
		"For example: 4 5 1 5, then pound."

	textBadHouse    = "Sorry, I didn't get the house number. Please try again, then press pound."
	textAskStreet   = "Great. Now please say the street name. For example: Main Street, Oak Street, or Pine Avenue."
	textAskCity     = "Thanks. Now please say the city."
	textAskZip      = "Finally, please enter the five digit zip code."
	textBadZip      = "Sorry, please enter a five digit zip code."
	textBadSpeech   = "Sorry, I need you to say that out loud."
	textAskJob      = "Perfect. What service do you need today?"
	textAskTiming   = "Please tell me when you need the service."
	textAskCallback = "What is the best callback phone number? You can say it or enter it on the keypad."

	textSilenceHangup = "Sorry, I'm having trouble hearing you. We'll follow up shortly."

	textComplete = "All set. We've received your request and our team will follow up shortly. " +
		"Thanks for choosing us. Goodbye."

	textResumeOffer = "Looks like we were in the middle of a request. " +
		"I will resume where we left off. Press 2 to start over."

	textResuming = "Resuming your request now."
	textRestart  = "No problem. We'll start over."

	textConnecting = "Okay. Connecting you now."

	textVoicemailPrompt = "We're unable to connect you right now. " +
		"Please leave your name, address, and details after the beep."

	textVoicemailThanks = "Thank you. Your message has been recorded. Goodbye."

	hintsName   = "first name last name full name"
	hintsStreet = "Main Street, Oak Street, Pine Avenue, Court, Road, Drive, Lane"
	hintsCity   = "Bowie, Upper Marlboro, Lanham, Crofton, Washington, Baltimore"
)

func speechPrompt(step int, field, text, hints string) models.Instruction {
	return models.NewPrompt(models.Prompt{
		Text:     text,
		Input:    models.InputSpeech,
		Hints:    hints,
		Timeout:  8,
		NextStep: step,
		Field:    field,
	})
}

func confirmPrompt(step int, field, text string) models.Instruction {
	return models.NewPrompt(models.Prompt{
		Text:      text,
		Input:     models.InputDTMF,
		NumDigits: 1,
		Timeout:   6,
		NextStep:  step,
		Field:     field,
	})
}

func heardPrompt(step int, field, heard string) models.Instruction {
	return confirmPrompt(step, field, "I heard: "+heard+". "+textConfirmDigits)
}

func housePrompt() models.Instruction {
	return models.NewPrompt(models.Prompt{
		Text:        textAskHouse,
		Input:       models.InputDTMF,
		FinishOnKey: "#",
		Timeout:     10,
		NextStep:    models.StepAddress,
		Field:       fieldHouse,
	})
}

func zipPrompt() models.Instruction {
	return models.NewPrompt(models.Prompt{
		Text:      textAskZip,
		Input:     models.InputDTMF,
		NumDigits: 5,
		Timeout:   10,
		NextStep:  models.StepAddress,
		Field:     fieldZip,
	})
}

func callbackPrompt() models.Instruction {
	return models.NewPrompt(models.Prompt{
		Text:        textAskCallback,
		Input:       models.InputDTMFOrSay,
		FinishOnKey: "#",
		Timeout:     8,
		NextStep:    models.StepCallback,
		Field:       fieldCallback,
	})
}

// stageOf returns the step and sub-stage the session is waiting on.
// The step always comes from field-presence inference.
func stageOf(s *models.CallSession) (int, string) {
	step := s.InferStep()
	switch step {
	case models.StepName:
		if s.NameCandidate != "" {
			return step, fieldNameConfirm
		}
		return step, fieldName
	case models.StepAddress:
		switch {
		case s.AddrNumber == "":
			return step, fieldHouse
		case s.AddrStreet == "":
			return step, fieldStreet
		case s.AddrCity == "":
			return step, fieldCity
		default:
			return step, fieldZip
		}
	case models.StepJob:
		if s.JobCandidate != "" {
			return step, fieldJobConfirm
		}
		return step, fieldJob
	case models.StepTiming:
		return step, fieldTiming
	default:
		return step, fieldCallback
	}
}

// promptFor renders the prompt for the stage the session is waiting on.
// It reports whether the session changed (the address intro is marked
// played the first time the house number is asked for).
func promptFor(s *models.CallSession) (models.Instruction, bool) {
	step, field := stageOf(s)
	switch field {
	case fieldName:
		return speechPrompt(step, field, textAskNameAgain, hintsName), false
	case fieldNameConfirm:
		return heardPrompt(step, field, s.NameCandidate), false
	case fieldHouse:
		if !s.AddressIntroPlayed {
			s.AddressIntroPlayed = true
			return housePrompt().Say(textAddressIntro), true
		}
		return housePrompt(), false
	case fieldStreet:
		return speechPrompt(step, field, textAskStreet, hintsStreet), false
	case fieldCity:
		return speechPrompt(step, field, textAskCity, hintsCity), false
	case fieldZip:
		return zipPrompt(), false
	case fieldJob:
		return speechPrompt(step, field, textAskJob, ""), false
	case fieldJobConfirm:
		return heardPrompt(step, field, s.JobCandidate), false
	case fieldTiming:
		return speechPrompt(step, field, textAskTiming, ""), false
	default:
		return callbackPrompt(), false
	}
}
