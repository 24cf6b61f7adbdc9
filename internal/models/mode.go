package models

// Mode classifies a model or endpoint; relay timeouts are keyed by it.
type Mode int

// Mode values.
const (
	ModeUnknown Mode = iota
	ModeChatCompletions
	ModeCompletions
	ModeEmbeddings
	ModeModerations
	ModeImagesGenerations
	ModeEdits
	ModeAudioSpeech
	ModeAudioTranscription
	ModeAudioTranslation
	ModeRerank
	ModeAnthropic
	ModeResponses
)

var modeNames = map[Mode]string{
	ModeUnknown:            "unknown",
	ModeChatCompletions:    "chat_completions",
	ModeCompletions:        "completions",
	ModeEmbeddings:         "embeddings",
	ModeModerations:        "moderations",
	ModeImagesGenerations:  "images_generations",
	ModeEdits:              "edits",
	ModeAudioSpeech:        "audio_speech",
	ModeAudioTranscription: "audio_transcription",
	ModeAudioTranslation:   "audio_translation",
	ModeRerank:             "rerank",
	ModeAnthropic:          "anthropic",
	ModeResponses:          "responses",
}

// String returns the snake_case mode name.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}
