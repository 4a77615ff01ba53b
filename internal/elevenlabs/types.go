package elevenlabs

// Voice is a single entry of the voice catalog.
type Voice struct {
	VoiceID     string            `json:"voice_id"`
	Name        string            `json:"name"`
	Category    string            `json:"category,omitempty"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Model is a single entry of the model catalog.
type Model struct {
	ModelID string `json:"model_id"`
	Name    string `json:"name"`
	IsMock  bool   `json:"is_mock,omitempty"`
}

// VoiceSettings contains optional voice configuration parameters.
type VoiceSettings struct {
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Style           *float64 `json:"style,omitempty"`
	UseSpeakerBoost *bool    `json:"use_speaker_boost,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
}

// SynthesizeRequest describes a TTS synthesis request.
type SynthesizeRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
}
