package model

// Character is one preset as stored in the characters file.
type Character struct {
	Name               string  `json:"name" yaml:"name"`
	Role               string  `json:"role" yaml:"role"`
	SystemPrompt       string  `json:"system_prompt" yaml:"system_prompt"`
	ImageCaptionPrompt string  `json:"image_caption_prompt" yaml:"image_caption_prompt"`
	UserProfile        *string `json:"user_profile,omitempty" yaml:"user_profile,omitempty"`
}

// CharacterDocument is the whole characters file, keyed by character key.
type CharacterDocument map[string]Character
