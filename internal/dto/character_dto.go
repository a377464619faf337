package dto

type CharacterListItem struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type CharacterResponse struct {
	Key                string  `json:"key"`
	Name               string  `json:"name"`
	Role               string  `json:"role"`
	SystemPrompt       string  `json:"system_prompt"`
	ImageCaptionPrompt string  `json:"image_caption_prompt"`
	UserProfile        *string `json:"user_profile,omitempty"`
	Protected          bool    `json:"protected"`
}

type CreateCharacterRequest struct {
	Name               string `json:"name" validate:"required,max=100"`
	Description        string `json:"description" validate:"max=4000"`
	ImageCaptionPrompt string `json:"image_caption_prompt" validate:"max=2000"`
}

type UpdateCharacterRequest struct {
	Name               string  `json:"name" validate:"required,max=100"`
	Role               string  `json:"role" validate:"max=200"`
	SystemPrompt       string  `json:"system_prompt" validate:"required,max=4000"`
	ImageCaptionPrompt string  `json:"image_caption_prompt" validate:"max=2000"`
	UserProfile        *string `json:"user_profile,omitempty" validate:"omitempty,max=2000"`
}

// SelectCharacterRequest accepts either the key or the display name.
type SelectCharacterRequest struct {
	Key       string `json:"key"`
	Character string `json:"character"`
}

type SelectCharacterResponse struct {
	CharacterName string `json:"character_name"`
}
