package entity

import "strings"

// Character is a persona preset shared by all sessions.
type Character struct {
	Key                string
	Name               string
	Role               string
	SystemPrompt       string
	ImageCaptionPrompt string
	UserProfile        *string
}

// CharacterKeyFromName derives the registry key from a display name.
func CharacterKeyFromName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, " ", "_")
	return strings.ReplaceAll(key, "-", "_")
}
