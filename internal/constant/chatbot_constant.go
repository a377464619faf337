package constant

import "ollama-chat-be/internal/entity"

const (
	// Ollama Configuration
	OllamaDefaultBaseURL = "http://localhost:11434"
	OllamaChatEndpoint   = "/api/chat"
	OllamaTagsEndpoint   = "/api/tags"
	OllamaDeleteEndpoint = "/api/delete"
	FallbackChatModel    = "wizard-vicuna-uncensored:7b"
	FallbackCaptionModel = "aha2025/llama-joycaption-beta-one-hf-llava:Q4_K_M"

	DefaultImageInstruction = "Describe this image in detail, including what you see, the setting, objects, people, and any notable features."

	// Prompt fragments
	UserProfileClause   = "\nImportant: The user should be treated as follows: %s"
	ActionTurnFormat    = "(The user performs an action: %s)"
	ImageTurnFormat     = "user shows you this image: '%s'."
	CustomCharacterRole = "Custom Character"
	CustomSystemPrompt  = "You are %s. Engage naturally in conversation."
	CustomCaptionPrompt = "Describe this image"

	// Session cookie / header
	SessionCookieName = "session_id"
	SessionHeaderName = "X-Session-Id"
	SessionLocalsKey  = "session_id"
)

// CaptionModelKeywords mark a model as image-capable when found (case-insensitive) in its name.
var CaptionModelKeywords = []string{
	"llava", "vision", "caption", "clip", "blip", "vit", "joycaption",
	"moondream", "bakllava", "minicpm-v",
}

// DefaultCharacters seed an empty preset file. Their keys cannot be deleted.
var DefaultCharacters = map[string]entity.Character{
	"assistant": {
		Name:               "Assistant",
		Role:               "Helpful AI Assistant",
		SystemPrompt:       "You are a helpful AI assistant. Be friendly, informative, and helpful in all interactions.",
		ImageCaptionPrompt: "Describe this image accurately and concisely",
	},
	"creative_writer": {
		Name:               "Creative Writer",
		Role:               "Creative Writing Specialist",
		SystemPrompt:       "You are a creative writer with vivid imagination. Use descriptive language and engage in storytelling.",
		ImageCaptionPrompt: "Describe this image with creative and poetic language",
	},
	"code_helper": {
		Name:               "Code Helper",
		Role:               "Programming Assistant",
		SystemPrompt:       "You are a programming assistant. Help with coding questions, debug issues, and explain technical concepts.",
		ImageCaptionPrompt: "Analyze this image for any technical or coding-related content",
	},
	"researcher": {
		Name:               "Researcher",
		Role:               "Research Assistant",
		SystemPrompt:       "You are a research-focused assistant for academic work. Provide detailed, analytical responses.",
		ImageCaptionPrompt: "Provide a detailed, analytical description of this image",
	},
}

// IsProtectedCharacter reports whether key is one of the built-in defaults.
func IsProtectedCharacter(key string) bool {
	_, ok := DefaultCharacters[key]
	return ok
}
