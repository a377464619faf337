package dto

import "time"

type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SessionResponse struct {
	SessionId    string       `json:"session_id"`
	CreatedAt    time.Time    `json:"created_at"`
	Character    string       `json:"character"`
	ChatModel    string       `json:"chat_model"`
	CaptionModel string       `json:"caption_model"`
	Transcript   []MessageDTO `json:"transcript"`
}

type InitialDataResponse struct {
	ChatModels           []string            `json:"chat_models"`
	CaptionModels        []string            `json:"caption_models"`
	SelectedChatModel    string              `json:"selected_chat_model"`
	SelectedCaptionModel string              `json:"selected_caption_model"`
	Characters           []CharacterListItem `json:"characters"`
	SelectedCharacter    string              `json:"selected_character"`
}

type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type SendMessageResponse struct {
	Response string `json:"response"`
	Message  string `json:"message"`
}

type UploadImageResponse struct {
	Caption  string `json:"caption"`
	Response string `json:"response"`
	Filename string `json:"filename"`
}

type SelectModelRequest struct {
	Model string `json:"model" validate:"required"`
}

type SelectedModelResponse struct {
	Model string `json:"model"`
}
