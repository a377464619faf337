package dto

import "time"

type ModelListResponse struct {
	ChatModels    []string `json:"chat_models"`
	CaptionModels []string `json:"caption_models"`
}

type InstalledModelResponse struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
	Caption    bool      `json:"caption"`
}
