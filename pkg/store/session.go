package store

import (
	"sync"
	"time"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the conversation state owned by a single session id.
//
// All fields are guarded by the session's own mutex. Callers outside the
// conversation engine only ever see Snapshot copies.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time

	// THE TRANSCRIPT (system message, if any, is always index 0)
	transcript []Message

	// Key into the character registry; empty means no character selected
	characterKey string

	chatModel    string
	captionModel string
}

// Snapshot is an immutable copy of a session for responses.
type Snapshot struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	CharacterKey string    `json:"character_key"`
	ChatModel    string    `json:"chat_model"`
	CaptionModel string    `json:"caption_model"`
	Transcript   []Message `json:"transcript"`
}

func NewSession(id, chatModel, captionModel string) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    time.Now(),
		transcript:   []Message{},
		chatModel:    chatModel,
		captionModel: captionModel,
	}
}

// Lock serializes turns on this session. Every accessor below expects the
// caller to hold the lock.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

func (s *Session) Transcript() []Message {
	return s.transcript
}

func (s *Session) Append(msg Message) {
	s.transcript = append(s.transcript, msg)
}

// ResetTo replaces the transcript. A nil system message leaves it empty.
func (s *Session) ResetTo(system *Message) {
	if system == nil {
		s.transcript = []Message{}
		return
	}
	s.transcript = []Message{*system}
}

func (s *Session) CharacterKey() string       { return s.characterKey }
func (s *Session) SetCharacterKey(key string) { s.characterKey = key }

func (s *Session) ChatModel() string         { return s.chatModel }
func (s *Session) SetChatModel(model string) { s.chatModel = model }

func (s *Session) CaptionModel() string         { return s.captionModel }
func (s *Session) SetCaptionModel(model string) { s.captionModel = model }

// SnapshotLocked copies the session state. The caller must hold the lock.
func (s *Session) SnapshotLocked() Snapshot {
	transcript := make([]Message, len(s.transcript))
	copy(transcript, s.transcript)
	return Snapshot{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		CharacterKey: s.characterKey,
		ChatModel:    s.chatModel,
		CaptionModel: s.captionModel,
		Transcript:   transcript,
	}
}

// Snapshot locks the session and copies it.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SnapshotLocked()
}
