package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageCode  MessageType = "code"
	MessageImage MessageType = "image"
)

// DefaultTitle is the placeholder a session keeps until its first user message.
const DefaultTitle = "New Chat"

// GroundingSource is a citation returned by a retrieval-augmented call.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Message is one entry of a session transcript. Timestamps are unix milliseconds.
type Message struct {
	ID          string            `json:"id"`
	Role        Role              `json:"role"`
	Content     string            `json:"content"`
	Timestamp   int64             `json:"timestamp"`
	Type        MessageType       `json:"type"`
	ModelID     string            `json:"modelId,omitempty"`
	ImageURL    string            `json:"imageUrl,omitempty"`
	IsStreaming bool              `json:"isStreaming,omitempty"`
	Sources     []GroundingSource `json:"sources,omitempty"`
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	if m.Sources != nil {
		m.Sources = append([]GroundingSource(nil), m.Sources...)
	}
	return m
}

// ChatSession is an ordered transcript. The session list owns its messages exclusively.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt int64     `json:"updatedAt"`
}

func NewChatSession(id string) *ChatSession {
	return &ChatSession{
		ID:        id,
		Title:     DefaultTitle,
		Messages:  make([]Message, 0, 8),
		UpdatedAt: NowMillis(),
	}
}

// AddMessage appends m. The first user message names a session that still carries
// the placeholder title; the title is never touched afterwards.
func (s *ChatSession) AddMessage(m Message, titleLimit int) {
	if len(s.Messages) == 0 && m.Role == RoleUser && s.Title == DefaultTitle {
		if t := Truncate(strings.TrimSpace(m.Content), titleLimit); t != "" {
			s.Title = t
		}
	}
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = NowMillis()
}

// FindMessage returns the index of the message with id, or -1.
func (s *ChatSession) FindMessage(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *ChatSession) Clone() ChatSession {
	cp := *s
	cp.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		cp.Messages[i] = m.Clone()
	}
	return cp
}

// Truncate cuts s to at most limit runes. limit <= 0 disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}

func NowMillis() int64 { return time.Now().UnixMilli() }
