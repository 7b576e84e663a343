package model

import (
	"encoding/json"
	"time"
)

// AccountType distinguishes learners from teaching staff.
type AccountType string

const (
	AccountStudent    AccountType = "student"
	AccountInstructor AccountType = "instructor"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountStudent || t == AccountInstructor
}

// User is a registered account. Email is stored lowercased.
type User struct {
	ID           string      `json:"id"`
	FirstName    string      `json:"firstname"`
	LastName     string      `json:"lastname"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	AccountType  AccountType `json:"accountType"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// PublicUser is the projection of User returned to clients.
type PublicUser struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"firstname"`
	LastName    string      `json:"lastname"`
	AccountType AccountType `json:"accountType"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		AccountType: u.AccountType,
	}
}

// Session backs one refresh token. The refresh JWT carries ID as its jti.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Revoked   bool      `json:"revoked"`
}

// Active reports whether the session can still mint tokens at now.
func (s Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// EntryType is the kind of AI interaction recorded in history.
type EntryType string

const (
	EntryChat    EntryType = "chat"
	EntryQuiz    EntryType = "quiz"
	EntrySummary EntryType = "summary"
)

// AnonymousUserID owns history entries written without an identified user.
const AnonymousUserID = "anon"

// HistoryEntry records one AI interaction. Only the fields of its Type are
// set; CreatedAt is epoch milliseconds.
type HistoryEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      EntryType `json:"type"`
	CreatedAt int64     `json:"createdAt"`

	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Result   Quiz   `json:"result,omitempty"`
	Text     string `json:"text,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Payload is the type-specific part of an entry, stored as one JSON column.
type Payload struct {
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Result   Quiz   `json:"result,omitempty"`
	Text     string `json:"text,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

func (e HistoryEntry) Payload() Payload {
	return Payload{
		Question: e.Question,
		Answer:   e.Answer,
		Topic:    e.Topic,
		Result:   e.Result,
		Text:     e.Text,
		Summary:  e.Summary,
	}
}

// MarshalPayload encodes the type-specific fields of e.
func (e HistoryEntry) MarshalPayload() ([]byte, error) {
	return json.Marshal(e.Payload())
}

// UnmarshalPayload fills the type-specific fields of e from data.
func (e *HistoryEntry) UnmarshalPayload(data []byte) error {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	e.Question, e.Answer = p.Question, p.Answer
	e.Topic, e.Result = p.Topic, p.Result
	e.Text, e.Summary = p.Text, p.Summary
	return nil
}

// Question is one multiple-choice question; Answer is a 0-based index into
// Options.
type Question struct {
	Q       string   `json:"q"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// Quiz is a generated set of MCQs.
type Quiz []Question

// Stats summarises a user's history.
type Stats struct {
	Total        int            `json:"total"`
	Chats        int            `json:"chats"`
	Quizzes      int            `json:"quizzes"`
	Summaries    int            `json:"summaries"`
	LastActiveAt int64          `json:"lastActiveAt,omitempty"`
	Recent       []HistoryEntry `json:"recent"`
	Activity     []DayCount     `json:"activity"`
}

// DayCount is the number of interactions on one UTC day (YYYY-MM-DD).
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}
