// Package study implements the AI study tools (ask, quiz, summarize) and
// the per-user history built from them.
package study

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"studynotion/internal/activity"
	"studynotion/internal/apperr"
	"studynotion/internal/llm"
	"studynotion/internal/logging"
	"studynotion/internal/metrics"
	"studynotion/internal/model"
	"studynotion/internal/quiz"
	"studynotion/internal/store"
)

// Completer is the provider call the tools depend on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (llm.Reply, error)
}

// EventPublisher receives one event per saved interaction.
type EventPublisher interface {
	Publish(ctx context.Context, e activity.Event)
}

// PromptMode controls how ask-ai questions reach the model.
type PromptMode string

const (
	PromptVerbatim PromptMode = "verbatim"
	PromptExplain  PromptMode = "explain"
)

const noResponse = "No response"

// Caller is who is making a request. Authenticated is false for requests
// without a bearer token.
type Caller struct {
	UserID        string
	Authenticated bool
}

// Service runs the study tools.
type Service struct {
	llm       Completer
	history   store.History
	publisher EventPublisher
	tracker   activity.Tracker
	clock     *Clock
	mode      PromptMode
	metrics   *metrics.Metrics
	log       logging.Logger
}

// Deps bundles the collaborators of Service. Publisher, Tracker and Metrics
// are optional.
type Deps struct {
	LLM        Completer
	History    store.History
	Publisher  EventPublisher
	Tracker    activity.Tracker
	Metrics    *metrics.Metrics
	Logger     logging.Logger
	PromptMode PromptMode
}

func NewService(d Deps) *Service {
	mode := d.PromptMode
	if mode != PromptExplain {
		mode = PromptVerbatim
	}
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Service{
		llm:       d.LLM,
		history:   d.History,
		publisher: d.Publisher,
		tracker:   d.Tracker,
		clock:     NewClock(),
		mode:      mode,
		metrics:   d.Metrics,
		log:       log,
	}
}

// ResolveUser decides whose history a tool call is written to. A token's
// subject wins and must match any userId in the body; without a token only
// the anonymous user is allowed.
func ResolveUser(caller Caller, bodyUserID string) (string, error) {
	bodyUserID = strings.TrimSpace(bodyUserID)
	if caller.Authenticated {
		if bodyUserID != "" && bodyUserID != caller.UserID {
			return "", apperr.Forbidden("userId does not match token")
		}
		return caller.UserID, nil
	}
	if bodyUserID != "" && bodyUserID != model.AnonymousUserID {
		return "", apperr.Auth("sign in to save history for a user")
	}
	return model.AnonymousUserID, nil
}

// Ask sends a question to the model and records the answer.
func (s *Service) Ask(ctx context.Context, caller Caller, question, bodyUserID string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", apperr.Validation("question is required")
	}
	userID, err := ResolveUser(caller, bodyUserID)
	if err != nil {
		return "", err
	}

	prompt := question
	if s.mode == PromptExplain {
		prompt = "Explain in easy language: " + question
	}
	reply, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", failure("AI request failed", err)
	}
	answer, ok := reply.Answer()
	if !ok {
		return "", apperr.Provider("AI provider error", reply.Detail())
	}
	if answer == "" {
		answer = noResponse
	}

	if err := s.record(ctx, model.HistoryEntry{
		UserID:   userID,
		Type:     model.EntryChat,
		Question: question,
		Answer:   answer,
	}); err != nil {
		return "", err
	}
	return answer, nil
}

// QuizResult is either a parsed quiz or the raw reply that failed to parse.
type QuizResult struct {
	Parsed bool
	Quiz   model.Quiz
	Raw    string
}

// Quiz asks the model for num MCQs about topic. An unparseable reply is not
// an error: it comes back raw and nothing is recorded.
func (s *Service) Quiz(ctx context.Context, caller Caller, topic string, num int, bodyUserID string) (QuizResult, error) {
	if strings.TrimSpace(topic) == "" {
		return QuizResult{}, apperr.Validation("topic is required")
	}
	userID, err := ResolveUser(caller, bodyUserID)
	if err != nil {
		return QuizResult{}, err
	}

	reply, err := s.llm.Complete(ctx, quiz.Prompt(topic, num))
	if err != nil {
		return QuizResult{}, failure("Quiz generation failed", err)
	}
	res := quiz.Parse(reply.Content())
	s.metrics.QuizParsed(res.State.String())
	if res.State != quiz.Parsed {
		s.log.Warn(ctx, "quiz reply not parseable", "topic", topic, "status", reply.Status)
		return QuizResult{Raw: res.Raw}, nil
	}

	if err := s.record(ctx, model.HistoryEntry{
		UserID: userID,
		Type:   model.EntryQuiz,
		Topic:  topic,
		Result: res.Quiz,
	}); err != nil {
		return QuizResult{}, err
	}
	return QuizResult{Parsed: true, Quiz: res.Quiz}, nil
}

// Summarize condenses text and records the summary.
func (s *Service) Summarize(ctx context.Context, caller Caller, text, bodyUserID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperr.Validation("text is required")
	}
	userID, err := ResolveUser(caller, bodyUserID)
	if err != nil {
		return "", err
	}

	prompt := "Summarize the following text in simple words, short and bulleted if possible. Return only the summary:\n\n" + text
	reply, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", failure("Summarize failed", err)
	}
	summary, ok := reply.Answer()
	if !ok {
		return "", apperr.Provider("AI provider error", reply.Detail())
	}
	if summary == "" {
		summary = noResponse
	}

	if err := s.record(ctx, model.HistoryEntry{
		UserID:  userID,
		Type:    model.EntrySummary,
		Text:    text,
		Summary: summary,
	}); err != nil {
		return "", err
	}
	return summary, nil
}

func (s *Service) record(ctx context.Context, e model.HistoryEntry) error {
	id, err := uuid.NewV7()
	if err != nil {
		return apperr.Internal("could not save history", err)
	}
	e.ID = id.String()
	e.CreatedAt = s.clock.Next()
	if err := s.history.AppendHistory(ctx, e); err != nil {
		s.log.Error(ctx, "append history failed", "user_id", e.UserID, "type", string(e.Type), "error", err)
		return apperr.Internal("could not save history", err)
	}
	s.log.Info(ctx, "interaction recorded", "user_id", e.UserID, "type", string(e.Type), "entry_id", e.ID)
	if s.publisher != nil {
		s.publisher.Publish(ctx, activity.Event{EntryID: e.ID, UserID: e.UserID, Type: e.Type, At: e.CreatedAt})
	}
	return nil
}

// failure wraps a provider call error under the operation's message,
// keeping its kind when it is a config or network failure.
func failure(msg string, err error) error {
	kind := apperr.KindOf(err)
	if kind != apperr.KindConfig && kind != apperr.KindNetwork {
		kind = apperr.KindInternal
	}
	return &apperr.Error{Kind: kind, Message: msg, Err: err}
}
