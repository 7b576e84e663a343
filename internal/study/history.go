package study

import (
	"context"
	"time"

	"studynotion/internal/activity"
	"studynotion/internal/apperr"
	"studynotion/internal/model"
)

const (
	recentLimit  = 3
	activityDays = 7
)

// History returns userID's entries, newest first. Only that user may read it.
func (s *Service) History(ctx context.Context, caller Caller, userID string) ([]model.HistoryEntry, error) {
	if !caller.Authenticated {
		return nil, apperr.Auth("missing bearer token")
	}
	if caller.UserID != userID {
		return nil, apperr.Forbidden("cannot read another user's history")
	}
	entries, err := s.history.ListHistory(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("could not load history", err)
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	return entries, nil
}

// Stats summarises userID's history the way the profile page shows it.
func (s *Service) Stats(ctx context.Context, caller Caller, userID string) (model.Stats, error) {
	entries, err := s.History(ctx, caller, userID)
	if err != nil {
		return model.Stats{}, err
	}

	stats := model.Stats{Total: len(entries)}
	for _, e := range entries {
		switch e.Type {
		case model.EntryChat:
			stats.Chats++
		case model.EntryQuiz:
			stats.Quizzes++
		case model.EntrySummary:
			stats.Summaries++
		}
	}
	if len(entries) > 0 {
		stats.LastActiveAt = entries[0].CreatedAt
	}
	n := min(recentLimit, len(entries))
	stats.Recent = append([]model.HistoryEntry{}, entries[:n]...)
	stats.Activity = s.activity(ctx, userID, entries)
	return stats, nil
}

// activity returns the last activityDays UTC days of interaction counts,
// oldest first. Tracker counts are preferred; history is the fallback.
func (s *Service) activity(ctx context.Context, userID string, entries []model.HistoryEntry) []model.DayCount {
	today := s.clock.Today()
	days := make([]string, activityDays)
	for i := range days {
		days[i] = today.AddDate(0, 0, i-activityDays+1).Format(time.DateOnly)
	}

	var counts map[string]int
	if s.tracker != nil {
		got, err := s.tracker.Days(ctx, userID, days)
		if err != nil {
			s.log.Warn(ctx, "activity tracker read failed", "user_id", userID, "error", err)
		} else {
			counts = got
		}
	}
	if len(counts) == 0 {
		counts = make(map[string]int)
		for _, e := range entries {
			counts[activity.DayOf(e.CreatedAt)]++
		}
	}

	out := make([]model.DayCount, len(days))
	for i, d := range days {
		out[i] = model.DayCount{Day: d, Count: counts[d]}
	}
	return out
}
