package model

import (
	"sort"
	"time"
)

// ExamSession is the persisted snapshot of a timed exam attempt. The JSON
// layout is the device's stored active-session entry and is read by the
// dashboard collaborators, so field names must stay stable.
//
// Timestamps are Unix milliseconds. EndAt is computed exactly once when the
// session starts and restored verbatim on resume; it changes only when an
// entirely new session replaces this one.
type ExamSession struct {
	ExamID          string      `json:"examId"`
	License         string      `json:"license"`
	Endorsements    []string    `json:"endorsements"`
	Jurisdiction    string      `json:"jurisdiction"`
	QuestionIDs     []int       `json:"questionIds"`
	Answers         map[int]int `json:"answers"`
	Flags           []int       `json:"flags"`
	CurrentPosition int         `json:"currentPosition"`
	EndAt           int64       `json:"endAt"`
	StartedAt       int64       `json:"startedAt"`
}

// Profile reconstructs the driver profile captured at session start.
func (s *ExamSession) Profile() DriverProfile {
	return DriverProfile{
		License:      s.License,
		Endorsements: s.Endorsements,
		Jurisdiction: s.Jurisdiction,
	}
}

// Deadline returns EndAt as a time.Time.
func (s *ExamSession) Deadline() time.Time {
	return time.UnixMilli(s.EndAt)
}

// Active reports whether the session deadline is still in the future.
func (s *ExamSession) Active(now time.Time) bool {
	return s.EndAt > now.UnixMilli()
}

// Flagged reports whether a position is marked for later review.
func (s *ExamSession) Flagged(position int) bool {
	for _, f := range s.Flags {
		if f == position {
			return true
		}
	}
	return false
}

// ToggleFlag adds or removes a review flag. Flags are kept sorted so the
// persisted snapshot is deterministic.
func (s *ExamSession) ToggleFlag(position int) {
	for i, f := range s.Flags {
		if f == position {
			s.Flags = append(s.Flags[:i], s.Flags[i+1:]...)
			return
		}
	}
	s.Flags = append(s.Flags, position)
	sort.Ints(s.Flags)
}

// SelectAnswerRequest records or replaces the answer at a position.
// Pointers keep "position 0" and "option 0" distinguishable from absent.
type SelectAnswerRequest struct {
	Position    *int `json:"position" binding:"required,min=0"`
	OptionIndex *int `json:"option_index" binding:"required,min=0,max=3"`
}

// ToggleFlagRequest toggles the review flag at a position.
type ToggleFlagRequest struct {
	Position *int `json:"position" binding:"required,min=0"`
}

// GoToRequest moves the current position.
type GoToRequest struct {
	Position *int `json:"position" binding:"required,min=0"`
}
