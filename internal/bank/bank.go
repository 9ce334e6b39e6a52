// Package bank holds the immutable in-memory question bank the session
// engines sample from. The bank is loaded once at startup and never mutated.
package bank

import (
	"math/rand"
	"sort"

	"github.com/haulpass/cdl-backend/internal/model"
)

// Bank is a read-only, queryable collection of exam questions.
type Bank struct {
	questions []model.Question
	byID      map[int]*model.Question
}

// New builds a Bank from a loaded question slice.
func New(questions []model.Question) *Bank {
	b := &Bank{
		questions: questions,
		byID:      make(map[int]*model.Question, len(questions)),
	}
	for i := range questions {
		b.byID[questions[i].ID] = &questions[i]
	}
	return b
}

// Size returns the total number of questions in the bank.
func (b *Bank) Size() int {
	return len(b.questions)
}

// Resolve looks up a question by id.
func (b *Bank) Resolve(id int) (*model.Question, bool) {
	q, ok := b.byID[id]
	return q, ok
}

// ResolveAll resolves an ordered id list. The second return is false if any
// id is unknown — callers treat that as an invalid persisted snapshot.
func (b *Bank) ResolveAll(ids []int) ([]*model.Question, bool) {
	out := make([]*model.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := b.byID[id]
		if !ok {
			return nil, false
		}
		out = append(out, q)
	}
	return out, true
}

// EligibleSample filters the bank by the profile's license class and
// endorsements, shuffles with the provided random source, and returns up to
// n questions. An empty eligible pool falls back to an unfiltered sample so
// a candidate is never blocked from entering the exam; a pool smaller than
// n caps the sample at the pool size.
func (b *Bank) EligibleSample(profile model.DriverProfile, n int, rng *rand.Rand) []model.Question {
	pool := make([]model.Question, 0, len(b.questions))
	for i := range b.questions {
		q := &b.questions[i]
		if q.AllowsLicense(profile.License) && q.EndorsementSatisfied(profile.Endorsements) {
			pool = append(pool, *q)
		}
	}

	// Reference fallback: an over-restrictive profile samples the whole bank
	// rather than producing an empty exam.
	if len(pool) == 0 {
		pool = append(pool, b.questions...)
	}

	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}

// CategorySample returns the shuffled pool of eligible questions in one
// category. Used by the drill station.
func (b *Bank) CategorySample(profile model.DriverProfile, category string, rng *rand.Rand) []model.Question {
	pool := make([]model.Question, 0)
	for i := range b.questions {
		q := &b.questions[i]
		if q.Category != category {
			continue
		}
		if q.AllowsLicense(profile.License) && q.EndorsementSatisfied(profile.Endorsements) {
			pool = append(pool, *q)
		}
	}

	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool
}

// Categories returns the sorted distinct topic labels with their question
// counts.
func (b *Bank) Categories() []CategoryCount {
	counts := make(map[string]int)
	for i := range b.questions {
		counts[b.questions[i].Category]++
	}

	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Questions: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CategoryCount pairs a topic label with its bank size.
type CategoryCount struct {
	Name      string `json:"name"`
	Questions int    `json:"questions"`
}
