package bank

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBank(n int) *Bank {
	questions := make([]model.Question, 0, n)
	for i := 1; i <= n; i++ {
		q := model.Question{
			ID:             i,
			LicenseClasses: []string{"A"},
			Category:       "general-knowledge",
			Text:           fmt.Sprintf("Question %d", i),
			Options:        []string{"a", "b", "c", "d"},
			CorrectIndex:   i % 4,
			Explanation:    "because",
		}
		if i%2 == 0 {
			q.LicenseClasses = []string{"A", "B"}
		}
		if i%10 == 0 {
			q.Endorsements = []string{"H"}
		}
		if i%5 == 0 {
			q.Category = "air-brakes"
		}
		questions = append(questions, q)
	}
	return New(questions)
}

func TestEligibleSampleFiltersLicenseAndEndorsements(t *testing.T) {
	b := buildBank(100)
	rng := rand.New(rand.NewSource(1))

	profile := model.DriverProfile{License: "B", Endorsements: nil, Jurisdiction: "TX"}
	sample := b.EligibleSample(profile, 30, rng)
	require.Len(t, sample, 30)

	for _, q := range sample {
		assert.True(t, q.AllowsLicense("B"), "question %d not offered to class B", q.ID)
		assert.Empty(t, q.Endorsements, "question %d requires an endorsement the profile lacks", q.ID)
	}
}

func TestEligibleSampleEndorsementHolderGetsTaggedQuestions(t *testing.T) {
	b := buildBank(100)
	rng := rand.New(rand.NewSource(1))

	profile := model.DriverProfile{License: "A", Endorsements: []string{"H"}, Jurisdiction: "TX"}
	sample := b.EligibleSample(profile, 100, rng)

	// All 100 questions allow class A, including the endorsement-tagged ones.
	assert.Len(t, sample, 100)
}

func TestEligibleSampleUnfilteredFallback(t *testing.T) {
	b := buildBank(40)
	rng := rand.New(rand.NewSource(7))

	// No question in the bank allows class D: the sample must fall back to
	// the whole bank instead of returning an empty exam.
	profile := model.DriverProfile{License: "D", Jurisdiction: "TX"}
	sample := b.EligibleSample(profile, 70, rng)
	assert.Len(t, sample, 40) // capped at pool size
}

func TestEligibleSampleDeterministicWithSeed(t *testing.T) {
	b := buildBank(100)
	profile := model.DriverProfile{License: "A", Jurisdiction: "TX"}

	first := b.EligibleSample(profile, 70, rand.New(rand.NewSource(42)))
	second := b.EligibleSample(profile, 70, rand.New(rand.NewSource(42)))

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestResolveAllRejectsUnknownID(t *testing.T) {
	b := buildBank(10)

	resolved, ok := b.ResolveAll([]int{1, 2, 3})
	require.True(t, ok)
	assert.Len(t, resolved, 3)

	_, ok = b.ResolveAll([]int{1, 999})
	assert.False(t, ok)
}

func TestCategorySampleRestrictsToCategory(t *testing.T) {
	b := buildBank(100)
	rng := rand.New(rand.NewSource(3))

	profile := model.DriverProfile{License: "A", Jurisdiction: "TX"}
	pool := b.CategorySample(profile, "air-brakes", rng)
	require.NotEmpty(t, pool)
	for _, q := range pool {
		assert.Equal(t, "air-brakes", q.Category)
	}
}

func TestCategories(t *testing.T) {
	b := buildBank(100)
	cats := b.Categories()
	require.Len(t, cats, 2)
	assert.Equal(t, "air-brakes", cats[0].Name)
	assert.Equal(t, "general-knowledge", cats[1].Name)
	assert.Equal(t, 100, cats[0].Questions+cats[1].Questions)
}
