package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewExamIDFormat(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		id := NewExamID(rng)
		assert.True(t, ValidExamID(id), "generated id %q must match the display format", id)
	}
}

func TestValidExamID(t *testing.T) {
	assert.True(t, ValidExamID("DMV-123-4567-89"))
	assert.False(t, ValidExamID("DMV-12-4567-89"))
	assert.False(t, ValidExamID("dmv-123-4567-89"))
	assert.False(t, ValidExamID("DMV-123-4567-890"))
	assert.False(t, ValidExamID(""))
	assert.False(t, ValidExamID("DMV-abc-defg-hi"))
}
