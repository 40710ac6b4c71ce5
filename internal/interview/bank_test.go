package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultQuestions_CountAndIDs(t *testing.T) {
	qs := DefaultQuestions(Config{Type: "technical", QuestionCount: 3})
	assert.Len(t, qs, 3)
	assert.Equal(t, "q1", qs[0].ID)
	assert.Equal(t, "q3", qs[2].ID)
	for _, q := range qs {
		assert.Equal(t, "technical", q.Category)
		assert.NotEmpty(t, q.Text)
	}
}

func TestDefaultQuestions_CyclesWhenCountExceedsBank(t *testing.T) {
	qs := DefaultQuestions(Config{Type: "system_design", QuestionCount: 8})
	assert.Len(t, qs, 8)
	assert.Equal(t, qs[0].Text, qs[5].Text, "bank of five cycles")
	assert.NotEqual(t, qs[0].ID, qs[5].ID, "ids stay unique")
}

func TestDefaultQuestions_UnknownTypeFallsBack(t *testing.T) {
	qs := DefaultQuestions(Config{Type: "underwater-basket-weaving", QuestionCount: 2})
	assert.Len(t, qs, 2)
	assert.NotEmpty(t, qs[0].Text)
}

func TestDefaultQuestions_ZeroCountDefaults(t *testing.T) {
	qs := DefaultQuestions(Config{Type: "behavioral"})
	assert.Len(t, qs, 5)
}
