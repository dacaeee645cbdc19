package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCardState(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want string
	}{
		{"nil is not in deck", nil, ""},
		{"empty is not in deck", []string{}, ""},
		{"single tag", []string{"learning"}, "learning"},
		{"redundant defers to second tag", []string{"redundant", "known"}, "known"},
		{"redundant alone stays", []string{"redundant"}, "redundant"},
		{"only first position is a meta tag", []string{"known", "redundant"}, "known"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCardState(tt.tags))
		})
	}
}

func TestVocabularyEntry_State(t *testing.T) {
	var nilEntry *VocabularyEntry
	assert.Empty(t, nilEntry.State())
	assert.False(t, nilEntry.InDeck())

	e := &VocabularyEntry{Spelling: "食べる", CardState: []string{"redundant", "due"}}
	assert.Equal(t, CardDue, e.State())
	assert.True(t, e.InDeck())
}

func TestMorphemeForm_Base(t *testing.T) {
	compound := CompoundForm("食べている", []string{"食べ", "ている"}, []string{"食べる"})
	assert.Equal(t, "食べる", compound.Base(0))
	assert.Equal(t, "ている", compound.Base(1), "missing base falls back to the part")

	assert.Equal(t, "猫", SimpleForm("猫", "猫").Base(0))
	assert.Empty(t, UnparsedForm("。").Base(0))
}
