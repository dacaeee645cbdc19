package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

func tabeteiru() []domain.MorphemeForm {
	return []domain.MorphemeForm{
		domain.CompoundForm("食べている", []string{"食べ", "ている"}, []string{"食べる", "ている"}),
	}
}

func TestLemmaText(t *testing.T) {
	morphemes := Claim("食べている。", SortForms(tabeteiru()))

	text, refs := LemmaText(morphemes)

	assert.Equal(t, "食べる ている", text)
	assert.Equal(t, []LemmaRef{
		{LemmaStart: 0, LemmaEnd: 3, Position: 0, Length: 2},
		{LemmaStart: 4, LemmaEnd: 7, Position: 2, Length: 3},
	}, refs)
}

func TestProject(t *testing.T) {
	refs := []LemmaRef{
		{LemmaStart: 0, LemmaEnd: 3, Position: 0, Length: 2},
		{LemmaStart: 4, LemmaEnd: 7, Position: 2, Length: 3},
	}

	got := Project([]domain.VocabularyToken{
		tok(0, 0, 3),
		tok(1, 3, 1),
		tok(2, 1, 5),
	}, refs)

	assert.Equal(t, []domain.VocabularyToken{
		tok(0, 0, 2),
		tok(2, 0, 5),
	}, got)
}

func TestPlan_EndToEndLemmaLookup(t *testing.T) {
	group := domain.Group{Subtitles: []domain.SubtitleText{"食べている"}}
	plan := NewPlan(group, tabeteiru(), BasisLemma)

	require.Equal(t, []string{"食べる ている"}, plan.Texts)

	results, err := plan.Merge(
		[][]domain.VocabularyToken{{tok(0, 0, 3)}},
		[]domain.VocabularyEntry{entry(1, "食べる", "known")},
	)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, []segView{
		{"食べ", "known", 0},
		{"ている", "", -1},
	}, view(results[0]))
	assertInvariants(t, results[0])
}

func TestPlan_SurfaceLookupUsesOriginalText(t *testing.T) {
	group := domain.Group{Subtitles: []domain.SubtitleText{"猫だ", "食べている"}}
	plan := NewPlan(group, append(tabeteiru(), domain.SimpleForm("猫", "猫")), BasisSurface)

	assert.Equal(t, []string{"猫だ", "食べている"}, plan.Texts)

	results, err := plan.Merge(
		[][]domain.VocabularyToken{{tok(1, 0, 1)}, {tok(0, 0, 5)}},
		[]domain.VocabularyEntry{entry(1, "食べる", "learning"), entry(2, "猫", "new")},
	)
	require.NoError(t, err)

	assert.Equal(t, []segView{{"猫", "new", 0}, {"だ", "", -1}}, view(results[0]))
	assert.Equal(t, []segView{{"食べ", "learning", 0}, {"ている", "learning", 0}}, view(results[1]))
}

func TestPlan_MalformedBatch(t *testing.T) {
	group := domain.Group{Subtitles: []domain.SubtitleText{"猫", "犬"}}
	plan := NewPlan(group, nil, BasisSurface)

	tests := []struct {
		name   string
		tokens [][]domain.VocabularyToken
		vocab  []domain.VocabularyEntry
	}{
		{"token count mismatch", [][]domain.VocabularyToken{{}}, []domain.VocabularyEntry{entry(1, "猫")}},
		{"empty vocabulary", [][]domain.VocabularyToken{{}, {}}, nil},
		{"dangling index", [][]domain.VocabularyToken{{tok(4, 0, 1)}, {}}, []domain.VocabularyEntry{entry(1, "猫")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := plan.Merge(tt.tokens, tt.vocab)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, results)
		})
	}
}
