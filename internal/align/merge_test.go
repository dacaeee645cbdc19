package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

type segView struct {
	Text  string
	State string
	Span  int
}

func view(p domain.ProcessedSubtitle) []segView {
	out := make([]segView, len(p.Segments))
	for i, s := range p.Segments {
		out[i] = segView{s.Text, s.State, s.Span}
	}
	return out
}

func entry(vid int, spelling string, state ...string) domain.VocabularyEntry {
	return domain.VocabularyEntry{VID: vid, Spelling: spelling, CardState: state}
}

func tok(index, position, length int) domain.VocabularyToken {
	return domain.VocabularyToken{VocabularyIndex: index, Position: position, Length: length}
}

func assertInvariants(t *testing.T, p domain.ProcessedSubtitle) {
	t.Helper()
	assert.Equal(t, p.OriginalText, p.Text(), "segments reconstruct the original")
	for i := 1; i < len(p.Vocabulary); i++ {
		assert.LessOrEqual(t, p.Vocabulary[i-1].End(), p.Vocabulary[i].Position, "spans are sorted and disjoint")
	}
	pos := 0
	for _, s := range p.Segments {
		assert.Equal(t, pos, s.Position)
		assert.Equal(t, domain.UnitLen(s.Text), s.Length)
		pos += s.Length
		if s.Span >= 0 {
			span := p.Vocabulary[s.Span]
			assert.GreaterOrEqual(t, s.Position, span.Position)
			assert.LessOrEqual(t, s.Position+s.Length, span.End(), "segment stays inside its span")
		}
	}
}

func TestMerge_CompoundClipping(t *testing.T) {
	text := "ABCDEF"
	morphemes := Claim(text, SortForms([]domain.MorphemeForm{
		domain.CompoundForm("ABCDEF", []string{"AB", "CD", "EF"}, []string{"AB", "CD", "EF"}),
	}))
	tokens := []domain.VocabularyToken{{VocabularyIndex: 0, Position: 2, Length: 2}}
	vocab := []domain.VocabularyEntry{entry(1, "CDX", "learning")}

	got, err := Merge(text, morphemes, tokens, vocab)
	require.NoError(t, err)

	assert.Equal(t, []segView{
		{"AB", "", -1},
		{"CD", "learning", 0},
		{"EF", "", -1},
	}, view(got))
	assertInvariants(t, got)
}

func TestMerge_SpanAcrossCompoundBoundary(t *testing.T) {
	text := "ABCDEF"
	morphemes := Claim(text, SortForms([]domain.MorphemeForm{
		domain.CompoundForm("ABCDEF", []string{"AB", "CD", "EF"}, []string{"AB", "CD", "EF"}),
	}))
	tokens := []domain.VocabularyToken{{VocabularyIndex: 0, Position: 1, Length: 2}}
	vocab := []domain.VocabularyEntry{entry(1, "BC", "new")}

	got, err := Merge(text, morphemes, tokens, vocab)
	require.NoError(t, err)

	assert.Equal(t, []segView{
		{"A", "", -1},
		{"B", "new", 0},
		{"C", "new", 0},
		{"DEF", "", -1},
	}, view(got))
	assertInvariants(t, got)
}

func TestMerge_ExactSpellingBeatsPositionalMatch(t *testing.T) {
	text := "はしを"
	morphemes := Claim(text, SortForms([]domain.MorphemeForm{
		domain.SimpleForm("はし", "箸"),
		domain.SimpleForm("を", "を"),
	}))
	vocab := []domain.VocabularyEntry{
		entry(10, "橋", "known"),
		entry(11, "箸", "new"),
	}
	tokens := []domain.VocabularyToken{
		{VocabularyIndex: 0, Position: 0, Length: 2},
		{VocabularyIndex: 1, Position: 0, Length: 1},
	}

	got, err := Merge(text, morphemes, tokens, vocab)
	require.NoError(t, err)

	require.Len(t, got.Vocabulary, 1, "the shorter token at the same position is clipped away")
	require.NotEmpty(t, got.Segments)
	assert.Equal(t, "はし", got.Segments[0].Text)
	assert.Equal(t, "new", got.Segments[0].State, "entry spelled like the base form wins")
	assertInvariants(t, got)
}

func TestMerge_RedundantStateDefersToSecondTag(t *testing.T) {
	text := "猫"
	morphemes := Claim(text, SortForms([]domain.MorphemeForm{domain.SimpleForm("猫", "猫")}))
	vocab := []domain.VocabularyEntry{entry(1, "猫", "redundant", "known")}

	got, err := Merge(text, morphemes, []domain.VocabularyToken{tok(0, 0, 1)}, vocab)
	require.NoError(t, err)

	assert.Equal(t, "known", got.Segments[0].State)
}

func TestMerge_UnparsedPartsStayPlain(t *testing.T) {
	text := "猫。"
	morphemes := Claim(text, SortForms([]domain.MorphemeForm{domain.SimpleForm("猫", "猫")}))
	vocab := []domain.VocabularyEntry{entry(1, "猫", "known")}

	got, err := Merge(text, morphemes, []domain.VocabularyToken{tok(0, 0, 2)}, vocab)
	require.NoError(t, err)

	assert.Equal(t, []segView{{"猫", "known", 0}, {"。", "", 0}}, view(got))
}

func TestMerge_SurrogateBoundaries(t *testing.T) {
	text := "𠮷野家"
	morphemes := Claim(text, nil)
	vocab := []domain.VocabularyEntry{entry(1, "𠮷野", "known")}

	tests := []struct {
		name  string
		token domain.VocabularyToken
		want  []domain.Segment
	}{
		{
			name:  "start inside a pair snaps back",
			token: tok(0, 1, 2),
			want: []domain.Segment{
				{Text: "𠮷", Position: 0, Length: 2, Span: 0},
				{Text: "野", Position: 2, Length: 1, Span: 0},
				{Text: "家", Position: 3, Length: 1, Span: -1},
			},
		},
		{
			name:  "span inside a single pair is dropped",
			token: tok(0, 0, 1),
			want: []domain.Segment{
				{Text: "𠮷野家", Position: 0, Length: 4, Span: -1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Merge(text, morphemes, []domain.VocabularyToken{tt.token}, vocab)
			require.NoError(t, err)
			assertInvariants(t, got)

			require.Len(t, got.Segments, len(tt.want))
			for i, want := range tt.want {
				seg := got.Segments[i]
				assert.Equal(t, want.Text, seg.Text)
				assert.Equal(t, want.Position, seg.Position)
				assert.Equal(t, want.Length, seg.Length)
				assert.Equal(t, want.Span, seg.Span)
			}
		})
	}
}

func TestMerge_OverlappingTokensAreClipped(t *testing.T) {
	text := "abcdef"
	vocab := []domain.VocabularyEntry{entry(1, "abcd", "known"), entry(2, "cdef", "new")}
	tokens := []domain.VocabularyToken{
		{VocabularyIndex: 1, Position: 2, Length: 4},
		{VocabularyIndex: 0, Position: 0, Length: 4},
		{VocabularyIndex: 0, Position: 5, Length: 10},
	}

	got, err := Merge(text, Claim(text, nil), tokens, vocab)
	require.NoError(t, err)

	require.Len(t, got.Vocabulary, 2)
	assert.Equal(t, 0, got.Vocabulary[0].Position)
	assert.Equal(t, 4, got.Vocabulary[1].Position)
	assert.Equal(t, 2, got.Vocabulary[1].Length)
	assertInvariants(t, got)
}

func TestMerge_WithoutMorphemesUsesSpanEntry(t *testing.T) {
	got, err := Merge("猫だ", nil, []domain.VocabularyToken{tok(0, 0, 1)}, []domain.VocabularyEntry{entry(1, "猫", "due")})
	require.NoError(t, err)

	assert.Equal(t, []segView{{"猫", "due", 0}, {"だ", "", -1}}, view(got))
}

func TestMerge_IndexOutOfRange(t *testing.T) {
	_, err := Merge("猫", nil, []domain.VocabularyToken{{VocabularyIndex: 3, Position: 0, Length: 1}}, nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMerge_LosslessOverManyTokenLayouts(t *testing.T) {
	text := "𠮷野家で食べている猫。"
	n := domain.UnitLen(text)
	morphemes := Claim(text, SortForms([]domain.MorphemeForm{
		domain.SimpleForm("𠮷野家", "𠮷野家"),
		domain.SimpleForm("で", "で"),
		domain.CompoundForm("食べている", []string{"食べ", "て", "いる"}, []string{"食べる", "て", "いる"}),
		domain.SimpleForm("猫", "猫"),
	}))
	vocab := []domain.VocabularyEntry{entry(1, "食べる", "known"), entry(2, "猫", "new")}

	for start := -1; start <= n; start++ {
		for length := 0; length <= 4; length++ {
			tokens := []domain.VocabularyToken{
				{VocabularyIndex: 0, Position: start, Length: length},
				{VocabularyIndex: 1, Position: start + 1, Length: 2},
			}
			got, err := Merge(text, morphemes, tokens, vocab)
			require.NoError(t, err)
			assertInvariants(t, got)
		}
	}
}
