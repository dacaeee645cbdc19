package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/subtitlelens/subtitlelens-server/internal/dom"
	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

func processedNeko() domain.ProcessedSubtitle {
	neko := domain.VocabularyEntry{VID: 1, SID: 10, Spelling: "猫", CardState: []string{domain.CardKnown}}
	suki := domain.VocabularyEntry{VID: 2, SID: 20, Spelling: "好き"}
	return domain.ProcessedSubtitle{
		OriginalText: "猫が好き",
		Vocabulary: []domain.PlacedEntry{
			{VocabularyEntry: neko, Position: 0, Length: 1},
			{VocabularyEntry: suki, Position: 2, Length: 2},
		},
		Segments: []domain.Segment{
			{Text: "猫", Position: 0, Length: 1, State: domain.CardKnown, Entry: &neko, Span: 0, BaseForm: "猫"},
			{Text: "が", Position: 1, Length: 1, Span: -1},
			{Text: "好き", Position: 2, Length: 2, Entry: &suki, Span: 1, BaseForm: "好き"},
		},
	}
}

const nekoFragment = `<span class="cr-subtitle">` +
	`<span class="jpdb-segment" data-vid="1" data-sid="10" data-state="known" data-position="0">` +
	`<span class="jpdb-word jpdb-known" data-vid="1" data-sid="10" data-state="known" data-position="0">猫</span></span>` +
	`<span class="jpdb-word jpdb-unparsed" data-state="unparsed" data-position="1">が</span>` +
	`<span class="jpdb-segment" data-vid="2" data-sid="20" data-state="not-in-deck" data-position="2">` +
	`<span class="jpdb-word jpdb-not-in-deck" data-vid="2" data-sid="20" data-state="not-in-deck" data-position="2">好き</span></span>` +
	`</span>`

func parse(t *testing.T, src string) (*dom.Document, *html.Node) {
	t.Helper()
	doc, err := dom.ParseDocument(strings.NewReader(src))
	require.NoError(t, err)
	var el *html.Node
	_ = doc.View(func(root *html.Node) error {
		el = dom.QueryAll(root, "#line")[0]
		return nil
	})
	return doc, el
}

func TestFragment(t *testing.T) {
	assert.Equal(t, nekoFragment, New(Options{}).Fragment(processedNeko()))
}

func TestFragment_GroupsPiecesOfOneSpan(t *testing.T) {
	taberu := domain.VocabularyEntry{VID: 3, SID: 30, Spelling: "食べる", CardState: []string{domain.CardLearning}}
	p := domain.ProcessedSubtitle{
		OriginalText: "食べている",
		Vocabulary:   []domain.PlacedEntry{{VocabularyEntry: taberu, Position: 0, Length: 5}},
		Segments: []domain.Segment{
			{Text: "食べ", Position: 0, Length: 2, Entry: &taberu, State: domain.CardLearning, Span: 0},
			{Text: "て", Position: 2, Length: 1, Span: 0},
			{Text: "いる", Position: 3, Length: 2, Entry: &taberu, State: domain.CardLearning, Span: 0},
		},
	}

	out := New(Options{}).Fragment(p)
	assert.Equal(t, 1, strings.Count(out, `class="jpdb-segment"`))
	assert.Equal(t, 3, strings.Count(out, `class="jpdb-word`))
	assert.Contains(t, out, `<span class="jpdb-word jpdb-unparsed" data-state="unparsed" data-position="2">て</span>`)
}

func TestRender_InsertsAnnotationAndHidesOriginal(t *testing.T) {
	doc, el := parse(t, `<div><span id="line" style="color: red">猫が好き</span></div>`)

	require.NoError(t, New(Options{}).Render(doc, el, processedNeko()))

	out := doc.String()
	assert.Contains(t, out, `<span id="line" style="color: red" class="hidden">猫が好き</span>`+nekoFragment, "inline style is left alone")
}

func TestRender_IsIdempotent(t *testing.T) {
	doc, el := parse(t, `<div><span id="line">猫が好き</span></div>`)
	r := New(Options{})
	require.NoError(t, r.Render(doc, el, processedNeko()))

	sub := doc.Subscribe()
	defer sub.Close()
	require.NoError(t, r.Render(doc, el, processedNeko()))

	assert.Empty(t, sub.Drain())
	assert.Equal(t, 1, strings.Count(doc.String(), `class="cr-subtitle"`))
}

func TestRender_ReusesAnnotationForNewContent(t *testing.T) {
	doc, el := parse(t, `<div><span id="line">猫が好き</span> <span class="cr-subtitle">old</span></div>`)

	require.NoError(t, New(Options{}).Render(doc, el, processedNeko()))

	out := doc.String()
	assert.NotContains(t, out, "old")
	assert.Equal(t, 1, strings.Count(out, `class="cr-subtitle"`))
}

func TestRender_Detached(t *testing.T) {
	doc, _ := parse(t, `<div><span id="line">猫が好き</span></div>`)
	orphan := dom.Element("span")
	orphan.AppendChild(dom.TextNode("猫が好き"))

	err := New(Options{}).Render(doc, orphan, processedNeko())
	assert.ErrorIs(t, err, ErrDetached)
}

func TestApply_FallsBackToPlainText(t *testing.T) {
	doc, _ := parse(t, `<div><span id="line">猫が好き</span></div>`)

	holder := dom.Element("div")
	orphan := dom.Element("span")
	orphan.AppendChild(dom.TextNode("猫が好き"))
	holder.AppendChild(orphan)

	err := New(Options{}).Apply(doc, orphan, processedNeko())
	assert.ErrorIs(t, err, ErrDetached)

	ann := orphan.NextSibling
	require.NotNil(t, ann)
	assert.True(t, dom.HasClass(ann, ClassAnnotation))
	assert.Equal(t, "猫が好き", dom.Text(ann))
}

func TestFallback_AttachedElement(t *testing.T) {
	doc, el := parse(t, `<div><span id="line" style="x">猫が好き</span></div>`)

	New(Options{}).Fallback(doc, el)
	New(Options{}).Fallback(doc, el)

	out := doc.String()
	assert.Contains(t, out, `<span id="line" style="x" class="hidden">猫が好き</span><span class="cr-subtitle">猫が好き</span>`)
	assert.Equal(t, 1, strings.Count(out, `class="cr-subtitle"`))
}

func TestInlineColors(t *testing.T) {
	palette := DefaultPalette()
	palette[domain.CardKnown] = "#00ff00"

	out := New(Options{Palette: palette, InlineColors: true}).Fragment(processedNeko())
	assert.Contains(t, out, `data-position="0" style="color: #00ff00">猫</span>`)
	assert.Contains(t, out, `style="color: #ffffff">が</span>`)
}

func TestSetPalette(t *testing.T) {
	r := New(Options{InlineColors: true})

	custom := DefaultPalette()
	custom[domain.CardKnown] = "#123456"
	r.SetPalette(custom)
	custom[domain.CardKnown] = "#000000"

	assert.Contains(t, r.Fragment(processedNeko()), "color: #123456")
	assert.Equal(t, "#123456", r.Palette().Color(domain.CardKnown))

	r.SetPalette(nil)
	assert.Equal(t, DefaultPalette(), r.Palette())
}

func TestParsePalette(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		state   string
		want    string
		wantErr bool
	}{
		{name: "empty keeps defaults", raw: "", state: domain.CardNew, want: "#ff4500"},
		{name: "override", raw: `{"known":"#123abc"}`, state: domain.CardKnown, want: "#123abc"},
		{name: "untouched state", raw: `{"known":"#123abc"}`, state: domain.CardDue, want: "#ffd700"},
		{name: "unknown state falls back", raw: "", state: "mystery", want: "#ffffff"},
		{name: "unparsed override", raw: `{"unparsed":"#eeeeee"}`, state: StateUnparsed, want: "#eeeeee"},
		{name: "invalid color", raw: `{"known":"green"}`, wantErr: true},
		{name: "unknown state key", raw: `{"mystery":"#123abc"}`, wantErr: true},
		{name: "invalid json", raw: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePalette(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Color(tt.state))
		})
	}
}

func TestDefaultPalette_CoversEveryCardState(t *testing.T) {
	p := DefaultPalette()
	for _, state := range domain.CardStates {
		assert.Contains(t, p, state)
	}
}

func TestPalette_CloneIsIndependent(t *testing.T) {
	p := DefaultPalette()
	c := p.Clone()
	c[domain.CardKnown] = "#000000"
	assert.Equal(t, "#228b22", p[domain.CardKnown])
}
