package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
	"github.com/subtitlelens/subtitlelens-server/internal/logger"
	"github.com/subtitlelens/subtitlelens-server/internal/ratelimit"
	"github.com/subtitlelens/subtitlelens-server/internal/render"
	"github.com/subtitlelens/subtitlelens-server/internal/session"
	"github.com/subtitlelens/subtitlelens-server/internal/sse"
	"github.com/subtitlelens/subtitlelens-server/internal/store"
	"github.com/subtitlelens/subtitlelens-server/internal/vocab/jpdb"
)

var words = []string{"猫", "好き", "魚"}

type stubParser struct{}

func (stubParser) Name() string { return "stub" }

func (stubParser) Parse(_ context.Context, text string) ([]domain.MorphemeForm, error) {
	var forms []domain.MorphemeForm
	for _, w := range words {
		if strings.Contains(text, w) {
			forms = append(forms, domain.SimpleForm(w, w))
		}
	}
	return forms, nil
}

type stubLookup struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *stubLookup) LookupBatch(_ context.Context, texts []string) (*jpdb.Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}

	batch := &jpdb.Batch{Tokens: make([][]domain.VocabularyToken, len(texts))}
	for i, w := range words {
		batch.Vocabulary = append(batch.Vocabulary, domain.VocabularyEntry{VID: 100 + i, SID: 1, Spelling: w})
	}
	for i, text := range texts {
		for vi, w := range words {
			if at := strings.Index(text, w); at >= 0 {
				batch.Tokens[i] = append(batch.Tokens[i], domain.VocabularyToken{
					VocabularyIndex: vi,
					Position:        domain.UnitOffset(text, at),
					Length:          domain.UnitLen(w),
				})
			}
		}
	}
	return batch, nil
}

func (l *stubLookup) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type deckCall struct {
	op       string
	deckID   int
	vid, sid int
	extra    string
}

type stubDecks struct {
	mu    sync.Mutex
	calls []deckCall
	err   error
}

func (d *stubDecks) record(c deckCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
	return d.err
}

func (d *stubDecks) AddToDeck(_ context.Context, deckID, vid, sid int) error {
	return d.record(deckCall{op: "add", deckID: deckID, vid: vid, sid: sid})
}

func (d *stubDecks) RemoveFromDeck(_ context.Context, deckID, vid, sid int) error {
	return d.record(deckCall{op: "remove", deckID: deckID, vid: vid, sid: sid})
}

func (d *stubDecks) SetCardSentence(_ context.Context, vid, sid int, sentence, _ string) error {
	return d.record(deckCall{op: "sentence", vid: vid, sid: sid, extra: sentence})
}

func (d *stubDecks) Review(_ context.Context, vid, sid int, grade jpdb.Grade) error {
	return d.record(deckCall{op: "review", vid: vid, sid: sid, extra: string(grade)})
}

func (d *stubDecks) ListDecks(context.Context) ([]jpdb.Deck, error) {
	if err := d.record(deckCall{op: "list"}); err != nil {
		return nil, err
	}
	return []jpdb.Deck{{ID: 7, Name: "Mining"}}, nil
}

func (d *stubDecks) Last() deckCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[len(d.calls)-1]
}

type testServer struct {
	*Server
	api      humatest.TestAPI
	lookup   *stubLookup
	decks    *stubDecks
	settings *store.Store
	renderer *render.Renderer
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	log := logger.Discard().Logger

	st, err := store.New("", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	lookup := &stubLookup{}
	renderer := render.New(render.Options{InlineColors: true})
	sseManager := sse.NewManager(log)
	sessions := session.NewManager(session.Deps{
		Parser:   stubParser{},
		Lookup:   lookup,
		Renderer: renderer,
		Emitter:  sseManager,
	}, session.Options{}, log)
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })

	decks := &stubDecks{}
	s := NewServer(Deps{
		Sessions:   sessions,
		Decks:      decks,
		Settings:   st,
		Renderer:   renderer,
		SSEManager: sseManager,
		SSEHandler: sse.NewHandler(sseManager, log),
	}, opts, log)

	return &testServer{
		Server:   s,
		api:      humatest.Wrap(t, s.API()),
		lookup:   lookup,
		decks:    decks,
		settings: st,
		renderer: renderer,
	}
}

// testEnvelope is the success envelope with typed data.
type testEnvelope[T any] struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func decodeData[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	require.True(t, env.Success, resp.Body.String())
	return env.Data
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) APIErrorEnvelope {
	t.Helper()
	var env APIErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.False(t, env.Success)
	return env
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp := ts.api.Post("/api/v1/sessions")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decodeData[SessionResponse](t, resp).ID
}

func subtitlePath(sessionID, text string) string {
	return "/api/v1/sessions/" + sessionID + "/subtitles?text=" + url.QueryEscape(text)
}

func (ts *testServer) wait(t *testing.T, sessionID string) {
	t.Helper()
	sess, err := ts.deps.Sessions.Get(sessionID)
	require.NoError(t, err)
	sess.Wait()
}

func TestSessionLifecycle(t *testing.T) {
	ts := setupTestServer(t, Options{})
	id := ts.createSession(t)
	assert.True(t, strings.HasPrefix(id, "ses-"))

	resp := ts.api.Get("/api/v1/sessions/" + id)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, id, decodeData[SessionResponse](t, resp).ID)

	resp = ts.api.Delete("/api/v1/sessions/" + id)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/sessions/" + id)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Code)
}

func TestOffscreenBatchAndOnscreen(t *testing.T) {
	ts := setupTestServer(t, Options{})
	id := ts.createSession(t)

	resp := ts.api.Post("/api/v1/sessions/"+id+"/offscreen", map[string]any{
		"subtitles": []string{"猫が好き", "  ", "猫が好き", "魚が好き"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	off := decodeData[OffscreenResponse](t, resp)
	assert.Equal(t, 2, off.Accepted)
	assert.Equal(t, 2, off.Ignored)
	assert.Equal(t, 1, off.Groups)

	resp = ts.api.Post("/api/v1/sessions/" + id + "/batch-ready")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decodeData[SessionResponse](t, resp).Stats.Frozen)
	ts.wait(t, id)

	resp = ts.api.Post("/api/v1/sessions/"+id+"/onscreen", map[string]any{"text": " 猫が好き "})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	sub := decodeData[SubtitleResponse](t, resp)
	assert.Equal(t, StatusReady, sub.Status)
	assert.Equal(t, "猫が好き", sub.Text)
	assert.Contains(t, sub.Fragment, `class="cr-subtitle"`)
	require.NotNil(t, sub.Subtitle)
	assert.Equal(t, "猫が好き", sub.Subtitle.Text())
	assert.Equal(t, 1, ts.lookup.Calls())

	resp = ts.api.Get(subtitlePath(id, "魚が好き"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, StatusReady, decodeData[SubtitleResponse](t, resp).Status)
}

func TestOnscreen_PendingThenReady(t *testing.T) {
	ts := setupTestServer(t, Options{})
	id := ts.createSession(t)

	resp := ts.api.Get(subtitlePath(id, "猫"))
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Post("/api/v1/sessions/"+id+"/onscreen", map[string]any{"text": "猫"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, StatusPending, decodeData[SubtitleResponse](t, resp).Status)

	ts.wait(t, id)
	resp = ts.api.Get(subtitlePath(id, "猫"))
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestOnscreen_BlankText(t *testing.T) {
	ts := setupTestServer(t, Options{})
	id := ts.createSession(t)

	resp := ts.api.Post("/api/v1/sessions/"+id+"/onscreen", map[string]any{"text": "   "})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, resp).Code)
}

func TestOnscreen_HaltedSession(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.lookup.err = jpdb.ErrUnauthorized
	id := ts.createSession(t)

	resp := ts.api.Post("/api/v1/sessions/"+id+"/onscreen", map[string]any{"text": "猫"})
	require.Equal(t, http.StatusOK, resp.Code)
	ts.wait(t, id)

	resp = ts.api.Post("/api/v1/sessions/"+id+"/onscreen", map[string]any{"text": "魚"})
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, resp).Code)

	resp = ts.api.Get("/api/v1/sessions/" + id)
	assert.NotEmpty(t, decodeData[SessionResponse](t, resp).Stats.Halted)

	ts.lookup.mu.Lock()
	ts.lookup.err = nil
	ts.lookup.mu.Unlock()
	resp = ts.api.Post("/api/v1/sessions/" + id + "/resume")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decodeData[SessionResponse](t, resp).Stats.Halted)

	resp = ts.api.Post("/api/v1/sessions/"+id+"/onscreen", map[string]any{"text": "猫"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, StatusPending, decodeData[SubtitleResponse](t, resp).Status)
	ts.wait(t, id)

	resp = ts.api.Get(subtitlePath(id, "猫"))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestEvents_UnknownSession(t *testing.T) {
	ts := setupTestServer(t, Options{})

	w := httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ses-missing/events", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)
}

func TestDecks(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/decks")
	require.Equal(t, http.StatusOK, resp.Code)
	decks := decodeData[struct {
		Decks []jpdb.Deck `json:"decks"`
	}](t, resp)
	assert.Equal(t, []jpdb.Deck{{ID: 7, Name: "Mining"}}, decks.Decks)

	card := map[string]any{"vid": 100, "sid": 1}

	resp = ts.api.Post("/api/v1/decks/mining/vocabulary", card)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	require.NoError(t, ts.settings.Set(context.Background(), store.KeyMiningDeckID, "7"))
	resp = ts.api.Post("/api/v1/decks/mining/vocabulary", card)
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())
	assert.Equal(t, deckCall{op: "add", deckID: 7, vid: 100, sid: 1}, ts.decks.Last())

	resp = ts.api.Delete("/api/v1/decks/never-forget/vocabulary", card)
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, deckCall{op: "remove", deckID: jpdb.DeckNeverForget, vid: 100, sid: 1}, ts.decks.Last())

	resp = ts.api.Post("/api/v1/decks/abc/vocabulary", card)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Post("/api/v1/decks/7/vocabulary", map[string]any{"vid": 0, "sid": 1})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDecks_ProviderErrors(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.decks.err = jpdb.ErrUnauthorized

	resp := ts.api.Get("/api/v1/decks")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, resp).Code)

	ts.decks.err = jpdb.ErrServer
	resp = ts.api.Post("/api/v1/decks/7/vocabulary", map[string]any{"vid": 1, "sid": 1})
	require.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", decodeError(t, resp).Code)
}

func TestReview_RefreshesAnnotations(t *testing.T) {
	ts := setupTestServer(t, Options{})
	id := ts.createSession(t)
	ts.api.Post("/api/v1/sessions/"+id+"/onscreen", map[string]any{"text": "猫が好き"})
	ts.wait(t, id)
	require.Equal(t, 1, ts.lookup.Calls())

	resp := ts.api.Post("/api/v1/reviews", map[string]any{"vid": 100, "sid": 1, "grade": "meh"})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Post("/api/v1/reviews", map[string]any{"vid": 100, "sid": 1, "grade": "good"})
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())
	assert.Equal(t, deckCall{op: "review", vid: 100, sid: 1, extra: "good"}, ts.decks.Last())
	assert.Equal(t, 2, ts.lookup.Calls())
}

func TestSetSentence(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Post("/api/v1/vocabulary/sentence", map[string]any{"vid": 100, "sid": 1, "sentence": "猫が好き"})
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())
	assert.Equal(t, deckCall{op: "sentence", vid: 100, sid: 1, extra: "猫が好き"}, ts.decks.Last())
}

func TestSettings(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Put("/api/v1/settings/jpdb_api_key", map[string]any{"value": "secret"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, maskedSecret, decodeData[SettingResponse](t, resp).Value)

	stored, err := ts.settings.Get(context.Background(), store.KeyJPDBAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "secret", stored)

	resp = ts.api.Put("/api/v1/settings/custom_css", map[string]any{"value": ".cr-subtitle{}"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/settings")
	require.Equal(t, http.StatusOK, resp.Code)
	all := decodeData[struct {
		Settings map[string]string `json:"settings"`
	}](t, resp)
	assert.Equal(t, map[string]string{"jpdb_api_key": maskedSecret, "custom_css": ".cr-subtitle{}"}, all.Settings)

	resp = ts.api.Delete("/api/v1/settings/custom_css")
	require.Equal(t, http.StatusNoContent, resp.Code)
	resp = ts.api.Get("/api/v1/settings/custom_css")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSettings_Validation(t *testing.T) {
	ts := setupTestServer(t, Options{})

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "theme", "dark"},
		{"deck id not a number", "mining_deck_id", "mining"},
		{"bad palette json", "subtitle_colors", "{"},
		{"bad palette color", "subtitle_colors", `{"known":"green"}`},
		{"bad palette state", "subtitle_colors", `{"shiny":"#00ff00"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Put("/api/v1/settings/"+tt.key, map[string]any{"value": tt.value})
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
			assert.Equal(t, "VALIDATION", decodeError(t, resp).Code)
		})
	}
}

func TestSettings_PaletteAppliesToRenderer(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Put("/api/v1/settings/subtitle_colors", map[string]any{"value": `{"known":"#00ff00"}`})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "#00ff00", ts.renderer.Palette().Color(domain.CardKnown))

	resp = ts.api.Delete("/api/v1/settings/subtitle_colors")
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, render.DefaultPalette(), ts.renderer.Palette())
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(0.001, 1)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, Options{RateLimiter: limiter})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/health")
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, resp).Code)
}

func TestCORS(t *testing.T) {
	ts := setupTestServer(t, Options{AllowedOrigins: []string{"https://player.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://player.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, "https://player.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
