package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
	"github.com/subtitlelens/subtitlelens-server/internal/session"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Create session",
		Description:   "Starts a pipeline session for one player",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get session",
		Description: "Returns progress counters and the halt reason, if any",
		Tags:        []string{"Sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{id}",
		Summary:       "Delete session",
		Description:   "Stops processing and drops cached annotations",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "addOffscreenSubtitles",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/offscreen",
		Summary:     "Add offscreen subtitles",
		Description: "Collects preloaded subtitle lines into groups",
		Tags:        []string{"Sessions"},
	}, s.handleOffscreen)

	huma.Register(s.api, huma.Operation{
		OperationID: "batchReady",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/batch-ready",
		Summary:     "Signal batch ready",
		Description: "Freezes the collected groups and starts processing from the first group",
		Tags:        []string{"Sessions"},
	}, s.handleBatchReady)

	huma.Register(s.api, huma.Operation{
		OperationID: "showSubtitle",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/onscreen",
		Summary:     "Show subtitle",
		Description: "Returns the annotation for an onscreen subtitle, or schedules its group and reports pending",
		Tags:        []string{"Sessions"},
	}, s.handleOnscreen)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSubtitle",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/subtitles",
		Summary:     "Get subtitle",
		Description: "Looks up a processed subtitle in the session cache without scheduling work",
		Tags:        []string{"Sessions"},
	}, s.handleGetSubtitle)

	huma.Register(s.api, huma.Operation{
		OperationID: "resumeSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/resume",
		Summary:     "Resume session",
		Description: "Clears a halt and reschedules pending subtitles",
		Tags:        []string{"Sessions"},
	}, s.handleResumeSession)
}

// === DTOs ===

// SessionResponse describes a session.
type SessionResponse struct {
	ID    string        `json:"id" doc:"Session ID"`
	Stats session.Stats `json:"stats" doc:"Progress counters"`
}

// SessionOutput wraps a session response.
type SessionOutput struct {
	Body SessionResponse
}

// SessionPathInput identifies a session.
type SessionPathInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// OffscreenRequest carries preloaded subtitle lines in playback order.
type OffscreenRequest struct {
	Subtitles []string `json:"subtitles" minItems:"1" doc:"Subtitle lines in playback order"`
}

// OffscreenInput contains parameters for adding offscreen subtitles.
type OffscreenInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body OffscreenRequest
}

// OffscreenResponse reports how many lines were new.
type OffscreenResponse struct {
	Accepted int `json:"accepted" doc:"Lines added to the batch"`
	Ignored  int `json:"ignored" doc:"Blank, duplicate or late lines"`
	Groups   int `json:"groups" doc:"Current number of groups"`
}

// OffscreenOutput wraps the offscreen response.
type OffscreenOutput struct {
	Body OffscreenResponse
}

// OnscreenRequest names the subtitle currently shown.
type OnscreenRequest struct {
	Text string `json:"text" validate:"subtitle" doc:"Subtitle text as shown"`
}

// OnscreenInput contains parameters for showing a subtitle.
type OnscreenInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body OnscreenRequest
}

// SubtitleResponse is a processed subtitle, or a pending marker.
type SubtitleResponse struct {
	Status   string                    `json:"status" enum:"ready,pending" doc:"ready when the annotation is cached"`
	Text     string                    `json:"text" doc:"Normalized subtitle text"`
	Fragment string                    `json:"fragment,omitempty" doc:"Annotation span as HTML"`
	Subtitle *domain.ProcessedSubtitle `json:"subtitle,omitempty" doc:"Segments and vocabulary"`
}

// SubtitleOutput wraps a subtitle response.
type SubtitleOutput struct {
	Body SubtitleResponse
}

// GetSubtitleInput contains parameters for a cache lookup.
type GetSubtitleInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Text string `query:"text" required:"true" doc:"Subtitle text"`
}

// === Handlers ===

func (s *Server) handleCreateSession(_ context.Context, _ *struct{}) (*SessionOutput, error) {
	sess, err := s.deps.Sessions.Create()
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: SessionResponse{ID: sess.ID, Stats: sess.Stats()}}, nil
}

func (s *Server) handleGetSession(_ context.Context, input *SessionPathInput) (*SessionOutput, error) {
	sess, err := s.deps.Sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: SessionResponse{ID: sess.ID, Stats: sess.Stats()}}, nil
}

func (s *Server) handleDeleteSession(_ context.Context, input *SessionPathInput) (*struct{}, error) {
	if err := s.deps.Sessions.Delete(input.ID); err != nil {
		return nil, err
	}
	if s.deps.SSEManager != nil {
		s.deps.SSEManager.DisconnectSession(input.ID)
	}
	return nil, nil
}

func (s *Server) handleOffscreen(_ context.Context, input *OffscreenInput) (*OffscreenOutput, error) {
	sess, err := s.deps.Sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}

	var resp OffscreenResponse
	for _, raw := range input.Body.Subtitles {
		text, ok := domain.NormalizeSubtitle(raw)
		if ok && sess.OnOffscreen(text) {
			resp.Accepted++
		} else {
			resp.Ignored++
		}
	}
	resp.Groups = len(sess.Groups())
	return &OffscreenOutput{Body: resp}, nil
}

func (s *Server) handleBatchReady(_ context.Context, input *SessionPathInput) (*SessionOutput, error) {
	sess, err := s.deps.Sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}
	sess.OnBatchReady()
	return &SessionOutput{Body: SessionResponse{ID: sess.ID, Stats: sess.Stats()}}, nil
}

func (s *Server) handleOnscreen(_ context.Context, input *OnscreenInput) (*SubtitleOutput, error) {
	if err := s.deps.Validator.Validate(input.Body); err != nil {
		return nil, err
	}
	sess, err := s.deps.Sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}

	text, _ := domain.NormalizeSubtitle(input.Body.Text)
	processed, ok, err := sess.Request(text)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &SubtitleOutput{Body: SubtitleResponse{Status: StatusPending, Text: string(text)}}, nil
	}
	return &SubtitleOutput{Body: s.ready(sess, text, processed)}, nil
}

func (s *Server) handleGetSubtitle(_ context.Context, input *GetSubtitleInput) (*SubtitleOutput, error) {
	sess, err := s.deps.Sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}

	text, ok := domain.NormalizeSubtitle(input.Text)
	if !ok {
		return nil, domainerrors.Validation("text must not be blank")
	}
	processed, ok := sess.Cached(text)
	if !ok {
		return nil, domainerrors.NotFound("subtitle not processed")
	}
	return &SubtitleOutput{Body: s.ready(sess, text, processed)}, nil
}

func (s *Server) handleResumeSession(_ context.Context, input *SessionPathInput) (*SessionOutput, error) {
	sess, err := s.deps.Sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}
	sess.Resume()
	return &SessionOutput{Body: SessionResponse{ID: sess.ID, Stats: sess.Stats()}}, nil
}

func (s *Server) ready(sess *session.Session, text domain.SubtitleText, p domain.ProcessedSubtitle) SubtitleResponse {
	return SubtitleResponse{
		Status:   StatusReady,
		Text:     string(text),
		Fragment: sess.Fragment(p),
		Subtitle: &p,
	}
}
