package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
	"github.com/subtitlelens/subtitlelens-server/internal/render"
	"github.com/subtitlelens/subtitlelens-server/internal/store"
)

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listSettings",
		Method:      http.MethodGet,
		Path:        "/api/v1/settings",
		Summary:     "List settings",
		Description: "Returns every stored setting. The API key is masked.",
		Tags:        []string{"Settings"},
	}, s.handleListSettings)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSetting",
		Method:      http.MethodGet,
		Path:        "/api/v1/settings/{key}",
		Summary:     "Get setting",
		Description: "Returns one setting. The API key is masked.",
		Tags:        []string{"Settings"},
	}, s.handleGetSetting)

	huma.Register(s.api, huma.Operation{
		OperationID: "putSetting",
		Method:      http.MethodPut,
		Path:        "/api/v1/settings/{key}",
		Summary:     "Update setting",
		Description: "Stores a setting. A new API key resumes halted sessions.",
		Tags:        []string{"Settings"},
	}, s.handlePutSetting)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteSetting",
		Method:        http.MethodDelete,
		Path:          "/api/v1/settings/{key}",
		Summary:       "Delete setting",
		Description:   "Removes a setting",
		Tags:          []string{"Settings"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSetting)
}

// === DTOs ===

// SettingResponse is one setting.
type SettingResponse struct {
	Key   string `json:"key" doc:"Setting key"`
	Value string `json:"value" doc:"Stored value"`
}

// SettingOutput wraps one setting.
type SettingOutput struct {
	Body SettingResponse
}

// SettingsOutput wraps every stored setting.
type SettingsOutput struct {
	Body struct {
		Settings map[string]string `json:"settings" doc:"Stored settings by key"`
	}
}

// SettingKeyInput identifies a setting.
type SettingKeyInput struct {
	Key string `path:"key" doc:"Setting key"`
}

// PutSettingInput contains parameters for updating a setting.
type PutSettingInput struct {
	Key  string `path:"key" doc:"Setting key"`
	Body struct {
		Value string `json:"value" doc:"New value"`
	}
}

// === Handlers ===

func (s *Server) handleListSettings(ctx context.Context, _ *struct{}) (*SettingsOutput, error) {
	all, err := s.deps.Settings.All(ctx)
	if err != nil {
		return nil, err
	}
	for key, value := range all {
		all[key] = mask(key, value)
	}
	out := &SettingsOutput{}
	out.Body.Settings = all
	return out, nil
}

func (s *Server) handleGetSetting(ctx context.Context, input *SettingKeyInput) (*SettingOutput, error) {
	if err := s.deps.Validator.Var("key", input.Key, "setting_key"); err != nil {
		return nil, err
	}
	value, err := s.deps.Settings.Get(ctx, input.Key)
	if err != nil {
		return nil, err
	}
	return &SettingOutput{Body: SettingResponse{Key: input.Key, Value: mask(input.Key, value)}}, nil
}

func (s *Server) handlePutSetting(ctx context.Context, input *PutSettingInput) (*SettingOutput, error) {
	if err := s.deps.Validator.Var("key", input.Key, "setting_key"); err != nil {
		return nil, err
	}
	value := input.Body.Value

	var palette render.Palette
	switch input.Key {
	case store.KeyMiningDeckID:
		if id, err := strconv.Atoi(value); err != nil || id <= 0 {
			return nil, domainerrors.ValidationWithDetails("validation failed",
				map[string]string{"value": "must be a positive deck id"})
		}
	case store.KeySubtitleColors:
		p, err := render.ParsePalette(value)
		if err != nil {
			return nil, domainerrors.ValidationWithDetails("validation failed",
				map[string]string{"value": err.Error()})
		}
		palette = p
	}

	if err := s.deps.Settings.Set(ctx, input.Key, value); err != nil {
		return nil, err
	}
	if palette != nil && s.deps.Renderer != nil {
		s.deps.Renderer.SetPalette(palette)
	}

	s.logger.Info("setting updated", "key", input.Key)
	return &SettingOutput{Body: SettingResponse{Key: input.Key, Value: mask(input.Key, value)}}, nil
}

func (s *Server) handleDeleteSetting(ctx context.Context, input *SettingKeyInput) (*struct{}, error) {
	if err := s.deps.Validator.Var("key", input.Key, "setting_key"); err != nil {
		return nil, err
	}
	if err := s.deps.Settings.Delete(ctx, input.Key); err != nil {
		return nil, err
	}
	if input.Key == store.KeySubtitleColors && s.deps.Renderer != nil {
		s.deps.Renderer.SetPalette(nil)
	}
	return nil, nil
}

// mask hides the stored API key.
func mask(key, value string) string {
	if key == store.KeyJPDBAPIKey && value != "" {
		return maskedSecret
	}
	return value
}
