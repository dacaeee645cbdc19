package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/http/response"
)

// EnvelopeVersion is sent as "v" in every response body.
const EnvelopeVersion = response.Version

// APIEnvelope wraps successful responses.
type APIEnvelope = response.Envelope //nolint:revive // API prefix is intentional for clarity

// APIErrorEnvelope wraps coded errors.
type APIErrorEnvelope = response.ErrorEnvelope //nolint:revive // API prefix is intentional for clarity

// EnvelopeTransformer wraps every huma response body in the API envelope.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}, nil
	case error:
		return APIEnvelope{Version: EnvelopeVersion, Error: body.Error()}, nil
	}

	success := len(status) > 0 && (status[0] == '2' || status[0] == '3')
	return APIEnvelope{Version: EnvelopeVersion, Success: success, Data: v}, nil
}
