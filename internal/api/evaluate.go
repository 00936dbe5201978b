package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/Tapico/go-posthog-openfeature/internal/validation"
	"github.com/Tapico/go-posthog-openfeature/pkg/provider"
)

// maxBodyBytes bounds the evaluate request body.
const maxBodyBytes = 64 << 10

// FlagType selects which resolve operation serves a request.
type FlagType string

const (
	TypeBoolean FlagType = "boolean"
	TypeString  FlagType = "string"
	TypeNumber  FlagType = "number"
	TypeObject  FlagType = "object"
)

// evaluateRequest represents the request body for POST /v1/flags/{key}/evaluate
type evaluateRequest struct {
	Type    FlagType                   `json:"type"`
	Default json.RawMessage            `json:"default,omitempty"`
	Context provider.EvaluationContext `json:"context"`
}

// evaluateResponse mirrors provider.ResolutionDetails with the flag key and
// type added.
type evaluateResponse struct {
	FlagKey      string             `json:"flagKey"`
	Type         FlagType           `json:"type"`
	Value        any                `json:"value"`
	Variant      string             `json:"variant,omitempty"`
	Reason       provider.Reason    `json:"reason"`
	ErrorCode    provider.ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
}

// handleEvaluate handles POST /v1/flags/{key}/evaluate.
//
// Every resolution, including ones that fell back to the default, is a 200
// with the details in the body. Only a malformed request, an invalid flag
// key or an invalid evaluation context is a 400.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req evaluateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
			return
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON: "+err.Error())
		return
	}
	if req.Type == "" {
		req.Type = TypeBoolean
	}
	if v := validation.ValidateEvaluation(key, req.Context.TargetingKey); !v.Valid {
		ValidationError(w, r, ErrCodeValidation, "invalid evaluation request", v.Errors)
		return
	}

	var (
		resp evaluateResponse
		err  error
	)
	ctx := r.Context()
	switch req.Type {
	case TypeBoolean:
		var def bool
		if !decodeDefault(w, r, req.Default, &def, "a boolean") {
			return
		}
		res, rerr := s.eval.ResolveBoolean(ctx, key, def, req.Context)
		resp, err = toResponse(key, req.Type, res), rerr
	case TypeString:
		var def string
		if !decodeDefault(w, r, req.Default, &def, "a string") {
			return
		}
		res, rerr := s.eval.ResolveString(ctx, key, def, req.Context)
		resp, err = toResponse(key, req.Type, res), rerr
	case TypeNumber:
		var def float64
		if !decodeDefault(w, r, req.Default, &def, "a number") {
			return
		}
		res, rerr := s.eval.ResolveNumber(ctx, key, def, req.Context)
		resp, err = toResponse(key, req.Type, res), rerr
	case TypeObject:
		var def any
		if !decodeDefault(w, r, req.Default, &def, "valid JSON") {
			return
		}
		res, rerr := s.eval.ResolveObject(ctx, key, def, req.Context)
		resp, err = toResponse(key, req.Type, res), rerr
	default:
		ValidationError(w, r, ErrCodeInvalidType, "unsupported flag type", map[string]string{
			"type": "must be one of boolean, string, number, object",
		})
		return
	}

	if err != nil {
		var ve *provider.ValidationError
		if errors.As(err, &ve) {
			ValidationError(w, r, ErrCodeInvalidContext, ve.Error(), map[string]string{ve.Field: ve.Message})
			return
		}
		hlog.FromRequest(r).Info().Err(err).Str("flag_key", key).Msg("flag resolved with error")
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeDefault unmarshals raw into dst, writing a 400 when it does not fit.
// An absent default leaves dst at its zero value.
func decodeDefault(w http.ResponseWriter, r *http.Request, raw json.RawMessage, dst any, want string) bool {
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		ValidationError(w, r, ErrCodeInvalidDefault, "default does not match the flag type", map[string]string{
			"default": "must be " + want,
		})
		return false
	}
	return true
}

func toResponse[T any](key string, typ FlagType, res provider.ResolutionDetails[T]) evaluateResponse {
	return evaluateResponse{
		FlagKey:      key,
		Type:         typ,
		Value:        res.Value,
		Variant:      res.Variant,
		Reason:       res.Reason,
		ErrorCode:    res.ErrorCode,
		ErrorMessage: res.ErrorMessage,
	}
}
