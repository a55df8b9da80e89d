package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/specialist-directory/internal/auth"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/validate"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// constraintFields maps unique constraints onto the request field they guard.
var constraintFields = map[string]struct{ field, message string }{
	"users_email_key":                      {"email", "user with this email already exists."},
	"employment_types_name_key":            {"name", "employment type with this name already exists."},
	"employment_types_code_key":            {"code", "employment type with this code already exists."},
	"specialist_levels_name_key":           {"name", "specialist level with this name already exists."},
	"specialist_levels_code_key":           {"code", "specialist level with this code already exists."},
	"technologies_name_key":                {"name", "technology with this name already exists."},
	"technologies_code_key":                {"code", "technology with this code already exists."},
	"social_networks_profile_type_key":     {"network_type", "This profile already has a link for this network."},
	"contact_infos_profile_type_value_key": {"value", "This profile already has this contact."},
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondJSON(w, http.StatusBadRequest, validate.Field(typeError.Field, "Invalid value type."))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Request body cannot be empty")
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "BAD_REQUEST", "Request body too large")
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		s.respondJSON(w, http.StatusBadRequest, validate.Field(field, "This field is not accepted."))
	default:
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Unable to parse request body")
	}
}

// respondServiceError maps errors from the service and repository layers onto
// HTTP responses. Unknown errors are logged and reported as 500.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	if verr, ok := validate.As(err); ok {
		s.respondJSON(w, http.StatusBadRequest, verr)
		return
	}
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrInactiveUser):
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token is invalid or expired")
	case errors.Is(err, repository.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, repository.ErrConflict):
		if cf, ok := constraintFields[repository.ConstraintName(err)]; ok {
			s.respondJSON(w, http.StatusBadRequest, validate.Field(cf.field, cf.message))
			return
		}
		s.respondError(w, http.StatusConflict, "CONFLICT", "Resource already exists")
	case errors.Is(err, repository.ErrForeignKey):
		s.respondJSON(w, http.StatusConflict, errorResponse{
			Code:    "CONFLICT",
			Message: "Resource is referenced by other records",
			Details: map[string]string{"constraint": repository.ConstraintName(err)},
		})
	default:
		s.logger.Error(action+" failed", "error", err, "path", r.URL.Path)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action)
	}
}

func (s *Server) respondForbidden(w http.ResponseWriter) {
	s.respondError(w, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action.")
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

// pathID parses the {id} URL parameter and writes a 404 when it is malformed.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return 0, false
	}
	return id, true
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func trimPtr(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	val := strings.TrimSpace(*ptr)
	return &val
}
