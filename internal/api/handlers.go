package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smkaiser/songfix/internal/api/middleware"
	"github.com/smkaiser/songfix/internal/correction"
	"github.com/smkaiser/songfix/internal/version"
)

// maxBodyBytes caps POST /fix bodies.
const maxBodyBytes = 64 << 10

// fixRequest is the input of both /fix forms.
type fixRequest struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"omitempty,oneof=artist song auto"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleFixGet(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	r.fix(w, req, fixRequest{Name: q.Get("name"), Type: q.Get("type")})
}

func (r *Router) handleFixPost(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	var body fixRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	r.fix(w, req, body)
}

func (r *Router) fix(w http.ResponseWriter, req *http.Request, in fixRequest) {
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if err := validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	typ, err := correction.ParseType(in.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := r.resolver.Resolve(req.Context(), in.Name, typ)
	r.logger.Debug("fix served",
		"request_id", middleware.RequestIDFromContext(req.Context()),
		"source", result.Source)
	writeJSON(w, http.StatusOK, result)
}

// validationMessage turns validator errors into one client-facing sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
