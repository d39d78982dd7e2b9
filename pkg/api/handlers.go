package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lisan-ai/lisan/pkg/auth"
	"github.com/lisan-ai/lisan/pkg/lifecycle"
	"github.com/lisan-ai/lisan/pkg/models"
)

type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// summarizeBody keeps max_length as a pointer so an explicit zero is
// rejected instead of taking the default.
type summarizeBody struct {
	Text         string `json:"text"`
	Style        string `json:"style"`
	MaxLength    *int   `json:"max_length"`
	BulletPoints bool   `json:"bullet_points"`
}

type healthResponse struct {
	Status string `json:"status"`
	lifecycle.Stats
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := r.Body
	if s.cfg.Server.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body", middleware.GetReqID(r.Context()))
		return false
	}
	return true
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.users.Create(req.Username, req.Password, req.Email)
	switch {
	case errors.Is(err, auth.ErrInvalidSignup):
		writeJSONError(w, http.StatusBadRequest, "username and password are required", "")
		return
	case errors.Is(err, auth.ErrPasswordLong):
		writeJSONError(w, http.StatusBadRequest, "password must be at most 72 bytes", "")
		return
	case errors.Is(err, auth.ErrUserExists):
		writeJSONError(w, http.StatusConflict, "username already registered", "")
		return
	case err != nil:
		s.log.Error().Err(err).Msg("signup failed")
		writeJSONError(w, http.StatusInternalServerError, "signup failed", middleware.GetReqID(r.Context()))
		return
	}

	s.log.Info().Str("username", user.Username).Msg("user registered")
	writeJSON(w, http.StatusCreated, map[string]string{
		"msg":      "User created successfully",
		"username": user.Username,
	})
}

// handleToken accepts the OAuth2 password form or a JSON body.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if !s.decode(w, r, &creds) {
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid form body", "")
			return
		}
		creds.Username = r.PostForm.Get("username")
		creds.Password = r.PostForm.Get("password")
	}

	user, err := s.users.Verify(creds.Username, creds.Password)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSONError(w, http.StatusUnauthorized, "incorrect username or password", "")
		return
	}

	token, exp, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.log.Error().Err(err).Msg("issue token")
		writeJSONError(w, http.StatusInternalServerError, "could not issue token", middleware.GetReqID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
	})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req models.TranslationRequest
	if !s.decode(w, r, &req) {
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())

	out, err := s.ctrl.Translate(r.Context(), principal, req)
	if err != nil {
		s.transformError(w, r, err)
		return
	}
	writeJSON(w, outcomeStatus(out.Status), out.Response())
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var body summarizeBody
	if !s.decode(w, r, &body) {
		return
	}
	req := models.SummaryRequest{
		Text:         body.Text,
		Style:        body.Style,
		BulletPoints: body.BulletPoints,
	}
	if body.MaxLength != nil {
		if *body.MaxLength <= 0 {
			writeJSONError(w, http.StatusBadRequest, "max_length must be positive", "")
			return
		}
		req.MaxLength = *body.MaxLength
	}
	principal, _ := auth.PrincipalFromContext(r.Context())

	out, err := s.ctrl.Summarize(r.Context(), principal, req)
	if err != nil {
		s.transformError(w, r, err)
		return
	}
	writeJSON(w, outcomeStatus(out.Status), out.Response())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := s.ctrl.Status(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "request not found", "")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Stats: s.ctrl.Stats()})
}

func (s *Server) transformError(w http.ResponseWriter, r *http.Request, err error) {
	var ie *lifecycle.InternalError
	switch {
	case errors.Is(err, lifecycle.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, err.Error(), "")
	case errors.As(err, &ie):
		writeJSONError(w, http.StatusInternalServerError, "internal server error", ie.RequestID)
	default:
		s.log.Error().Err(err).Msg("transform failed")
		writeJSONError(w, http.StatusInternalServerError, "internal server error", middleware.GetReqID(r.Context()))
	}
}

// outcomeStatus maps a lifecycle status to the HTTP code. A request that could
// not be scheduled for retry is reported as 503 with the usual envelope.
func outcomeStatus(status models.Status) int {
	if status == models.StatusError {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
