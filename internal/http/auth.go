package httpserver

import (
	"net/http"

	"github.com/Clark-Hu/specialist-directory/internal/auth"
)

type tokenObtainRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRefreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenVerifyRequest struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if _, err := s.auth.Signup(r.Context(), req); err != nil {
		s.respondServiceError(w, r, err, "register user")
		return
	}
	s.respondJSON(w, http.StatusCreated, messageResponse{Message: "User successfully registered"})
}

func (s *Server) handleObtainToken(w http.ResponseWriter, r *http.Request) {
	var req tokenObtainRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	pair, err := s.auth.ObtainPair(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err, "obtain token")
		return
	}
	s.respondJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRefreshRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	access, err := s.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		s.respondServiceError(w, r, err, "refresh token")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req tokenVerifyRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.auth.Verify(req.Token); err != nil {
		s.respondServiceError(w, r, err, "verify token")
		return
	}
	s.respondJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided.")
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}
