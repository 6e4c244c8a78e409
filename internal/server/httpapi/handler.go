package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.bind(w, r, &req) {
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.bind(w, r, &req) {
		return
	}

	pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.bind(w, r, &req) {
		return
	}

	token, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	u := CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Hi, id=%s, email=%s", u.ID, u.Email),
	})
}

func (s *Server) handleUsersMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Hi, " + describeUser(CurrentUser(r.Context()))})
}

func (s *Server) handleUsersAdmin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Hi, admin! " + describeUser(CurrentUser(r.Context()))})
}

func (s *Server) handleUsersPublic(w http.ResponseWriter, r *http.Request) {
	u := CurrentUser(r.Context())
	if u == nil {
		writeJSON(w, http.StatusOK, messageResponse{Message: "no user"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Hi, " + describeUser(u)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func describeUser(u *models.UserResponse) string {
	return fmt.Sprintf("id=%s, email=%s, role=%s", u.ID, u.Email, u.Role)
}

// bind decodes and validates the JSON body into req, writing a 422 on
// failure. Emails are canonicalized before validation.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := decodeJSON(w, r, req); err != nil {
		writeError(r.Context(), w, s.logger, &validationError{details: map[string]string{"body": "invalid JSON body"}})
		return false
	}

	switch v := req.(type) {
	case *credentialsRequest:
		v.Email = models.CanonicalEmail(v.Email)
	case *loginRequest:
		v.Email = models.CanonicalEmail(v.Email)
	}

	if err := s.validate.Struct(req); err != nil {
		s.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "error", err)
		writeError(r.Context(), w, s.logger, &validationError{details: validationDetails(err)})
		return false
	}
	return true
}
