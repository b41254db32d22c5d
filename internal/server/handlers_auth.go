package server

import (
	"net/http"

	"github.com/ridwanullahh/qurandb/internal/docstore"
)

type registerRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Profile  docstore.Document `json:"profile"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	user, err := s.auth.Register(r.Context(), req.Email, req.Password, req.Profile)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, user)
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	res, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) error {
	var req otpRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	res, err := s.auth.VerifyOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) error {
	var req otpRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	if err := s.auth.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
	return nil
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) requestVerification(w http.ResponseWriter, r *http.Request) error {
	var req emailRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	if err := s.auth.RequestEmailVerification(r.Context(), req.Email); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request) error {
	var req emailRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	if err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		return err
	}
	// Always 204 so the endpoint cannot be used to probe for accounts.
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type resetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) error {
	var req resetRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	if err := s.auth.ResetPassword(r.Context(), req.Email, req.Code, req.Password); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) error {
	if err := s.auth.Logout(r.Context(), sessionToken(r)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) refreshSession(w http.ResponseWriter, r *http.Request) error {
	if err := s.auth.RefreshSession(r.Context(), sessionToken(r)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request, user docstore.Document) error {
	writeJSON(w, http.StatusOK, user)
	return nil
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *Server) assignRole(w http.ResponseWriter, r *http.Request, _ docstore.Document) error {
	var req roleRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	user, err := s.auth.AssignRole(r.Context(), r.PathValue("key"), req.Role)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

func (s *Server) removeRole(w http.ResponseWriter, r *http.Request, _ docstore.Document) error {
	user, err := s.auth.RemoveRole(r.Context(), r.PathValue("key"), r.PathValue("role"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}
