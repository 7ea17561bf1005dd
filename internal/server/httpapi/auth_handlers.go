package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/dmitrijs2005/eventpass/internal/server/services"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminLoginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AdminSecret string `json:"adminSecret"`
}

type profileRequest struct {
	FirstName        *string             `json:"firstName,omitempty"`
	LastName         *string             `json:"lastName,omitempty"`
	PhoneNumber      *string             `json:"phoneNumber,omitempty"`
	PhoneRegion      *string             `json:"phoneRegion,omitempty"`
	SessionType      *models.SessionType `json:"sessionType,omitempty"`
	BiometricEnabled *bool               `json:"biometricEnabled,omitempty"`
}

type profilePictureRequest struct {
	ProfilePictureURL string `json:"profilePictureUrl"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	res, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	res, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	res, err := s.auth.AdminLogin(r.Context(), req.Email, req.Password, req.AdminSecret)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleValidate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.auth.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(r.Context(), callerFrom(r.Context()).UserID)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Me(r.Context(), callerFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	u, err := s.auth.UpdateProfile(r.Context(), callerFrom(r.Context()).UserID, models.ProfileUpdate{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		PhoneNumber:      req.PhoneNumber,
		PhoneRegion:      req.PhoneRegion,
		SessionType:      req.SessionType,
		BiometricEnabled: req.BiometricEnabled,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateProfilePicture(w http.ResponseWriter, r *http.Request) {
	var req profilePictureRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w)
		return
	}
	u, err := s.auth.UpdateProfilePicture(r.Context(), callerFrom(r.Context()).UserID, req.ProfilePictureURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleProfilePictureUploadURL(w http.ResponseWriter, r *http.Request) {
	up, err := s.auth.ProfilePictureUploadURL(r.Context(), callerFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (s *Server) handleProfilePictureDownloadURL(w http.ResponseWriter, r *http.Request) {
	d, err := s.auth.ProfilePictureDownloadURL(r.Context(), callerFrom(r.Context()).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
