package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/mail"

	"github.com/suraj5sky/sky-tts/internal/account"
)

// maxWebhookBytes caps payment webhook bodies.
const maxWebhookBytes = 64 << 10

type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type userResponse struct {
	Status string `json:"status"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Plan   string `json:"plan"`
}

// requireAccounts guards the account endpoints in anonymous deployments.
func (s *Server) requireAccounts(w http.ResponseWriter) bool {
	if s.accounts == nil {
		writeError(w, http.StatusNotImplemented, "Accounts are not enabled on this server")
		return false
	}
	return true
}

// handleSignup registers an account and starts a session.
//
// @Summary  Create an account
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    request  body      credentialsRequest  true  "New account"
// @Success  201  {object}  userResponse
// @Failure  400  {object}  errorEnvelope
// @Failure  409  {object}  errorEnvelope
// @Router   /api/auth/signup [post]
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.requireAccounts(w) {
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	u, token, err := s.accounts.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, userResponse{
		Status: "success",
		Email:  u.Email,
		Name:   u.Name,
		Plan:   string(u.Plan),
	})
}

// handleLogin verifies credentials and starts a session.
//
// @Summary  Log in
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    request  body      credentialsRequest  true  "Credentials"
// @Success  200  {object}  userResponse
// @Failure  401  {object}  errorEnvelope
// @Router   /api/auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.requireAccounts(w) {
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	u, token, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, userResponse{
		Status: "success",
		Email:  u.Email,
		Name:   u.Name,
		Plan:   string(u.Plan),
	})
}

// handleLogout ends the current session.
//
// @Summary  Log out
// @Tags     auth
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /api/auth/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.requireAccounts(w) {
		return
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		_ = s.accounts.Logout(r.Context(), c.Value)
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type authStatusResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Plan          string `json:"plan,omitempty"`
	CharLimit     int    `json:"char_limit"`
}

// handleAuthStatus reports whether the caller has a live session.
//
// @Summary  Session status
// @Tags     auth
// @Produce  json
// @Success  200  {object}  authStatusResponse
// @Router   /api/auth/status [get]
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	resp := authStatusResponse{
		Status:    "success",
		CharLimit: account.PlanFree.CharLimit(),
	}
	if u := s.currentUser(r); u != nil {
		resp.Authenticated = true
		resp.Email = u.Email
		resp.Name = u.Name
		resp.Plan = string(u.Plan)
		resp.CharLimit = u.Plan.CharLimit()
	}
	writeJSON(w, http.StatusOK, resp)
}

type subscribeRequest struct {
	Plan string `json:"plan"`
}

// handleSubscribe changes the logged-in user's plan.
//
// @Summary  Change subscription plan
// @Tags     account
// @Accept   json
// @Produce  json
// @Param    request  body      subscribeRequest  true  "Target plan"
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  errorEnvelope
// @Failure  401  {object}  errorEnvelope
// @Router   /api/subscribe [post]
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if !s.requireAccounts(w) {
		return
	}
	u := s.currentUser(r)
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Login required")
		return
	}
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := s.accounts.Subscribe(r.Context(), u.Email, account.Plan(req.Plan)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"plan":   req.Plan,
	})
}

type analyticsResponse struct {
	Status    string `json:"status"`
	CharsUsed int64  `json:"chars_used"`
	CharLimit int    `json:"char_limit"`
	APICalls  int64  `json:"api_calls"`
}

// handleAnalytics reports the logged-in user's consumption counters.
//
// @Summary  Usage analytics
// @Tags     account
// @Produce  json
// @Success  200  {object}  analyticsResponse
// @Failure  401  {object}  errorEnvelope
// @Router   /api/analytics [get]
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if !s.requireAccounts(w) {
		return
	}
	u := s.currentUser(r)
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Login required")
		return
	}
	usage, err := s.accounts.Usage(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyticsResponse{
		Status:    "success",
		CharsUsed: usage.CharsUsed,
		CharLimit: u.Plan.CharLimit(),
		APICalls:  usage.APICalls,
	})
}

// handlePaymentWebhook applies a signed plan change from the payment
// provider. The signature covers the raw body.
//
// @Summary  Payment provider webhook
// @Tags     account
// @Accept   json
// @Produce  json
// @Param    X-Webhook-Signature  header  string  true  "Hex HMAC-SHA256 of the body"
// @Success  200  {object}  map[string]string
// @Failure  401  {object}  errorEnvelope
// @Router   /api/payments/webhook [post]
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhook == nil {
		writeError(w, http.StatusNotImplemented, "Payments are not enabled on this server")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read body")
		return
	}
	if err := s.webhook.Apply(r.Context(), body, r.Header.Get("X-Webhook-Signature")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
