// Package auth provides optional cookie-session authentication for the
// API surface, backed by a TOML user file with bcrypt-hashed passwords.
package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Service ties the user store and session manager together for the
// HTTP layer.
type Service struct {
	users    *UserStore
	sessions *SessionManager
	logger   *logrus.Logger
}

// NewService loads the user file (creating it with a default admin user
// when missing) and starts the session manager.
func NewService(usersFile string, secureCookies bool) (*Service, error) {
	users, err := NewUserStore(usersFile)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Service{
		users:    users,
		sessions: NewSessionManager(24*time.Hour, secureCookies),
		logger:   logger,
	}, nil
}

// Login validates credentials and, on success, establishes a session
// and sets its cookie on the response.
func (s *Service) Login(w http.ResponseWriter, username, password string) (*Session, error) {
	if !s.users.Authenticate(username, password) {
		s.logger.WithField("username", username).Warn("Failed login attempt")
		return nil, fmt.Errorf("invalid username or password")
	}

	session, err := s.sessions.CreateSession(username)
	if err != nil {
		return nil, err
	}
	s.sessions.SetSessionCookie(w, session)

	s.logger.WithField("username", username).Info("User logged in")
	return session, nil
}

// Logout tears down the request's session, if any, and clears the
// cookie.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	if session, ok := s.sessions.GetSessionFromRequest(r); ok {
		s.sessions.DeleteSession(session.ID)
	}
	s.sessions.ClearSessionCookie(w)
}

// SessionFromRequest returns the valid session attached to the request,
// refreshing its expiry.
func (s *Service) SessionFromRequest(r *http.Request) (*Session, bool) {
	session, ok := s.sessions.GetSessionFromRequest(r)
	if !ok {
		return nil, false
	}
	s.sessions.RefreshSession(session.ID)
	return session, true
}

// CurrentUser returns the user behind the request's session.
func (s *Service) CurrentUser(r *http.Request) *User {
	session, ok := s.SessionFromRequest(r)
	if !ok {
		return nil
	}
	return s.users.GetUser(session.Username)
}
