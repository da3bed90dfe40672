package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/storage"
	"github.com/sunquote/sunquote/pkg/types"
)

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		allowNoLogin := r.URL.Path == "/api/auth/login" || r.URL.Path == "/api/auth/status" || r.URL.Path == "/api/join"
		ignoreUserNotFound := r.URL.Path == "/api/auth/login" || r.URL.Path == "/api/join" || r.URL.Path == "/api/auth/status" || r.URL.Path == "/api/auth/logout"
		ignoreAgencyID := r.URL.Path == "/api/auth/login" || r.URL.Path == "/api/auth/status" || r.URL.Path == "/api/auth/logout"

		// extract AgencyID
		var agencyID string
		if r.Method == http.MethodGet || r.Method == http.MethodDelete {
			agencyID = r.URL.Query().Get("agencyID")
		} else {
			// read body to find AgencyID
			var bodyBytes []byte
			if r.Body != nil {
				// Limit body size to 1MB to prevent DoS
				r.Body = http.MaxBytesReader(w, r.Body, 1048576)
				var err error
				bodyBytes, err = io.ReadAll(r.Body)
				if err != nil {
					log.Ctx(ctx).ErrorContext(ctx, "failed to read request body", slog.Any("error", err))
					// since we failed to read, don't return JSON error
					http.Error(w, "invalid request", http.StatusBadRequest)
					return
				}
				// restore body for next handler
				r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			}

			// try to unmarshal just the AgencyID
			if len(bodyBytes) > 0 {
				var justAgencyID struct {
					AgencyID string `json:"agencyID"`
				}
				err := json.Unmarshal(bodyBytes, &justAgencyID)
				if err != nil {
					log.Ctx(ctx).ErrorContext(ctx, "failed to unmarshal request body", slog.Any("error", err))
					// since we failed to read, don't return JSON error
					http.Error(w, "invalid request", http.StatusBadRequest)
					return
				}
				agencyID = justAgencyID.AgencyID
			}
		}

		var email string
		var userID string
		// userFound is true if the user is a real user found in the database
		var userFound bool
		// user might be a mock/fake user if this is bypassAuth or singleAgency
		var user types.User
		// handle authentication
		if s.bypassAuth {
			user = types.User{
				ID:       "",
				Agencies: []types.UserAgency{{ID: types.AgencyIDNone}},
				Admin:    true,
			}
			ctx = context.WithValue(ctx, userContextKey, user)
		} else {
			var authSuccess bool

			// 1. Authenticate User (cookie)
			authCookie, err := r.Cookie(authTokenCookie)
			if err != nil && !errors.Is(err, http.ErrNoCookie) {
				log.Ctx(ctx).ErrorContext(ctx, "failed to get auth cookie", slog.Any("error", err))
				writeJSONError(w, "missing auth cookie", http.StatusBadRequest)
				return
			}
			if authCookie != nil {
				emailRet, subjectRet, _, err := s.authenticateToken(ctx, authCookie.Value, "")
				if err != nil {
					log.Ctx(ctx).ErrorContext(ctx, "auth token validation failed", slog.Any("error", err))
					writeJSONError(w, "invalid auth token", http.StatusBadRequest)
					return
				}
				email = emailRet
				userID = subjectRet
				authSuccess = true
			} else if !allowNoLogin {
				log.Ctx(ctx).WarnContext(ctx, "no auth cookie found")
				writeJSONError(w, "missing auth cookie", http.StatusBadRequest)
				return
			}

			if authSuccess {
				// fetch user
				if s.singleAgency {
					user = types.User{
						ID:       userID,
						Email:    email,
						Agencies: []types.UserAgency{{ID: types.AgencyIDNone}},
					}
				} else {
					var err error
					user, err = s.storage.GetUser(ctx, userID)
					if err != nil {
						if ignoreUserNotFound && errors.Is(err, storage.ErrUserNotFound) {
							log.Ctx(ctx).InfoContext(ctx, "user not found, will register on join", slog.String("userID", userID), slog.String("email", email))
							// Put a stub user in context so the join handler can create it
							ctx = context.WithValue(ctx, userToRegisterContextKey, types.User{
								ID:    userID,
								Email: email,
							})
						} else {
							log.Ctx(ctx).WarnContext(ctx, "user lookup failed", slog.String("userID", userID), slog.String("email", email), slog.Any("error", err))
							writeJSONError(w, "user lookup failed", http.StatusForbidden)
							return
						}
					} else {
						userFound = true
						// fill in default agencyID if the user only has 1 agency
						if agencyID == "" && len(user.Agencies) == 1 {
							agencyID = user.Agencies[0].ID
						}
					}
				}

				var isAdmin bool
				for _, admin := range s.adminEmails {
					if email == admin {
						isAdmin = true
						// Do not set user.Admin = true to grant read-only access when multi-agency
						// but for single-agency we do want to set Admin
						if s.singleAgency {
							user.Admin = true
						}
						break
					}
				}
				if !s.singleAgency && agencyID != "" && agencyID != AgencyIDAll {
					agency, err := s.storage.GetAgency(ctx, agencyID)
					if err != nil {
						log.Ctx(ctx).WarnContext(ctx, "agency lookup failed", slog.String("agencyID", agencyID), slog.Any("error", err))
						writeJSONError(w, "agency access denied", http.StatusForbidden)
						return
					}

					permFound := false
					for _, p := range agency.Permissions {
						if p.UserID == user.ID {
							permFound = true
							user.Admin = true
							break
						}
					}
					if !permFound && !isAdmin {
						log.Ctx(ctx).WarnContext(ctx, "user does not have permission for agency", slog.String("userID", userID), slog.String("email", email), slog.String("agency", agencyID))
						writeJSONError(w, "agency access denied", http.StatusForbidden)
						return
					}
				}
				ctx = context.WithValue(ctx, userContextKey, user)
			} else if !allowNoLogin {
				log.Ctx(ctx).WarnContext(ctx, "unauthenticated request")
				s.clearCookie(w)
				writeJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		if agencyID == "" {
			if s.singleAgency {
				agencyID = types.AgencyIDNone
			} else if !allowNoLogin && !ignoreAgencyID {
				log.Ctx(ctx).WarnContext(ctx, "agencyID required", slog.String("userID", userID))
				writeJSONError(w, "agencyID required", http.StatusBadRequest)
				return
			}
		}

		if userID != "" {
			ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authUserID", userID)))
		}
		if agencyID != "" {
			ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authAgencyID", agencyID)))
		}

		log.Ctx(ctx).DebugContext(
			ctx,
			"authenticated request",
			slog.String("email", email),
			slog.Bool("userFound", userFound),
		)

		ctx = context.WithValue(ctx, allUserAgenciesContextKey, user.Agencies)
		ctx = context.WithValue(ctx, agencyIDContextKey, agencyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	// expecting JSON body with the ID token and the provider it came from
	var req struct {
		Token  string `json:"token"`
		Client string `json:"client"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// since we failed to read, don't return JSON error
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	email, subject, expires, err := s.authenticateToken(r.Context(), req.Token, req.Client)
	if err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to validate id token", slog.Any("error", err))
		writeJSONError(w, "invalid id token", http.StatusUnauthorized)
		return
	}

	if email == "" {
		log.Ctx(r.Context()).WarnContext(r.Context(), "invalid email in id token")
		writeJSONError(w, "invalid oidc claims", http.StatusUnauthorized)
		return
	}

	log.Ctx(r.Context()).InfoContext(r.Context(), "login token validated successfully", slog.String("email", email), slog.String("subject", subject))

	// Set the cookie
	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    req.Token,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})

	w.WriteHeader(http.StatusOK)
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearCookie(w)
	w.WriteHeader(http.StatusOK)
}

type authStatusResponse struct {
	LoggedIn     bool               `json:"loggedIn"`
	Email        string             `json:"email"`
	AuthRequired bool               `json:"authRequired"`
	ClientIDs    map[string]string  `json:"clientIDs"`
	Agencies     []types.UserAgency `json:"agencies"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	var loggedIn bool
	user := s.getUser(r)
	if user.ID != "" {
		loggedIn = true
	} else if userToRegister, ok := r.Context().Value(userToRegisterContextKey).(types.User); ok {
		user = userToRegister
		loggedIn = true
	}
	agencies := s.getAllUserAgencies(r)

	err := json.NewEncoder(w).Encode(authStatusResponse{
		LoggedIn:     loggedIn,
		Email:        user.Email,
		AuthRequired: len(s.oidcAudiences) > 0,
		ClientIDs:    s.oidcAudiences,
		Agencies:     agencies,
	})
	if err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) authenticateToken(ctx context.Context, token string, specificClient string) (string, string, time.Time, error) {
	var errs []error

	for providerName, verifier := range s.oidcVerifiers {
		if specificClient != "" && providerName != specificClient {
			continue
		}
		idToken, err := verifier(ctx, token)
		if err == nil {
			var claims struct {
				Email string `json:"email"`
			}
			err = idToken.Claims(&claims)
			if err == nil {
				return claims.Email, idToken.Subject, idToken.Expiry, nil
			}
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", providerName, err))
	}

	if len(errs) > 1 {
		return "", "", time.Time{}, errors.Join(errs...)
	}
	if len(errs) == 1 {
		return "", "", time.Time{}, errs[0]
	}
	return "", "", time.Time{}, errors.New("no valid audiences configured or token invalid")
}
