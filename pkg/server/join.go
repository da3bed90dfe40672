package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/storage"
	"github.com/sunquote/sunquote/pkg/types"
)

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse request body
	var req struct {
		InviteCode   string `json:"inviteCode"`
		JoinAgencyID string `json:"joinAgencyID"`
		Create       bool   `json:"create"`
		Name         string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// since we failed to read, don't return JSON error
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !req.Create && (req.InviteCode == "" || req.JoinAgencyID == "") {
		writeJSONError(w, "inviteCode and joinAgencyID are required", http.StatusBadRequest)
		return
	}

	if req.Create && s.singleAgency {
		writeJSONError(w, "cannot create a new agency in single-agency mode", http.StatusForbidden)
		return
	}

	// Get the authenticated user from context (either existing or new-to-register)
	var userID, email string

	if user := s.getUser(r); user.ID != "" {
		userID = user.ID
		email = user.Email
	} else if userToRegister, ok := ctx.Value(userToRegisterContextKey).(types.User); ok {
		userID = userToRegister.ID
		email = userToRegister.Email
	}

	if userID == "" {
		writeJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	// Limit user to 5 agencies
	agencies := s.getAllUserAgencies(r)
	if len(agencies) >= 5 {
		alreadyMember := false
		if !req.Create {
			for _, a := range agencies {
				if a.ID == req.JoinAgencyID {
					alreadyMember = true
					break
				}
			}
		}
		if !alreadyMember {
			writeJSONError(w, "maximum of 5 agencies reached", http.StatusForbidden)
			return
		}
	}

	var agency types.Agency
	if req.Create {
		// Generate Agency ID from the email local part when it is long enough
		prefix := ""
		if idx := strings.Index(email, "@"); idx != -1 {
			prefix = email[:idx]
		}

		usePrefix := false
		if len(prefix) >= 8 {
			for i := 0; i < 10; i++ {
				try := prefix
				if i > 0 {
					try = fmt.Sprintf("%s_%d", prefix, i)
				}
				if _, err := s.storage.GetAgency(ctx, try); errors.Is(err, storage.ErrAgencyNotFound) {
					prefix = try
					usePrefix = true
					break
				}
			}
		}

		if usePrefix {
			req.JoinAgencyID = prefix
		} else {
			b := make([]byte, 8)
			if _, err := rand.Read(b); err != nil {
				writeJSONError(w, "failed to generate agency id", http.StatusInternalServerError)
				return
			}
			req.JoinAgencyID = hex.EncodeToString(b)
		}

		agency = types.Agency{
			ID:         req.JoinAgencyID,
			Name:       req.Name,
			InviteCode: "",
			Permissions: []types.AgencyPermissions{
				{UserID: userID},
			},
		}

		if err := s.storage.CreateAgency(ctx, req.JoinAgencyID, agency); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "join: failed to create agency", slog.String("agencyID", req.JoinAgencyID), slog.Any("error", err))
			writeJSONError(w, "failed to create agency", http.StatusInternalServerError)
			return
		}
	} else {
		// Look up the agency
		var err error
		agency, err = s.storage.GetAgency(ctx, req.JoinAgencyID)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "join: agency not found", slog.String("agencyID", req.JoinAgencyID), slog.Any("error", err))
			writeJSONError(w, "agency not found", http.StatusNotFound)
			return
		}

		// Validate invite code using constant-time comparison
		if agency.InviteCode == "" || subtle.ConstantTimeCompare([]byte(req.InviteCode), []byte(agency.InviteCode)) != 1 {
			log.Ctx(ctx).WarnContext(ctx, "join: invalid invite code", slog.String("agencyID", req.JoinAgencyID), slog.String("userID", userID))
			writeJSONError(w, "invalid invite code", http.StatusForbidden)
			return
		}
	}

	// Check if user already has permission on this agency
	alreadyJoined := false
	for _, p := range agency.Permissions {
		if p.UserID == userID {
			alreadyJoined = true
			break
		}
	}

	// 1. Create or Update User
	isNewUser := false
	if _, ok := ctx.Value(userToRegisterContextKey).(types.User); ok {
		isNewUser = true
	}

	if req.Name == "" {
		req.Name = req.JoinAgencyID
	}

	if isNewUser {
		// Create the user with this agency
		newUser := types.User{
			ID:    userID,
			Email: email,
			Agencies: []types.UserAgency{
				{
					ID:   req.JoinAgencyID,
					Name: req.Name,
				},
			},
		}
		if err := s.storage.CreateUser(ctx, newUser); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "join: failed to create user", slog.String("userID", userID), slog.Any("error", err))
			writeJSONError(w, "failed to create user", http.StatusInternalServerError)
			return
		}
	} else {
		// Existing user, add agency to their list if not already there
		existingUser, err := s.storage.GetUser(ctx, userID)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "join: failed to get user", slog.Any("error", err))
			writeJSONError(w, "failed to join agency", http.StatusInternalServerError)
			return
		}

		hasAgency := false
		nameChanged := false
		for i := range existingUser.Agencies {
			if existingUser.Agencies[i].ID == req.JoinAgencyID {
				if existingUser.Agencies[i].Name != req.Name {
					existingUser.Agencies[i].Name = req.Name
					nameChanged = true
				}
				hasAgency = true
				break
			}
		}

		if !hasAgency {
			existingUser.Agencies = append(existingUser.Agencies, types.UserAgency{
				ID:   req.JoinAgencyID,
				Name: req.Name,
			})
		}

		if !hasAgency || nameChanged {
			if err := s.storage.UpdateUser(ctx, existingUser); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "join: failed to update user", slog.Any("error", err))
				writeJSONError(w, "failed to join agency", http.StatusInternalServerError)
				return
			}
		}
	}

	// 2. Update Agency (Add permission)
	if !alreadyJoined {
		agency.Permissions = append(agency.Permissions, types.AgencyPermissions{UserID: userID})
		if err := s.storage.UpdateAgency(ctx, req.JoinAgencyID, agency); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "join: failed to update agency", slog.String("agencyID", req.JoinAgencyID), slog.Any("error", err))
			writeJSONError(w, "failed to join agency", http.StatusInternalServerError)
			return
		}
	}

	log.Ctx(ctx).InfoContext(ctx, "user joined agency", slog.String("agencyID", req.JoinAgencyID))
	w.WriteHeader(http.StatusOK)
}

type listAgencyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleListAgencies lists every agency. Only multi-agency admins can call it.
func (s *Server) handleListAgencies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)

	if !s.bypassAuth && !s.isMultiAgencyAdmin(user) {
		writeJSONError(w, "unauthorized", http.StatusForbidden)
		return
	}

	agencies, err := s.storage.ListAgencies(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list agencies", slog.Any("error", err))
		writeJSONError(w, "failed to list agencies", http.StatusInternalServerError)
		return
	}

	resp := make([]listAgencyResponse, 0, len(agencies))
	for _, a := range agencies {
		resp = append(resp, listAgencyResponse{ID: a.ID, Name: a.Name})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		panic(http.ErrAbortHandler)
	}
}
