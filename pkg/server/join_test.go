package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/sunquote/sunquote/pkg/storage/storagemock"
	"github.com/sunquote/sunquote/pkg/types"
)

func TestJoin(t *testing.T) {
	withRegisterUser := func(req *http.Request, user types.User) *http.Request {
		ctx := context.WithValue(req.Context(), userToRegisterContextKey, user)
		ctx = context.WithValue(ctx, agencyIDContextKey, "")
		return req.WithContext(ctx)
	}

	t.Run("Create Agency For New User", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("CreateAgency", mock.Anything, mock.Anything, mock.MatchedBy(func(a types.Agency) bool {
			return len(a.Permissions) == 1 && a.Permissions[0].UserID == "new-user" && a.Name == "Solaris"
		})).Return(nil)
		mockS.On("CreateUser", mock.Anything, mock.MatchedBy(func(u types.User) bool {
			return u.ID == "new-user" && len(u.Agencies) == 1
		})).Return(nil)

		srv := newTestServer(mockS)
		body := `{"create": true, "name": "Solaris"}`
		req := httptest.NewRequest("POST", "/api/join", strings.NewReader(body))
		req = withRegisterUser(req, types.User{ID: "new-user", Email: "agent@example.com"})
		w := httptest.NewRecorder()

		srv.handleJoin(w, req)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		mockS.AssertExpectations(t)
	})

	t.Run("Join With Invite Code", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetAgency", mock.Anything, "agency-1").Return(types.Agency{
			ID:         "agency-1",
			InviteCode: "secret",
			Permissions: []types.AgencyPermissions{
				{UserID: "owner"},
			},
		}, nil)
		mockS.On("GetUser", mock.Anything, "user-1").Return(types.User{
			ID:    "user-1",
			Email: "admin@example.com",
		}, nil)
		mockS.On("UpdateUser", mock.Anything, mock.MatchedBy(func(u types.User) bool {
			return len(u.Agencies) == 1 && u.Agencies[0].ID == "agency-1"
		})).Return(nil)
		mockS.On("UpdateAgency", mock.Anything, "agency-1", mock.MatchedBy(func(a types.Agency) bool {
			return len(a.Permissions) == 2 && a.Permissions[1].UserID == "user-1"
		})).Return(nil)

		srv := newTestServer(mockS)
		user := adminUser()
		user.Agencies = nil
		body := `{"inviteCode": "secret", "joinAgencyID": "agency-1"}`
		req := httptest.NewRequest("POST", "/api/join", strings.NewReader(body))
		req = withAgency(req, "", user)
		w := httptest.NewRecorder()

		srv.handleJoin(w, req)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		mockS.AssertExpectations(t)
	})

	t.Run("Invalid Invite Code", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetAgency", mock.Anything, "agency-1").Return(types.Agency{
			ID:         "agency-1",
			InviteCode: "secret",
		}, nil)

		srv := newTestServer(mockS)
		body := `{"inviteCode": "wrong", "joinAgencyID": "agency-1"}`
		req := httptest.NewRequest("POST", "/api/join", strings.NewReader(body))
		req = withAgency(req, "", adminUser())
		w := httptest.NewRecorder()

		srv.handleJoin(w, req)
		assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)
	})

	t.Run("Missing Fields", func(t *testing.T) {
		srv := newTestServer(&storagemock.MockDatabase{})
		req := httptest.NewRequest("POST", "/api/join", strings.NewReader(`{}`))
		req = withAgency(req, "", adminUser())
		w := httptest.NewRecorder()

		srv.handleJoin(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})

	t.Run("Create In Single Agency Mode", func(t *testing.T) {
		srv := newTestServer(&storagemock.MockDatabase{})
		srv.singleAgency = true
		req := httptest.NewRequest("POST", "/api/join", strings.NewReader(`{"create": true}`))
		req = withAgency(req, "", adminUser())
		w := httptest.NewRecorder()

		srv.handleJoin(w, req)
		assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)
	})
}
