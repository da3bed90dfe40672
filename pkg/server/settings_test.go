package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/sunquote/sunquote/pkg/storage/storagemock"
	"github.com/sunquote/sunquote/pkg/types"
)

func TestSettings(t *testing.T) {
	t.Run("Get Settings", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetSettings", mock.Anything, "agency-1").Return(currentSettings(), types.CurrentSettingsVersion, nil)

		srv := newTestServer(mockS)
		req := httptest.NewRequest("GET", "/api/settings", nil)
		req = withAgency(req, "agency-1", adminUser())
		w := httptest.NewRecorder()

		srv.handleGetSettings(w, req)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		assert.Contains(t, w.Body.String(), `"vatPercent":20`)
		assert.Contains(t, w.Body.String(), `"activationFee":499`)
	})

	t.Run("Get Settings - Migrates Old Version", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetSettings", mock.Anything, "agency-1").Return(types.Settings{}, 0, nil)
		mockS.On("SetSettings", mock.Anything, "agency-1", mock.MatchedBy(func(s types.Settings) bool {
			return s.VATPercent == 20 && len(s.SubsidyBands) > 0
		}), types.CurrentSettingsVersion).Return(nil)

		srv := newTestServer(mockS)
		req := httptest.NewRequest("GET", "/api/settings", nil)
		req = withAgency(req, "agency-1", adminUser())
		w := httptest.NewRecorder()

		srv.handleGetSettings(w, req)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		// migrated defaults came back even though storage had nothing
		assert.Contains(t, w.Body.String(), `"subsidyBands"`)
		mockS.AssertExpectations(t)
	})

	t.Run("Update Settings - Not Admin", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		srv := newTestServer(mockS)

		user := adminUser()
		user.Admin = false
		req := httptest.NewRequest("POST", "/api/settings", strings.NewReader(`{}`))
		req = withAgency(req, "agency-1", user)
		w := httptest.NewRecorder()

		srv.handleUpdateSettings(w, req)
		assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)
	})

	t.Run("Update Settings - Missing Auth", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		srv := newTestServer(mockS)

		req := httptest.NewRequest("POST", "/api/settings", strings.NewReader(`{}`))
		req = withAgency(req, "agency-1", types.User{})
		w := httptest.NewRecorder()

		srv.handleUpdateSettings(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
	})

	t.Run("Update Settings - Validation Error", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		srv := newTestServer(mockS)

		// negative VAT
		body := `{"vatPercent": -5}`
		req := httptest.NewRequest("POST", "/api/settings", strings.NewReader(body))
		req = withAgency(req, "agency-1", adminUser())
		w := httptest.NewRecorder()

		srv.handleUpdateSettings(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)

		// inverted subsidy band
		body = `{"vatPercent": 20, "subsidyBands": [{"minKWC": 9, "maxKWC": 3, "perKWC": 160}]}`
		req = httptest.NewRequest("POST", "/api/settings", strings.NewReader(body))
		req = withAgency(req, "agency-1", adminUser())
		w = httptest.NewRecorder()

		srv.handleUpdateSettings(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)

		// negative custom install price
		body = `{"vatPercent": 20, "customInstallPrices": [{"powerKWC": 6, "amount": -1}]}`
		req = httptest.NewRequest("POST", "/api/settings", strings.NewReader(body))
		req = withAgency(req, "agency-1", adminUser())
		w = httptest.NewRecorder()

		srv.handleUpdateSettings(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})

	t.Run("Update Settings - Success", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("SetSettings", mock.Anything, "agency-1", mock.MatchedBy(func(s types.Settings) bool {
			return s.VATPercent == 10 && s.ActivationFee == 599
		}), types.CurrentSettingsVersion).Return(nil)

		srv := newTestServer(mockS)
		body := `{"vatPercent": 10, "activationFee": 599}`
		req := httptest.NewRequest("POST", "/api/settings", strings.NewReader(body))
		req = withAgency(req, "agency-1", adminUser())
		w := httptest.NewRecorder()

		srv.handleUpdateSettings(w, req)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		mockS.AssertExpectations(t)
	})
}
