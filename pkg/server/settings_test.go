package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raterudder/gridsim/pkg/storage/storagemock"
	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSettings(t *testing.T) {
	t.Run("Get Settings - new profile gets defaults", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetSettings", mock.Anything, types.ProfileDefault).Return(types.Settings{}, 0, nil)
		srv := newTestServer(t, mockS)

		req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp SettingsRes
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, types.ProfileDefault, resp.Profile)
		assert.True(t, resp.Active)
		assert.Equal(t, 60.0, resp.LampHighW)
		assert.Equal(t, 1.75, resp.BetaAlpha)
		// nothing is written for a profile that was never stored
		mockS.AssertNotCalled(t, "SetSettings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Get Settings - other profile", func(t *testing.T) {
		stored := types.DefaultSettings()
		stored.LampHighW = 90
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetSettings", mock.Anything, "windy").Return(stored, types.CurrentSettingsVersion, nil)
		srv := newTestServer(t, mockS)

		req := httptest.NewRequest(http.MethodGet, "/api/settings?profile=windy", nil)
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"lampHighW":90`)
		assert.Contains(t, w.Body.String(), `"active":false`)
	})

	t.Run("Get Settings - storage error", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("GetSettings", mock.Anything, types.ProfileDefault).Return(types.Settings{}, 0, errors.New("boom"))
		srv := newTestServer(t, mockS)

		req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "failed to get settings", decodeError(t, w))
	})

	t.Run("Update Settings - restarts the live profile", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		srv := newTestServer(t, mockS)
		before := srv.simulator().RunID()

		newSettings := types.DefaultSettings()
		newSettings.LampHighW = 75
		newSettings.Seed = 5
		mockS.On("SetSettings", mock.Anything, types.ProfileDefault, newSettings, types.CurrentSettingsVersion).Return(nil).Once()

		body, err := json.Marshal(newSettings)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(string(body)))
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		mockS.AssertExpectations(t)
		sim := srv.simulator()
		assert.NotEqual(t, before, sim.RunID())
		assert.Equal(t, 75.0, sim.Settings().LampHighW)
		assert.Equal(t, uint64(5), sim.Seed())
	})

	t.Run("Update Settings - other profile leaves the simulation alone", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		srv := newTestServer(t, mockS)
		before := srv.simulator().RunID()

		newSettings := types.DefaultSettings()
		mockS.On("SetSettings", mock.Anything, "calm", newSettings, types.CurrentSettingsVersion).Return(nil).Once()

		body, err := json.Marshal(newSettings)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/settings?profile=calm", strings.NewReader(string(body)))
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		mockS.AssertExpectations(t)
		assert.Equal(t, before, srv.simulator().RunID())
	})

	t.Run("Update Settings - invalid", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		srv := newTestServer(t, mockS)

		bad := types.DefaultSettings()
		bad.Fridge.LowerC = bad.Fridge.UpperC
		body, err := json.Marshal(bad)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(string(body)))
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w), "fridge thresholds")

		req = httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader("{"))
		w = httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		mockS.AssertNotCalled(t, "SetSettings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Update Settings - storage error", func(t *testing.T) {
		mockS := &storagemock.MockDatabase{}
		mockS.On("SetSettings", mock.Anything, types.ProfileDefault, mock.Anything, types.CurrentSettingsVersion).Return(errors.New("boom"))
		srv := newTestServer(t, mockS)

		body, err := json.Marshal(types.DefaultSettings())
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(string(body)))
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestListProfiles(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	mockS.On("ListProfiles", mock.Anything).Return([]string{"calm", "default"}, nil).Once()
	mockS.On("ListProfiles", mock.Anything).Return(nil, errors.New("boom")).Once()
	srv := newTestServer(t, mockS)
	handler := srv.setupHandler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Profiles []string `json:"profiles"`
		Active   string   `json:"active"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, []string{"calm", "default"}, resp.Profiles)
	assert.Equal(t, types.ProfileDefault, resp.Active)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
