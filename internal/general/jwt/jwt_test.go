package jwt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bus-boarding/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	riderID    = "3f2b9a8e-5c1d-4e6f-9a7b-2c3d4e5f6a7b"
)

func TestIssueAndParse(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)

	tok, claims, err := mgr.IssueUserToken(riderID, "ana@example.com", user.RoleRider)
	require.NoError(t, err)
	assert.Equal(t, riderID, claims.Subject)

	_, parsed, err := mgr.ParseAndValidate(tok)
	require.NoError(t, err)
	assert.Equal(t, user.RoleRider, parsed.Role)
	assert.Equal(t, "ana@example.com", parsed.Email)
}

func TestIssueRejectsBadInput(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)

	_, _, err := mgr.IssueUserToken(riderID, "", user.Role("PILOT"))
	assert.Error(t, err)

	_, _, err = mgr.IssueUserToken(" ", "", user.RoleRider)
	assert.Error(t, err)
}

func TestParseRejectsExpiredAndForeign(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr := NewManager(testSecret, time.Minute).WithClock(func() time.Time { return issued })

	tok, _, err := mgr.IssueUserToken(riderID, "", user.RoleRider)
	require.NoError(t, err)

	later := mgr.WithClock(func() time.Time { return issued.Add(2 * time.Minute) })
	_, _, err = later.ParseAndValidate(tok)
	assert.Error(t, err)

	other := NewManager("other-secret", time.Minute).WithClock(func() time.Time { return issued })
	_, _, err = other.ParseAndValidate(tok)
	assert.Error(t, err)
}

func TestNewManagerPanicsOnEmptySecret(t *testing.T) {
	assert.Panics(t, func() { NewManager("  ", time.Hour) })
}

func TestAuthMiddleware(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)
	riderTok, _, err := mgr.IssueUserToken(riderID, "", user.RoleRider)
	require.NoError(t, err)
	deviceTok, _, err := mgr.IssueUserToken("9d1c0b7a-1111-4222-8333-444455556666", "", user.RoleDevice)
	require.NoError(t, err)

	var seen *Claims
	h := AuthMiddlewareFunc(mgr, user.RoleRider)(func(w http.ResponseWriter, r *http.Request) {
		seen = RequireClaims(r)
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusForbidden},
		{"empty bearer", "Bearer ", http.StatusForbidden},
		{"garbage", "Bearer not.a.jwt", http.StatusForbidden},
		{"wrong role", "Bearer " + deviceTok, http.StatusForbidden},
		{"ok", "Bearer " + riderTok, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, riderID, seen.Subject)
				return
			}
			assert.Nil(t, seen)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAuthMiddlewareAnyRole(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)
	tok, _, err := mgr.IssueUserToken(riderID, "", user.RoleDevice)
	require.NoError(t, err)

	h := AuthMiddlewareFunc(mgr)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)
	tok, _, err := mgr.IssueUserToken(riderID, "", user.RoleRider)
	require.NoError(t, err)

	res, err := ValidateWSAuth([]byte(`{"type":"auth","token":"Bearer `+tok+`"}`), mgr)
	require.NoError(t, err)
	assert.Equal(t, riderID, res.Claims.Subject)
	assert.Equal(t, tok, res.Raw)

	_, err = ValidateWSAuth([]byte(`{"type":"hello","token":"Bearer `+tok+`"}`), mgr)
	assert.ErrorIs(t, err, ErrBadAuthMsg)

	_, err = ValidateWSAuth([]byte(`{"type":"auth","token":"`+tok+`"}`), mgr)
	assert.ErrorIs(t, err, ErrBadTokenWrap)

	_, err = ValidateWSAuth([]byte(`{"type":"auth","token":"Bearer `+tok+`"}`), mgr, user.RoleAdmin)
	assert.ErrorIs(t, err, ErrRoleForbidden)

	_, err = ValidateWSAuth([]byte(`not json`), mgr)
	assert.ErrorIs(t, err, ErrBadAuthMsg)
}
