package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		wantID int64
		wantOK bool
	}{
		{"valid", "42", 42, true},
		{"zero", "0", 0, false},
		{"negative", "-3", 0, false},
		{"not a number", "abc", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/users/x", nil)
			r.SetPathValue("id", tt.value)
			w := httptest.NewRecorder()

			id, ok := ParseID(w, r, "id", zap.NewNop())
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		var p payload
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ana"}`))
		require.True(t, decodeJSON(httptest.NewRecorder(), r, &p, zap.NewNop()))
		assert.Equal(t, "Ana", p.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		var p payload
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ana","role":"admin"}`))
		assert.False(t, decodeJSON(w, r, &p, zap.NewNop()))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed", func(t *testing.T) {
		var p payload
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		assert.False(t, decodeJSON(w, r, &p, zap.NewNop()))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?user_id=5&limit=20&since=2024-05-01T10:00:00Z&bad=x", nil)

	id, err := queryInt64(r, "user_id")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(5), *id)

	missing, err := queryInt64(r, "medication_id")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = queryInt64(r, "bad")
	assert.Error(t, err)

	limit, err := queryInt(r, "limit")
	require.NoError(t, err)
	assert.Equal(t, 20, limit)

	since, err := queryTime(r, "since")
	require.NoError(t, err)
	assert.Equal(t, 2024, since.Year())

	_, err = queryTime(r, "bad")
	assert.Error(t, err)
}
