package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		query   string
		want    int
		wantErr string
	}{
		{query: "", want: 20},
		{query: "limit=%20", want: 20},
		{query: "limit=50", want: 50},
		{query: "limit=0", wantErr: "out of range"},
		{query: "limit=101", wantErr: "out of range"},
		{query: "limit=ten", wantErr: "must be numeric"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/material-requests?"+tc.query, nil)
			got, err := ParseQueryInt(req, "limit", 20, 1, 100)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?unreadOnly=true", nil)
	got, err := ParseQueryBool(req, "unreadOnly")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = ParseQueryBool(httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil), "unreadOnly")
	require.NoError(t, err)
	assert.False(t, got)

	_, err = ParseQueryBool(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?unreadOnly=maybe", nil), "unreadOnly")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseURLUUIDReportsField(t *testing.T) {
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", value)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/material-requests/"+value, nil)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	id := uuid.New()
	got, err := ParseURLUUID(withParam(id.String()), "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseURLUUID(withParam("cement"), "id")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]any{"field": "id"}, typed.Details())
}
