package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Error
}

func TestWriteSuccessWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"hello":"world"}}`, rec.Body.String())
}

func TestWriteCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCreated(rec, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestWriteUnencodableBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]any{"ch": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInternal), decodeError(t, rec).Code)
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), logger.Nop(), rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), body.Code)
	assert.Equal(t, "bad input", body.Message)
	assert.NotNil(t, body.Details)
}

func TestWriteErrorInsufficientStockKeepsDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough Cement").
		WithDetails(map[string]any{"available": "45", "requested": "60"})
	WriteError(context.Background(), nil, rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "not enough Cement", body.Message)
	details, ok := body.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "45", details["available"])
}

func TestWriteErrorHidesUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), logger.Nop(), rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec).Message)
}
