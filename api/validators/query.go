package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
)

// queryValue parses an optional query parameter. ok is false when it is absent
// or blank; a value that fails to parse is a validation error naming the field.
func queryValue[T any](r *http.Request, key, kind string, parse func(string) (T, error)) (v T, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return v, false, nil
	}
	v, err = parse(raw)
	if err != nil {
		return v, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "query parameter must be "+kind).
			WithDetails(map[string]any{"field": key})
	}
	return v, true, nil
}

// ParseQueryInt returns defaultVal when the parameter is absent and rejects
// values outside [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	value, ok, err := queryValue(r, key, "numeric", strconv.Atoi)
	switch {
	case err != nil:
		return 0, err
	case !ok:
		return defaultVal, nil
	case value < min || value > max:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryUUID returns nil when the parameter is absent.
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	id, ok, err := queryValue(r, key, "a uuid", uuid.Parse)
	if !ok {
		return nil, err
	}
	return &id, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	value, _, err := queryValue(r, key, "a boolean", strconv.ParseBool)
	return value, err
}

// ParseURLUUID reads a chi path parameter as a uuid.
func ParseURLUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
