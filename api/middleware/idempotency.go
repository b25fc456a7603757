package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/angelmondragon/sitestock-backend/api/responses"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour

	maxIdempotentBodyBytes = 1 << 20

	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotency-Replayed"
)

// ResponseStore keeps recorded responses. Lookup reports found=false for a
// missing key rather than an error.
type ResponseStore interface {
	Lookup(ctx context.Context, key string) (value string, found bool, err error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

type idempotencyRule struct {
	method   string
	glob     string // path.Match pattern over the request path
	ttl      time.Duration
	required bool
}

var idempotencyRules = []idempotencyRule{
	{http.MethodPost, "/api/v1/material-requests", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/material-requests/*/approve", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/material-requests/*/reject", defaultIdempotencyTTL, false},
	{http.MethodPut, "/api/v1/inventory/*/materials/*", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/inventory/*/materials/*/adjust", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/notifications/*/read", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/notifications/read-all", defaultIdempotencyTTL, false},
	// stock-moving calls: key mandatory, week-long replay window
	{http.MethodPost, "/api/v1/material-requests/*/issue", criticalIdempotencyTTL, true},
	{http.MethodPost, "/api/v1/material-returns", criticalIdempotencyTTL, true},
}

func matchRule(method, requestPath string) (idempotencyRule, bool) {
	requestPath = strings.TrimSuffix(requestPath, "/")
	for _, rule := range idempotencyRules {
		if rule.method != method {
			continue
		}
		if ok, _ := path.Match(rule.glob, requestPath); ok {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first successful response recorded for a
// (user, method, path, Idempotency-Key) tuple. Non-2xx responses are not
// recorded, so a rejected call may be retried under the same key. Reusing a
// key with a different body is a CodeIdempotency error.
func Idempotency(store ResponseStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchRule(r.Method, r.URL.Path)
			key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
			if !ok || store == nil || (key == "" && !rule.required) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if key == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
						WithDetails(map[string]any{"limit_bytes": tooLarge.Limit}))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])

			scope := strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|")
			storeKey := store.IdempotencyKey(scope, key)

			raw, found, err := store.Lookup(ctx, storeKey)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if found {
				var prior storedResponse
				if err := json.Unmarshal([]byte(raw), &prior); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if prior.RequestHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replay(w, prior)
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status < 200 || capture.status > 299 {
				return
			}
			record, err := json.Marshal(storedResponse{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, storeKey, string(record), rule.ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, prior storedResponse) {
	if prior.ContentType != "" {
		w.Header().Set("Content-Type", prior.ContentType)
	}
	w.Header().Set(headerReplayed, "true")
	w.WriteHeader(prior.Status)
	_, _ = w.Write(prior.Body)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
