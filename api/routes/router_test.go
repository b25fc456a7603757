package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/internal/inventory"
	"github.com/angelmondragon/sitestock-backend/internal/issuance"
	"github.com/angelmondragon/sitestock-backend/internal/materialrequests"
	"github.com/angelmondragon/sitestock-backend/internal/notifications"
	"github.com/angelmondragon/sitestock-backend/internal/rollup"
	"github.com/angelmondragon/sitestock-backend/internal/transactions"
	pkgAuth "github.com/angelmondragon/sitestock-backend/pkg/auth"
	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memoryIdempotencyStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotencyStore) Lookup(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

type testAPI struct {
	handler http.Handler
	conn    *gorm.DB
	cfg     *config.Config
	project models.Project
	main    models.Warehouse
	cement  models.Material
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	client, conn := dbtest.Client(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)

	catalogRepo := catalog.NewRepository(conn)
	catalogSvc, err := catalog.NewService(catalogRepo)
	require.NoError(t, err)
	requestRepo := materialrequests.NewRepository(conn)
	requestSvc, err := materialrequests.NewService(requestRepo, catalogRepo, client, emitter)
	require.NoError(t, err)
	ledger, err := transactions.NewService(transactions.NewRepository(conn))
	require.NoError(t, err)
	totals, err := rollup.NewService(rollup.NewRepository(conn), ledger)
	require.NoError(t, err)
	stock, err := inventory.NewService(inventory.NewRepository(conn), catalog.NewRepository(conn), client)
	require.NoError(t, err)
	issuer, err := issuance.NewService(issuance.ServiceParams{
		TX:           client,
		Requests:     requestRepo,
		Catalog:      catalogRepo,
		Inventory:    stock,
		Transactions: ledger,
		Rollup:       totals,
		Outbox:       emitter,
	})
	require.NoError(t, err)
	notifySvc, err := notifications.NewService(notifications.NewRepository(conn))
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "sitestock-test", ExpirationMinutes: 30},
	}

	handler := NewRouter(cfg, logger.Nop(), Infra{
		DB:          stubPinger{},
		Redis:       stubPinger{},
		Idempotency: &memoryIdempotencyStore{data: map[string]string{}},
		Gatherer:    prometheus.NewRegistry(),
	}, Services{
		Catalog:       catalogSvc,
		Requests:      requestSvc,
		Issuance:      issuer,
		Inventory:     stock,
		Transactions:  ledger,
		Rollup:        totals,
		Notifications: notifySvc,
	})

	main := dbtest.SeedWarehouse(t, conn, "Main", enums.WarehouseMain)
	cement := dbtest.SeedMaterial(t, conn, "Cement", dbtest.MaterialOpts{
		Unit:   "bag",
		Prices: []decimal.Decimal{dbtest.Qty("10")},
	})
	dbtest.SeedStock(t, conn, main.ID, cement.ID, dbtest.Qty("100"))

	return testAPI{
		handler: handler,
		conn:    conn,
		cfg:     cfg,
		project: dbtest.SeedProject(t, conn, "Tower", nil),
		main:    main,
		cement:  cement,
	}
}

func (a testAPI) token(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(a.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func (a testAPI) do(method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	a.handler.ServeHTTP(resp, req)
	return resp
}

func (a testAPI) stock(t *testing.T) decimal.Decimal {
	t.Helper()
	var rec models.InventoryRecord
	require.NoError(t, a.conn.Where("warehouse_id = ? AND material_id = ?", a.main.ID, a.cement.ID).First(&rec).Error)
	return rec.Quantity
}

func dataID(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.ID)
	return envelope.Data.ID
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health/live", "", "", nil).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health/ready", "", "", nil).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/metrics", "", "", nil).Code)
}

func TestAPIRequiresToken(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(http.MethodGet, "/api/v1/material-requests", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCementScenarioOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	engineer := api.token(t, uuid.New(), enums.UserRoleSiteEngineer)
	manager := api.token(t, uuid.New(), enums.UserRoleProjectManager)
	keeper := api.token(t, uuid.New(), enums.UserRoleStorekeeper)

	body := fmt.Sprintf(`{"project_id":%q,"items":[{"material_id":%q,"quantity":"50"}]}`, api.project.ID, api.cement.ID)
	created := api.do(http.MethodPost, "/api/v1/material-requests", engineer, body, nil)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	requestID := dataID(t, created)
	base := "/api/v1/material-requests/" + requestID

	// engineers cannot approve their own requests
	require.Equal(t, http.StatusForbidden, api.do(http.MethodPost, base+"/approve", engineer, "", nil).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/approve", manager, "", nil).Code)

	// issue needs an idempotency key
	require.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, base+"/issue", keeper, "", nil).Code)

	key := map[string]string{"Idempotency-Key": "issue-" + requestID}
	first := api.do(http.MethodPost, base+"/issue", keeper, "", key)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	var issued struct {
		Data struct {
			TotalCost decimal.Decimal `json:"total_cost"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &issued))
	require.True(t, issued.Data.TotalCost.Equal(decimal.NewFromInt(500)), issued.Data.TotalCost.String())
	require.True(t, api.stock(t).Equal(decimal.NewFromInt(50)))

	replay := api.do(http.MethodPost, base+"/issue", keeper, "", key)
	require.Equal(t, http.StatusOK, replay.Code)
	require.Equal(t, "true", replay.Header().Get("Idempotency-Replayed"))
	require.True(t, api.stock(t).Equal(decimal.NewFromInt(50)))

	again := api.do(http.MethodPost, base+"/issue", keeper, "", map[string]string{"Idempotency-Key": "issue-again"})
	require.Equal(t, http.StatusBadRequest, again.Code)
	require.Contains(t, again.Body.String(), "STATE_CONFLICT")
	require.True(t, api.stock(t).Equal(decimal.NewFromInt(50)))

	txns := api.do(http.MethodGet, "/api/v1/material-transactions?requestId="+requestID, engineer, "", nil)
	require.Equal(t, http.StatusOK, txns.Code)
	require.Equal(t, 1, strings.Count(txns.Body.String(), `"type":"issue"`))

	rollupResp := api.do(http.MethodGet, "/api/v1/projects/"+api.project.ID.String()+"/materials", engineer, "", nil)
	require.Equal(t, http.StatusOK, rollupResp.Code)
	var totals struct {
		Data struct {
			Items []struct {
				MaterialID     uuid.UUID       `json:"material_id"`
				IssuedQuantity decimal.Decimal `json:"issued_quantity"`
			} `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rollupResp.Body.Bytes(), &totals))
	require.Len(t, totals.Data.Items, 1)
	require.Equal(t, api.cement.ID, totals.Data.Items[0].MaterialID)
	require.True(t, totals.Data.Items[0].IssuedQuantity.Equal(decimal.NewFromInt(50)))
}

func TestStorekeeperOnlyInventoryWrites(t *testing.T) {
	api := newTestAPI(t)
	path := "/api/v1/inventory/" + api.main.ID.String() + "/materials/" + api.cement.ID.String()

	engineer := api.token(t, uuid.New(), enums.UserRoleSiteEngineer)
	require.Equal(t, http.StatusForbidden, api.do(http.MethodPut, path, engineer, `{"quantity":"10"}`, nil).Code)

	keeper := api.token(t, uuid.New(), enums.UserRoleStorekeeper)
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, path, keeper, `{"quantity":"10"}`, nil).Code)
	require.True(t, api.stock(t).Equal(decimal.NewFromInt(10)))
}
