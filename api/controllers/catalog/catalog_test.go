package catalog

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	internalcatalog "github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	_, conn := dbtest.Client(t)
	svc, err := internalcatalog.NewService(internalcatalog.NewRepository(conn))
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	r := chi.NewRouter()
	r.Post("/materials", CreateMaterial(svc, logg))
	r.Get("/materials", ListMaterials(svc, logg))
	r.Get("/materials/{materialId}", GetMaterial(svc, logg))
	r.Post("/projects", CreateProject(svc, logg))
	r.Post("/warehouses", CreateWarehouse(svc, logg))
	return r
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return resp
}

func TestCreateMaterialThenDuplicateConflicts(t *testing.T) {
	h := newRouter(t)
	body := `{"name":"Cement","unit":"bag","alert_quantity":"60","suppliers":[{"name":"Holcim","price":"12.50"},{"name":"Cemex","price":"13"}]}`

	resp := post(h, "/materials", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Contains(t, resp.Body.String(), "Holcim")

	resp = post(h, "/materials", body)
	require.Equal(t, http.StatusConflict, resp.Code)

	list := httptest.NewRecorder()
	h.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/materials?q=cem", nil))
	require.Equal(t, http.StatusOK, list.Code)
	require.Contains(t, list.Body.String(), "Cement")
}

func TestCreateMaterialValidation(t *testing.T) {
	h := newRouter(t)
	cases := []string{
		`{"unit":"bag"}`,
		`{"name":"Sand","unit":"m3","alert_quantity":"-1"}`,
		`{"name":"Sand","unit":"m3","suppliers":[{"name":"","price":"1"}]}`,
		`{"name":"Sand","unit":"m3","suppliers":[{"name":"Local","price":"-1"}]}`,
	}
	for _, body := range cases {
		resp := post(h, "/materials", body)
		require.Equal(t, http.StatusBadRequest, resp.Code, body)
	}
}

func TestCreateWarehouseSingleMain(t *testing.T) {
	h := newRouter(t)
	require.Equal(t, http.StatusCreated, post(h, "/warehouses", `{"name":"Central","type":"main"}`).Code)
	require.Equal(t, http.StatusConflict, post(h, "/warehouses", `{"name":"Second","type":"main"}`).Code)
	require.Equal(t, http.StatusBadRequest, post(h, "/warehouses", `{"name":"Odd","type":"bunker"}`).Code)
}

func TestCreateProjectDefaultsToShared(t *testing.T) {
	h := newRouter(t)
	resp := post(h, "/projects", `{"name":"Tower A"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Contains(t, resp.Body.String(), `"shared"`)

	resp = post(h, "/projects", `{"name":"Tower B","warehouse_mode":"dedicated"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
