package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/config"
	"agrolime/liming-portal-backend/internal/database"
	"agrolime/liming-portal-backend/internal/economics"
	"agrolime/liming-portal-backend/pkg/metrics"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.Open(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db.Gorm))

	defaults := economics.Params{FertilizerCostPerHa: 8000, RevenuePerHa: 35000}
	portal := SetupPortal(db, agronomy.MustDefaultEngine(), defaults, metrics.NewCollector("portal_test"), zap.NewNop())
	require.NoError(t, portal.Catalog.Seed(context.Background()))
	return NewRouter(portal)
}

func do(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPortal_ParcelToPlanToExport(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/parcels", `{"name":"North field","area_ha":10,"soil_texture":"medium"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	parcelID := decode(t, w)["id"].(string)

	w = do(t, router, http.MethodPost, "/api/v1/parcels/"+parcelID+"/readings", `{"ph":5.0,"p":40,"k":200,"mg":90,"ca":1500,"s":25}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/v1/plans", `{"parcel_id":"`+parcelID+`","start_year":2025}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	plan := decode(t, w)
	planID := plan["id"].(string)
	assert.Equal(t, true, plan["consistent"])
	assert.NotEmpty(t, plan["applications"])

	w = do(t, router, http.MethodGet, "/api/v1/reports/plans/"+planID+"/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Parcel,North field")
	assert.Contains(t, w.Body.String(), "Dolomitic limestone")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "plan-north-field-")

	w = do(t, router, http.MethodGet, "/api/v1/reports/plans/export", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "North field")

	w = do(t, router, http.MethodPost, "/api/v1/economics/estimate", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	est := decode(t, w)
	require.Len(t, est["parcels"], 1)

	w = do(t, router, http.MethodGet, "/api/v1/reports/economics/export?format=xlsx", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))

	w = do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "portal_test_plans_generated_total")
	assert.Contains(t, w.Body.String(), `portal_test_exports_total{format="xlsx"} 1`)
}

func TestPortal_CalculatorAndHealth(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/calculator/report", `{"soil_texture":"medium","area_ha":10,"ph":5.0,"mg":90}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"product_selection"`)

	w = do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = do(t, router, http.MethodOptions, "/api/v1/plans", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, router, http.MethodGet, "/api/v1/plans/"+"00000000-0000-0000-0000-000000000001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
