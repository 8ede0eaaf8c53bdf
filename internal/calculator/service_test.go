package calculator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/parcels"
	"agrolime/liming-portal-backend/internal/planning"
	"agrolime/liming-portal-backend/pkg/metrics"
)

// MockProducts is a mock implementation of the ProductSource interface
type MockProducts struct {
	mock.Mock
}

func (m *MockProducts) Reference(ctx context.Context) (agronomy.ProductCatalog, error) {
	args := m.Called(ctx)
	return args.Get(0).(agronomy.ProductCatalog), args.Error(1)
}

func newTestService(products ProductSource) *Service {
	svc := NewService(planning.NewPlanner(agronomy.MustDefaultEngine()), products, metrics.NewCollector("test"), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func acidRequest() Request {
	return Request{SoilTexture: "medium", AreaHa: 10, PH: 5.0, P: 40, K: 200, Mg: 90, Ca: 1500, S: 25}
}

func TestService_ReportAcidLowMagnesium(t *testing.T) {
	svc := newTestService(StaticProducts(agronomy.DefaultCatalog()))

	rep, err := svc.Report(context.Background(), acidRequest())
	require.NoError(t, err)

	assert.Equal(t, agronomy.TextureMedium, rep.SoilTexture)
	assert.Equal(t, agronomy.LandUseArable, rep.LandUse)
	assert.Equal(t, []agronomy.Nutrient{agronomy.NutrientP, agronomy.NutrientMg, agronomy.NutrientCa}, rep.Deficient)
	assert.InDelta(t, 2.73, rep.Need.TotalCaOPerHa, 1e-9)
	assert.Equal(t, agronomy.DefaultCatalog().Dolomite.Name, rep.Selection.Primary.Product.Name)

	require.Len(t, rep.Schedule, 1)
	row := rep.Schedule[0]
	assert.Equal(t, 2025, row.Year)
	assert.Equal(t, 4.96, row.DosePerHa)
	assert.Equal(t, 5.0, row.PHBefore)
	assert.Equal(t, row.PHAfter, rep.FinalPH)
	assert.Greater(t, rep.FinalPH, 6.0)
	assert.InDelta(t, 49.6, rep.TotalProduct, 1e-9)
	assert.InDelta(t, 49.6*1150, rep.TotalCost, 0.01)
}

func TestService_ReportNoNeed(t *testing.T) {
	svc := newTestService(StaticProducts(agronomy.DefaultCatalog()))
	req := acidRequest()
	req.PH = 6.8
	req.Mg = 300

	rep, err := svc.Report(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, agronomy.TierPreventive, rep.Need.Severity)
	assert.Empty(t, rep.Schedule)
	assert.Equal(t, 6.8, rep.FinalPH)
	assert.Equal(t, 10.0, rep.AreaHa)
	assert.Equal(t, agronomy.DefaultCatalog().Limestone.Name, rep.Selection.Primary.Product.Name)
}

func TestService_ReportUsesCatalogReference(t *testing.T) {
	ctx := context.Background()
	products := new(MockProducts)
	ref := agronomy.DefaultCatalog()
	ref.Dolomite = agronomy.LimingProduct{Name: "Dolomit Vitošov", CaOContent: 32, MgOContent: 20, PricePerTon: 1000}
	products.On("Reference", ctx).Return(ref, nil)

	rep, err := newTestService(products).Report(ctx, acidRequest())
	require.NoError(t, err)
	assert.Equal(t, "Dolomit Vitošov", rep.Schedule[0].Product)

	failing := new(MockProducts)
	failing.On("Reference", ctx).Return(agronomy.ProductCatalog{}, errors.New("db down"))
	_, err = newTestService(failing).Report(ctx, acidRequest())
	assert.ErrorContains(t, err, "db down")
}

func TestService_ReportRejectsInput(t *testing.T) {
	svc := newTestService(StaticProducts(agronomy.DefaultCatalog()))

	req := acidRequest()
	req.PH = 15
	req.K = -4
	_, err := svc.Report(context.Background(), req)
	var verr *parcels.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Results.Errors, 2)

	req = acidRequest()
	req.SoilTexture = "peat"
	_, err = svc.Report(context.Background(), req)
	assert.ErrorIs(t, err, agronomy.ErrInputOutOfRange)
}

func TestService_Simulate(t *testing.T) {
	svc := newTestService(StaticProducts(agronomy.DefaultCatalog()))
	res, err := svc.Simulate(agronomy.SimulationInput{
		DosePerHa: 3,
		Product:   agronomy.DefaultCatalog().Dolomite,
		Texture:   agronomy.TextureMedium,
		PHBefore:  5.5,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5502, res.ENV, 1e-9)
	assert.InDelta(t, 1.6506, res.EffectiveCaOPerHa, 1e-9)
	assert.InDelta(t, 0.9, res.CaOPerHa, 1e-9)
	assert.Equal(t, 3.0, res.TotalDose)
}

func TestHandler_Report(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(newTestService(StaticProducts(agronomy.DefaultCatalog())), zap.NewNop()).RegisterRoutes(router.Group("/api/v1"))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		want   string
	}{
		{"report", "/api/v1/calculator/report", `{"soil_texture":"stredni","ph":5.0,"mg":90}`, http.StatusOK, `"severity":"intensive"`},
		{"validation", "/api/v1/calculator/report", `{"soil_texture":"medium","ph":14}`, http.StatusBadRequest, `"errors"`},
		{"malformed", "/api/v1/calculator/report", `{"soil_texture":`, http.StatusBadRequest, `"error"`},
		{"simulate", "/api/v1/calculator/simulate", `{"dose_per_ha":2,"product":{"name":"Vápenec","cao_content":50},"soil_texture":"light","ph_before":5.2}`, http.StatusOK, `"ph_after"`},
		{"simulate negative", "/api/v1/calculator/simulate", `{"dose_per_ha":-2,"product":{"name":"Vápenec","cao_content":50},"soil_texture":"light","ph_before":5.2}`, http.StatusBadRequest, `"field":"dose_per_ha"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}
