package parcels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(repo Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(newTestService(repo), zap.NewNop()).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestHandler_RecordReadingValidation(t *testing.T) {
	repo := new(MockRepository)
	id := uuid.New()
	repo.On("GetParcel", mock.Anything, id).Return(&Parcel{ID: id}, nil)
	router := newTestRouter(repo)

	body := `{"ph": 1.5, "p": 50, "k": 9000, "mg": 120}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parcels/"+id.String()+"/readings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Errors []struct {
			Field  string `json:"field"`
			Reason string `json:"reason"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "ph", resp.Errors[0].Field)
	assert.Equal(t, "k", resp.Errors[1].Field)
}

func TestHandler_CreateParcelFieldError(t *testing.T) {
	router := newTestRouter(new(MockRepository))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/parcels", strings.NewReader(`{"name":"A","soil_texture":"peat","area_ha":2}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "soil_texture", resp["field"])
}

func TestHandler_GetParcelNotFound(t *testing.T) {
	repo := new(MockRepository)
	id := uuid.New()
	repo.On("GetParcel", mock.Anything, id).Return(nil, ErrNotFound)
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/parcels/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/parcels/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ListParcels(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListParcels", mock.Anything, mock.MatchedBy(func(f ParcelFilter) bool {
		return f.Limit == 10 && f.Texture != nil && *f.Texture == "medium"
	})).Return([]*Parcel{{ID: uuid.New(), Name: "A"}}, nil)
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/parcels?limit=10&soil_texture=m", nil).WithContext(context.Background()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}
