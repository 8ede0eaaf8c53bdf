package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/calculator"
	"agrolime/liming-portal-backend/internal/catalog"
	"agrolime/liming-portal-backend/internal/database"
	"agrolime/liming-portal-backend/internal/economics"
	"agrolime/liming-portal-backend/internal/parcels"
	"agrolime/liming-portal-backend/internal/planning"
	"agrolime/liming-portal-backend/internal/reports"
	"agrolime/liming-portal-backend/pkg/metrics"
)

// Portal holds the services behind the portal API
type Portal struct {
	Parcels    *parcels.Service
	Catalog    *catalog.Service
	Planning   *planning.Service
	Economics  *economics.Service
	Calculator *calculator.Service
	Reports    *reports.Service
	Metrics    *metrics.Collector
	logger     *zap.Logger
}

// SetupPortal wires every repository and service onto one database
func SetupPortal(db *database.DB, engine *agronomy.Engine, defaults economics.Params, collector *metrics.Collector, logger *zap.Logger) *Portal {
	planner := planning.NewPlanner(engine)

	parcelService := parcels.NewService(parcels.NewGormRepository(db.Gorm), engine, collector, logger)
	catalogService := catalog.NewService(catalog.NewGormRepository(db.Gorm), engine, logger)
	planningService := planning.NewService(planning.NewGormRepository(db.Gorm), parcelService, catalogService, planner, collector, logger)
	economicsService := economics.NewService(economics.NewDefaultEstimator(engine), parcelService, catalogService, defaults, collector, logger)
	calculatorService := calculator.NewService(planner, catalogService, collector, logger)
	reportsService := reports.NewService(reports.NewSQLReadModel(db.SQLX), economicsService, collector, logger)

	return &Portal{
		Parcels:    parcelService,
		Catalog:    catalogService,
		Planning:   planningService,
		Economics:  economicsService,
		Calculator: calculatorService,
		Reports:    reportsService,
		Metrics:    collector,
		logger:     logger,
	}
}

// RegisterRoutes registers every portal route on the router group
func (p *Portal) RegisterRoutes(router *gin.RouterGroup) {
	parcels.NewHandler(p.Parcels, p.logger).RegisterRoutes(router)
	catalog.NewHandler(p.Catalog, p.logger).RegisterRoutes(router)
	planning.NewHandler(p.Planning, p.logger).RegisterRoutes(router)
	economics.NewHandler(p.Economics, p.logger).RegisterRoutes(router)
	calculator.NewHandler(p.Calculator, p.logger).RegisterRoutes(router)
	reports.NewHandler(p.Reports, p.logger).RegisterRoutes(router)
}

// NewRouter builds the gin engine with CORS, request metrics, health and
// the /metrics endpoint in front of /api/v1.
func NewRouter(p *Portal) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(p.logger), p.Metrics.Middleware(), cors())

	api := router.Group("/api/v1")
	{
		p.RegisterRoutes(api)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})
	router.GET("/metrics", gin.WrapH(p.Metrics.Handler()))
	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
