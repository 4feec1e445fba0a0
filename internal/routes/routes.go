package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/flowtask/taskd/internal/handlers"
	"github.com/flowtask/taskd/internal/metrics"
	"github.com/flowtask/taskd/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	serviceName string,
	jwtSecret []byte,
	taskHandler *handlers.TaskHandler,
) *gin.Engine {
	r.Use(otelgin.Middleware(serviceName))
	r.Use(metrics.Middleware())

	// ---- public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// ---- protected
	r.Use(middleware.AuthMiddleware(jwtSecret))

	tasks := r.Group("/tasks")
	{
		tasks.GET("", taskHandler.GetAll)
		tasks.POST("", taskHandler.Create)
		tasks.GET("/:id", taskHandler.GetByID)
		tasks.PUT("/:id", taskHandler.Update)
		tasks.DELETE("/:id", taskHandler.Delete)
	}

	return r
}
