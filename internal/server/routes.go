package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driveslim/driveslim/internal/server/handlers/files"
	"github.com/driveslim/driveslim/internal/server/handlers/scans"
	"github.com/driveslim/driveslim/internal/server/handlers/space"
	"github.com/driveslim/driveslim/internal/server/handlers/system"
	"github.com/driveslim/driveslim/internal/server/middlewares"
	"github.com/driveslim/driveslim/internal/version"
)

func SetupRoutes(svc *Services) http.Handler {
	r := gin.New()

	scansH := scans.New(svc.Config, svc.Scanner, svc.Store)
	filesH := files.New(svc.Config, svc.Store)
	spaceH := space.New(svc.Config, svc.Mutator, svc.Classifier)
	systemH := system.New(svc.Config)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	apiGroup := r.Group("/api")
	apiGroup.Use(middlewares.RateLimiter("10-S"))
	{
		apiGroup.GET("/root-path", systemH.GetRootPath)
		apiGroup.POST("/root-path", systemH.SetRootPath)
		apiGroup.GET("/disk", systemH.GetDiskUsage)

		apiGroup.POST("/scan", scansH.RunScan)
		apiGroup.GET("/scan-status", scansH.Status)

		apiGroup.GET("/files", filesH.ListFiles)

		apiGroup.POST("/free-space", spaceH.FreeSpace)
		apiGroup.POST("/free-multiple", spaceH.FreeMultiple)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
