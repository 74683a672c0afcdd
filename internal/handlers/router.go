package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	// AllowAllOrigins opens CORS to every origin and ignores AllowOrigins.
	AllowAllOrigins bool
	AllowOrigins    []string
	// StaticDir holds a built frontend. Unknown GET paths fall back to its
	// index.html.
	StaticDir string
}

// NewRouter wires every route of the service.
func NewRouter(cfg RouterConfig, upload *UploadHandler, templates *TemplateHandler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(logger))
	r.Use(cors.New(corsConfig(cfg)))

	r.HandleMethodNotAllowed = true
	r.NoMethod(MethodNotAllowed)

	r.GET("/health", Health)

	r.POST("/upload-excel", upload.UploadExcel)
	r.POST("/api/upload-excel", upload.UploadExcel)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/templates", templates.ListTemplates)
		v1.GET("/templates/:templateId/placeholders", templates.GetPlaceholders)
	}

	r.NoRoute(staticFallback(cfg.StaticDir))

	return r
}

func corsConfig(cfg RouterConfig) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	if cfg.AllowAllOrigins {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = cfg.AllowOrigins
	return config
}

func staticFallback(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if dir == "" || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		clean := path.Clean("/" + c.Request.URL.Path)
		file := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.File(index)
	}
}
