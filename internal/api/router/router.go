package router

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/gin-blog/config"
	_ "github.com/d60-Lab/gin-blog/docs"
	"github.com/d60-Lab/gin-blog/internal/api/handler"
	"github.com/d60-Lab/gin-blog/internal/api/middleware"
	"github.com/d60-Lab/gin-blog/pkg/auth"
)

// Options 路由装配参数
type Options struct {
	ServiceName string
	RateLimit   config.RateLimitConfig
	MediaURL    string
	// Media 为空时不挂载静态资源
	Media afero.Fs
}

// Setup 注册中间件与全部路由
func Setup(h *handler.Handler, tokens *auth.TokenManager, opts Options) *gin.Engine {
	r := gin.New()
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(
		middleware.RequestLogger(),
		middleware.Recovery(),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.RateLimit(opts.RateLimit.RPS, opts.RateLimit.Burst),
		middleware.Authenticate(tokens),
	)

	r.GET("/health", h.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if opts.Media != nil {
		mediaURL := opts.MediaURL
		if mediaURL == "" {
			mediaURL = "/media"
		}
		r.StaticFS(mediaURL, afero.NewHttpFs(opts.Media).Dir("/"))
	}

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/me", middleware.RequireAuth(), h.Me)

		posts := v1.Group("/posts", middleware.RequireAuth())
		posts.GET("", h.ListPosts)
		posts.POST("", h.CreatePost)
		posts.GET("/:id", h.GetPost)
		posts.PUT("/:id", h.UpdatePost)
		// 只有 POST 会删除，其余方法一律提示
		posts.Match([]string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		}, "/:id/delete", h.DeletePostPrompt)
		posts.POST("/:id/delete", h.DeletePost)
		posts.POST("/:id/like", h.ToggleLike)
	}

	return r
}
