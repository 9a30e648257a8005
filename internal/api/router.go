package api

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nfcattendance/internal/auth"
	"nfcattendance/internal/httpmiddleware"
)

// Options shape the router around the handlers.
type Options struct {
	CORSOrigins        []string
	RequireFacultyAuth bool
	// GlobalLimiter applies to every request; LoginLimiter to the login,
	// code and remember-token endpoints. Either may be nil.
	GlobalLimiter httpmiddleware.Limiter
	LoginLimiter  httpmiddleware.Limiter
	// Health reports dependency status for /healthz.
	Health         func(ctx context.Context) map[string]bool
	MetricsHandler http.Handler
	StaticDir      string
}

// NewRouter mounts the JSON API under /api plus /healthz and /metrics.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(securityHeaders())
	if opts.GlobalLimiter != nil {
		r.Use(httpmiddleware.Middleware(opts.GlobalLimiter, ""))
	}

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))
	r.GET("/healthz", healthz(opts.Health))

	// mutations are guarded when sessions are required
	var guard gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if opts.RequireFacultyAuth && h.Sessions != nil {
		guard = auth.FacultyAuth(h.Sessions, h.liveSession)
	}

	api := r.Group("/api")
	{
		att := api.Group("/attendance")
		att.POST("/record", guard, h.RecordAttendance)
		att.GET("/student/:id", h.StudentAttendance)
		att.GET("/recent", h.RecentAttendance)
		att.GET("/date", h.AttendanceByDate)
		att.GET("/stats", h.AttendanceStats)

		fac := api.Group("/faculty")
		login := []gin.HandlerFunc{}
		if opts.LoginLimiter != nil {
			login = append(login, httpmiddleware.Middleware(opts.LoginLimiter, "Too many login attempts. Please try again later"))
		}
		fac.POST("/login", append(login, h.Login)...)
		fac.POST("/verify-otp", append(login, h.VerifyOTP)...)
		fac.POST("/verify-token", append(login, h.VerifyToken)...)
		fac.POST("/logout", h.Logout)
		fac.GET("/profile", h.Profile)
		fac.PUT("/sections", guard, h.UpdateSections)

		st := api.Group("/students")
		st.POST("", guard, h.CreateStudent)
		st.POST("/upload", guard, h.UploadStudents)
		st.GET("", h.ListStudents)
		st.GET("/:id", h.GetStudent)
		st.DELETE("/:id", guard, h.DeleteStudent)

		nfc := api.Group("/nfc")
		nfc.POST("/register", guard, h.RegisterTag)
		nfc.POST("/unregister/:student_id", guard, h.UnregisterTag)
		nfc.GET("/student/:tag", h.StudentByTag)
		nfc.GET("/check/:tag", h.CheckTag)
	}

	if opts.StaticDir != "" {
		r.Static("/static", opts.StaticDir)
		r.StaticFile("/", filepath.Join(opts.StaticDir, "index.html"))
	}
	return r
}

func healthz(check func(ctx context.Context) map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := gin.H{"status": "ok"}
		status := http.StatusOK
		if check != nil {
			for name, ok := range check(c.Request.Context()) {
				resp[name] = ok
				if !ok {
					status = http.StatusServiceUnavailable
					resp["status"] = "degraded"
				}
			}
		}
		c.JSON(status, resp)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// securityHeaders sets the baseline browser hardening headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
