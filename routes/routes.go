package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reportit/controllers"
	"reportit/middleware"
	"reportit/models"
	"reportit/ratelimit"
)

type Handlers struct {
	Tokens  middleware.TokenValidator
	Limiter ratelimit.Limiter
	Logger  *zap.Logger
	// TrustedProxies may set X-Forwarded-For. Empty means the peer address
	// is always the client address.
	TrustedProxies []string

	Auth    *controllers.AuthController
	Devices *controllers.DeviceController
	Reports *controllers.ReportController
	Admin   *controllers.AdminController
}

func InitializeRoutes(router *gin.Engine, h Handlers) error {
	if err := router.SetTrustedProxies(h.TrustedProxies); err != nil {
		return err
	}
	authed := middleware.AuthMiddleware(h.Tokens)
	throttle := middleware.RateLimit(h.Limiter, h.Logger)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to Report-It API!"})
	})

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/signup", h.Auth.Signup)
		auth.POST("/login", throttle, h.Auth.Login)
		auth.POST("/logout", authed, h.Auth.Logout)
		auth.GET("/me", authed, h.Auth.Me)
	}

	device := api.Group("/device")
	{
		device.POST("/register", authed, h.Devices.Register)
		device.POST("/check", throttle, h.Devices.Check)
		device.POST("/upload-to-drive", authed, h.Devices.UploadToDrive)
	}
	api.POST("/upload-to-drive", authed, h.Devices.UploadFile)

	reports := api.Group("/reports", authed)
	{
		reports.POST("", h.Reports.Create)
		reports.GET("", h.Reports.List)
		reports.POST("/upload-img-blob", h.Reports.UploadImages)
		reports.GET("/:id", h.Reports.Get)
		reports.GET("/:id/images", h.Reports.Images)
	}

	activity := api.Group("/report-activity", authed)
	{
		activity.GET("/:reportId", h.Reports.Comments)
		activity.POST("/:reportId/comment", h.Reports.AddComment)
	}

	admin := api.Group("/admin", middleware.AuthMiddleware(h.Tokens, models.RoleAdmin))
	{
		admin.GET("/users", h.Admin.ListUsers)
		admin.GET("/pending-users", h.Admin.PendingUsers)
		admin.GET("/users/:id", h.Admin.GetUser)
		admin.GET("/users/:id/logs", h.Admin.UserLogs)
		admin.GET("/users/:id/time", h.Admin.UserTime)
		admin.POST("/users/:id/:action", h.Admin.SetApproval)
		admin.GET("/logs", h.Admin.Logs)
		admin.GET("/online", h.Admin.Online)
		admin.GET("/dashboard-stats", h.Admin.DashboardStats)
		admin.GET("/reports/export", h.Admin.ExportReports)
	}

	api.GET("/agent/dashboard-stats", middleware.AuthMiddleware(h.Tokens, models.RoleFieldAgent), h.Admin.AgentStats)
	api.GET("/manager/dashboard-stats", middleware.AuthMiddleware(h.Tokens, models.RoleManager), h.Admin.ManagerStats)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})
	return nil
}
