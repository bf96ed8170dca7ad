package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"reportit/export"
	"reportit/middleware"
	"reportit/services"
)

const defaultLogLimit = 200

type AdminController struct {
	admin   *services.AdminService
	reports *services.ReportService
}

func NewAdminController(admin *services.AdminService, reports *services.ReportService) *AdminController {
	return &AdminController{admin: admin, reports: reports}
}

func (ac *AdminController) ListUsers(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := ac.admin.ListUsers(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (ac *AdminController) PendingUsers(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := ac.admin.PendingUsers(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (ac *AdminController) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := ac.admin.GetUser(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (ac *AdminController) UserLogs(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	logs, err := ac.admin.UserLogs(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (ac *AdminController) UserTime(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	minutes, err := ac.admin.UserMinutes(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": id, "minutes": minutes})
}

// SetApproval handles POST /users/:id/:action with action approve or revoke.
func (ac *AdminController) SetApproval(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	adminID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := ac.admin.SetApproval(ctx, adminID, id, c.Param("action"), requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (ac *AdminController) Logs(c *gin.Context) {
	limit := int64(defaultLogLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	logs, err := ac.admin.Logs(ctx, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (ac *AdminController) Online(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := ac.admin.Online(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"onlineUsers": users})
}

func (ac *AdminController) DashboardStats(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := ac.admin.AdminStats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (ac *AdminController) AgentStats(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := ac.admin.AgentStats(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (ac *AdminController) ManagerStats(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := ac.admin.ManagerStats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (ac *AdminController) ExportReports(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	data, err := ac.reports.Export(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("reports-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, export.ContentType, data)
}
