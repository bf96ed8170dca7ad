package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"reportit/services"
)

const requestTimeout = 10 * time.Second

func statusFor(k services.Kind) int {
	switch k {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": msg}. Causes of internal errors are attached
// to the gin context for the request log and never sent to the client.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "Server error"
	var e *services.Error
	if errors.As(err, &e) {
		status = statusFor(e.Kind)
		msg = e.Msg
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := services.ParseID(c.Param(name))
	if err != nil {
		respondError(c, err)
		return id, false
	}
	return id, true
}
