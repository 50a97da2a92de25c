package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes data as the 200 response body.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Fail aborts the request with {"error": msg}.
func Fail(c *gin.Context, httpStatus int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{"error": msg})
}
