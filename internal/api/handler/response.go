package handler

import (
	"github.com/gin-gonic/gin"
)

// All endpoints answer with the same envelope so clients can branch on
// "success" before looking at anything else.

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError aborts the chain; handlers return immediately after calling it.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
