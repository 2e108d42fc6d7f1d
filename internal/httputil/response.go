// Package httputil provides shared HTTP response helpers.
//
// Every JSON response carries a boolean "success". Errors add "error",
// "code", the request id when one was assigned, and "validationErrors" for
// field-level problems.
package httputil

import "github.com/gin-gonic/gin"

// RespondOK writes {success: true, data}.
func RespondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// RespondError writes a standardized JSON error response and aborts the request.
func RespondError(c *gin.Context, status int, code, message string) {
	RespondValidation(c, status, code, message, nil)
}

// RespondValidation is RespondError with a list of field problems.
func RespondValidation(c *gin.Context, status int, code, message string, problems []string) {
	resp := gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	}

	if rid := c.GetString("request_id"); rid != "" {
		resp["request_id"] = rid
	}

	if len(problems) > 0 {
		resp["validationErrors"] = problems
	}

	c.AbortWithStatusJSON(status, resp)
}
