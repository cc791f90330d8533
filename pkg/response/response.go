package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the JSON envelope of every REST response. WebSocket replies use the same
// success/error pair.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Fail sends an error envelope with status. data may carry hints such as a redirect target.
func Fail(c *gin.Context, status int, err string, data any) {
	c.JSON(status, Body{Success: false, Error: err, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	Fail(c, http.StatusBadRequest, err, nil)
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	Fail(c, http.StatusNotFound, err, nil)
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	Fail(c, http.StatusInternalServerError, err, nil)
}
