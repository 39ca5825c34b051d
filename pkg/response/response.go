package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/tidylink/pkg/errors"
)

// Response defines the envelope used by dev backend endpoints that are not part of
// the marketplace contract (health, token issuing, errors).
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo holds error details to send to clients.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Page mirrors the paginated list shape of the marketplace API.
type Page struct {
	Results  interface{} `json:"results"`
	Count    int64       `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// Raw writes data without the envelope. Marketplace endpoints return bare objects
// and arrays, and clients parse them as such.
func Raw(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// Paginated writes a marketplace page.
func Paginated(c *gin.Context, page Page) {
	if page.Results == nil {
		page.Results = []any{}
	}
	c.JSON(http.StatusOK, page)
}

// Error writes a JSON error response derived from an AppError. The detail key keeps
// marketplace clients, which read detail first, working.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{
		"success": false,
		"detail":  appErr.Message,
		"error": ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}
