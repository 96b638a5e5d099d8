// internal/interfaces/http/handlers/response.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
)

var statusByKind = map[apperror.Kind]int{
	apperror.KindNotFound:          http.StatusNotFound,
	apperror.KindInvalidArgument:   http.StatusBadRequest,
	apperror.KindInsufficientStock: http.StatusConflict,
	apperror.KindEmptyCart:         http.StatusUnprocessableEntity,
	apperror.KindInvalidTransition: http.StatusConflict,
	apperror.KindConflict:          http.StatusConflict,
	apperror.KindUnauthorized:      http.StatusUnauthorized,
	apperror.KindForbidden:         http.StatusForbidden,
}

// respondError writes err using the status of its kind. Unclassified errors
// are recorded on the context for the request logger and hidden from clients.
func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	body := gin.H{
		"error": err.Error(),
		"code":  kind,
	}

	var stockErr *apperror.InsufficientStockError
	if errors.As(err, &stockErr) {
		body["details"] = gin.H{
			"product_id":   stockErr.ProductID,
			"product_name": stockErr.ProductName,
			"available":    stockErr.Available,
			"requested":    stockErr.Requested,
		}
	}

	c.JSON(status, body)
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}

// principalID returns the authenticated caller or writes 401
func principalID(c *gin.Context) (uint, bool) {
	id, exists := middleware.GetPrincipalIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return 0, false
	}
	return id, true
}

// idParam parses a positive numeric path parameter or writes 400
func idParam(c *gin.Context, name, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + label + " ID",
		})
		return 0, false
	}
	return uint(id), true
}
