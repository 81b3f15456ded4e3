package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uniport/uap-leave-api/internal/models"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
)

// Envelope is the wire shape of every API response. Exactly one of Data and
// Error is set.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON writes a success envelope. Pagination and meta are optional.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 {
		envelope.Meta = meta[0]
	}
	noStore(c)
	c.JSON(status, envelope)
}

// Created writes a 201 envelope for newly created resources.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error normalizes err into the envelope's error shape and writes it with
// the matching HTTP status.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent writes an empty 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Responses carry per-user data, so intermediaries must not cache them.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
}
