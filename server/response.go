package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pixelflow/errors"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries list metadata.
type Meta struct {
	Total int `json:"total"`
}

// RespondWithError writes err as an ErrorResponse. Errors that are not
// AppErrors become a generic 500.
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.From(err)
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondList sends a 200 response with the item count in Meta.
func RespondList[T any](c *gin.Context, items []T) {
	c.JSON(http.StatusOK, DataResponse{Data: items, Meta: &Meta{Total: len(items)}})
}

// RespondCreated sends a 201 response wrapping data.
func RespondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, DataResponse{Data: data})
}

// RespondAccepted sends a 202 response wrapping data.
func RespondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, DataResponse{Data: data})
}
