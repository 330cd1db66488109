package routes

import (
	"errors"
	"fmt"
	"net/http"

	"bizphotos/external/photos"
	"bizphotos/internal/core"
	"bizphotos/internal/storage"

	"github.com/gin-gonic/gin"
)

// Error is a response with a fixed status and client facing message.
type Error struct {
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidPhotoBody = &Error{
		HTTPStatus: http.StatusBadRequest,
		Message:    "Request body is not a valid photo object",
	}
	ErrUnsupportedImage = &Error{
		HTTPStatus: http.StatusBadRequest,
		Message:    "Image type not supported. Use image/jpeg or image/png",
	}
	ErrImageTooLarge = &Error{
		HTTPStatus: http.StatusRequestEntityTooLarge,
		Message:    "Image is too large",
	}
	ErrTooManyRequests = &Error{
		HTTPStatus: http.StatusTooManyRequests,
		Message:    "Too many requests",
	}
	ErrInsertPhoto = &Error{
		HTTPStatus: http.StatusInternalServerError,
		Message:    "Error inserting photo into DB.  Please try again later.",
	}
	ErrFetchPhoto = &Error{
		HTTPStatus: http.StatusInternalServerError,
		Message:    "Unable to fetch photo.  Please try again later.",
	}
	ErrFetchPhotos = &Error{
		HTTPStatus: http.StatusInternalServerError,
		Message:    "Unable to fetch photos.  Please try again later.",
	}
)

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, photos.ErrorResponse{
		Error: fmt.Sprintf("Requested resource %s does not exist", c.Request.URL.Path),
	})
}

// renderError writes exactly one response for err. Anything not recognised is
// logged and answered with internal, so no diagnostic detail reaches the
// client.
func renderError(c *gin.Context, err error, internal *Error) {
	var routeErr *Error
	var validationErr *core.ValidationError

	switch {
	case errors.As(err, &routeErr):
		c.AbortWithStatusJSON(routeErr.HTTPStatus, photos.ErrorResponse{Error: routeErr.Message})
	case errors.Is(err, core.ErrUnsupportedImage), errors.Is(err, core.ErrContentMismatch):
		c.AbortWithStatusJSON(ErrUnsupportedImage.HTTPStatus, photos.ErrorResponse{Error: ErrUnsupportedImage.Message})
	case errors.As(err, &validationErr):
		log.WithField("reason", validationErr.Error()).Debug("Rejected photo body")
		c.AbortWithStatusJSON(ErrInvalidPhotoBody.HTTPStatus, photos.ErrorResponse{Error: ErrInvalidPhotoBody.Message})
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidID):
		notFound(c)
	default:
		_ = c.Error(err)
		log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("Internal server error")
		c.AbortWithStatusJSON(internal.HTTPStatus, photos.ErrorResponse{Error: internal.Message})
	}
}
