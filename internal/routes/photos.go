package routes

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bizphotos/external/photos"
	"bizphotos/internal/core"

	"github.com/gin-gonic/gin"
)

const (
	paramPhotoID    = "id"
	paramFilename   = "filename"
	paramBusinessID = "businessId"
)

type photoHandler struct {
	service        *core.PhotoService
	maxUploadBytes int64
}

// PhotoRoutes registers the upload and lookup endpoints. uploadLimiter runs
// in front of POST /photos only.
func PhotoRoutes(r *gin.Engine, service *core.PhotoService, maxUploadBytes int64, uploadLimiter gin.HandlerFunc) {
	h := photoHandler{service: service, maxUploadBytes: maxUploadBytes}
	if uploadLimiter == nil {
		uploadLimiter = func(c *gin.Context) { c.Next() }
	}

	group := r.Group("/photos")
	{
		group.POST("", uploadLimiter, h.createPhoto)
		group.GET("/:"+paramPhotoID, h.getPhoto)
	}

	r.GET(photos.MediaPath+"/:"+paramFilename, h.downloadPhoto)
	r.GET("/businesses/:"+paramBusinessID+"/photos", h.listBusinessPhotos)
}

func (h photoHandler) createPhoto(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		renderError(c, ErrImageTooLarge, ErrInsertPhoto)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			renderError(c, ErrImageTooLarge, ErrInsertPhoto)
			return
		}
		log.WithError(err).Debug("c.MultipartForm()")
		renderError(c, ErrInvalidPhotoBody, ErrInsertPhoto)
		return
	}
	defer form.RemoveAll()

	images := form.File[photos.FormImage]
	if len(images) != 1 {
		renderError(c, ErrInvalidPhotoBody, ErrInsertPhoto)
		return
	}

	image, err := images[0].Open()
	if err != nil {
		renderError(c, err, ErrInsertPhoto)
		return
	}
	defer image.Close()

	result, err := h.service.Upload(c.Request.Context(), core.UploadRequest{
		File:         image,
		DeclaredType: images[0].Header.Get("Content-Type"),
		Body: photos.PhotoSchema{
			BusinessID: strings.TrimSpace(c.PostForm(photos.FormBusinessID)),
			Caption:    strings.TrimSpace(c.PostForm(photos.FormCaption)),
		},
	})
	if err != nil {
		renderError(c, err, ErrInsertPhoto)
		return
	}

	c.JSON(http.StatusCreated, photos.UploadResponse{ID: string(result.ID)})
}

func (h photoHandler) getPhoto(c *gin.Context) {
	blob, err := h.service.Get(c.Request.Context(), c.Param(paramPhotoID))
	if err != nil {
		renderError(c, err, ErrFetchPhoto)
		return
	}

	c.JSON(http.StatusOK, core.Record(blob))
}

func (h photoHandler) downloadPhoto(c *gin.Context) {
	blob, stream, err := h.service.Download(c.Request.Context(), c.Param(paramFilename))
	if err != nil {
		renderError(c, err, ErrFetchPhoto)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", blob.ContentType)
	c.Header("Content-Length", strconv.FormatInt(blob.Length, 10))
	c.Status(http.StatusOK)

	// The status is already out. A short body with a full Content-Length
	// makes the server drop the connection, which the client sees as a
	// truncated download rather than a 404.
	if _, err := io.Copy(c.Writer, stream); err != nil {
		_ = c.Error(err)
		log.WithError(err).WithField("filename", blob.Filename).Error("Error streaming photo")
		c.Abort()
	}
}

func (h photoHandler) listBusinessPhotos(c *gin.Context) {
	blobs, err := h.service.ListForBusiness(c.Request.Context(), c.Param(paramBusinessID))
	if err != nil {
		renderError(c, err, ErrFetchPhotos)
		return
	}

	list := photos.PhotoList{Photos: make([]photos.PhotoRecord, 0, len(blobs))}
	for _, blob := range blobs {
		list.Photos = append(list.Photos, core.Record(blob))
	}
	c.JSON(http.StatusOK, list)
}
