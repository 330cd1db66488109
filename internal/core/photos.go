package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"reflect"
	"strings"
	"time"

	"bizphotos/external/photos"
	fsio "bizphotos/internal/io"
	"bizphotos/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	DefaultUploadTimeout = 60 * time.Second
	DefaultLookupTimeout = 10 * time.Second
)

var log = logrus.WithField("logger", "core")

var (
	ErrMissingImage     = &ValidationError{Field: photos.FormImage, Reason: "no image file in request"}
	ErrUnsupportedImage = &ValidationError{Field: photos.FormImage, Reason: "image type not supported"}
	ErrContentMismatch  = &ValidationError{Field: photos.FormImage, Reason: "file content does not match its declared type"}
)

var uploadOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "bizphotos_uploads_total",
	Help: "Photo uploads by final state",
}, []string{"outcome"})

var stagingCleanupFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "bizphotos_staging_cleanup_failures_total",
	Help: "Staged uploads that could not be removed after the store attempt",
})

func init() {
	prometheus.MustRegister(uploadOutcomes, stagingCleanupFailures)
}

// uploadState follows an upload through
// received -> validated -> stored -> cleaned_up, with rejected and failed as
// the failure branches. Every staged upload ends in cleaned_up.
type uploadState string

const (
	stateReceived  uploadState = "received"
	stateValidated uploadState = "validated"
	stateRejected  uploadState = "rejected"
	stateStored    uploadState = "stored"
	stateFailed    uploadState = "failed"
	stateCleanedUp uploadState = "cleaned_up"
)

type UploadRequest struct {
	File         io.Reader
	DeclaredType string
	Body         photos.PhotoSchema
}

type UploadResult struct {
	ID storage.BlobID
	// CleanupErr is set when the staged file outlived the request.
	CleanupErr error
}

// PhotoService accepts photo uploads and serves them back.
type PhotoService struct {
	Store   storage.BlobStore
	Reader  storage.BlobReader
	Staging fsio.StagingArea

	UploadTimeout time.Duration
	LookupTimeout time.Duration

	validate *validator.Validate
}

func NewPhotoService(backend storage.Backend, staging fsio.StagingArea) *PhotoService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &PhotoService{
		Store:         backend,
		Reader:        backend,
		Staging:       staging,
		UploadTimeout: DefaultUploadTimeout,
		LookupTimeout: DefaultLookupTimeout,
		validate:      validate,
	}
}

// ValidateBody checks an upload body against photos.PhotoSchema.
func (p *PhotoService) ValidateBody(body photos.PhotoSchema) error {
	err := p.validate.Struct(body)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Reason: fmt.Sprintf("failed %q validation", fe.Tag())}
	}
	return &ValidationError{Reason: err.Error()}
}

// ImageExtension returns the normalized content type and the stored file
// extension for an allowed image type.
func ImageExtension(declared string) (string, string, error) {
	contentType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", "", ErrUnsupportedImage
	}
	ext, ok := photos.ImageTypes[contentType]
	if !ok {
		return "", "", ErrUnsupportedImage
	}
	return contentType, ext, nil
}

// Upload validates req, stages the file, stores it and removes the staged
// copy. Validation always happens before the store is touched. The staged
// file is removed on every path once it exists; a removal failure is
// reported in UploadResult.CleanupErr and never replaces the returned error.
func (p *PhotoService) Upload(ctx context.Context, req UploadRequest) (result UploadResult, err error) {
	state := stateReceived
	logger := log.WithField("business_id", req.Body.BusinessID)
	defer func() {
		outcome := stateStored
		if err != nil {
			outcome = stateFailed
			var vErr *ValidationError
			if errors.As(err, &vErr) {
				outcome = stateRejected
			}
		}
		uploadOutcomes.WithLabelValues(string(outcome)).Inc()
		logger.WithField("state", state).Debug("Upload finished")
	}()

	if req.File == nil {
		state = stateRejected
		return result, ErrMissingImage
	}
	if err := p.ValidateBody(req.Body); err != nil {
		state = stateRejected
		return result, err
	}
	contentType, ext, err := ImageExtension(req.DeclaredType)
	if err != nil {
		state = stateRejected
		return result, err
	}

	artifact, err := p.Staging.Stage(req.File, ext)
	if err != nil {
		state = stateFailed
		return result, &storage.StoreError{Op: "p.Staging.Stage(file, ext)", Err: err}
	}
	artifact.ContentType = contentType
	artifact.BusinessID = req.Body.BusinessID
	logger = logger.WithField("filename", artifact.Filename)

	defer func() {
		if rmErr := p.Staging.Remove(artifact); rmErr != nil {
			stagingCleanupFailures.Inc()
			result.CleanupErr = &CleanupError{Path: artifact.Path, Err: rmErr}
			logger.WithError(rmErr).Error("Could not remove staged upload")
			return
		}
		state = stateCleanedUp
	}()

	detected, err := mimetype.DetectFile(artifact.Path)
	if err != nil {
		state = stateFailed
		return result, &storage.StoreError{Op: "mimetype.DetectFile(artifact.Path)", Err: err}
	}
	if !detected.Is(contentType) {
		state = stateRejected
		logger.WithField("detected", detected.String()).Info("Rejecting upload with mismatched content")
		return result, ErrContentMismatch
	}
	state = stateValidated

	id, err := p.store(ctx, artifact, req.Body.Caption)
	if err != nil {
		state = stateFailed
		return result, err
	}
	state = stateStored
	result.ID = id

	return result, nil
}

func (p *PhotoService) store(ctx context.Context, artifact fsio.StagingArtifact, caption string) (storage.BlobID, error) {
	file, err := os.Open(artifact.Path)
	if err != nil {
		return "", &storage.StoreError{Op: "os.Open(artifact.Path)", Err: err}
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(ctx, p.UploadTimeout)
	defer cancel()

	return p.Store.Store(ctx, file, storage.Metadata{
		ContentType: artifact.ContentType,
		BusinessID:  artifact.BusinessID,
		Caption:     caption,
		Filename:    artifact.Filename,
	})
}

func (p *PhotoService) Get(ctx context.Context, id string) (storage.Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, p.LookupTimeout)
	defer cancel()
	return p.Reader.GetByID(ctx, id)
}

// Download opens the stored bytes of filename. The caller closes the reader.
func (p *PhotoService) Download(ctx context.Context, filename string) (storage.Blob, io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, p.LookupTimeout)
	defer cancel()
	return p.Reader.StreamByFilename(ctx, filename)
}

func (p *PhotoService) ListForBusiness(ctx context.Context, businessID string) ([]storage.Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, p.LookupTimeout)
	defer cancel()
	return p.Reader.ListByOwner(ctx, businessID)
}

// Record renders a blob as the JSON photo record.
func Record(blob storage.Blob) photos.PhotoRecord {
	return photos.PhotoRecord{
		ID:          string(blob.ID),
		Filename:    blob.Filename,
		ContentType: blob.ContentType,
		BusinessID:  blob.BusinessID,
		Caption:     blob.Caption,
		Length:      blob.Length,
		UploadDate:  blob.UploadedAt,
		Url:         photos.MediaPath + "/" + blob.Filename,
	}
}
