package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/repository"
	"github.com/kirieshkistudios/park-backend/internal/service"
	"github.com/kirieshkistudios/park-backend/internal/storage"
)

const genericInferenceFailure = "inference service is unavailable"

// writeError maps service and repository errors onto HTTP responses.
// fallback is the message used for unexpected errors.
func writeError(c *gin.Context, err error, fallback string) {
	var (
		serviceErr   *service.InferenceServiceError
		transportErr *service.InferenceTransportError
		storageErr   *service.StorageError
	)

	switch {
	case errors.As(err, &serviceErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Server error: " + serviceErr.Body, "code": serviceErr.Status})
	case errors.As(err, &transportErr), errors.Is(err, service.ErrMalformedResponse):
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("inference call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": genericInferenceFailure})
	case errors.As(err, &storageErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": storageErr.Error()})
	case errors.Is(err, service.ErrUnknownCamera):
		c.JSON(http.StatusNotFound, gin.H{"error": "Camera not found"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
	case errors.Is(err, service.ErrMissingImage),
		errors.Is(err, service.ErrInvalidReport),
		errors.Is(err, service.ErrInvalidCameraConfig),
		errors.Is(err, service.ErrInvalidReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOccupancyOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrInvalidImageName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file name"})
	case errors.Is(err, storage.ErrImageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, repository.ErrDuplicateEntry), errors.Is(err, service.ErrUserAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
