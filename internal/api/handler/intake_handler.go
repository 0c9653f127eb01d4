package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/guregu/null.v4"

	"github.com/kirieshkistudios/park-backend/internal/api/middleware"
	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/service"
)

// IntakeCoordinator is the part of service.IntakeService the HTTP layer uses.
type IntakeCoordinator interface {
	SubmitForInference(ctx context.Context, credential string, img service.ImageUpload) (*domain.InferenceResult, error)
	ReceiveReport(ctx context.Context, report domain.InboundReport, source string) (*domain.ReportResult, error)
}

type IntakeHandler struct {
	intake         IntakeCoordinator
	maxUploadBytes int64
}

func NewIntakeHandler(intake IntakeCoordinator, maxUploadBytes int64) *IntakeHandler {
	return &IntakeHandler{intake: intake, maxUploadBytes: maxUploadBytes}
}

func (h *IntakeHandler) limitBody(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
}

// readFormFile returns the first present file among names.
func readFormFile(c *gin.Context, names ...string) ([]byte, *multipart.FileHeader, error) {
	for _, name := range names {
		header, err := c.FormFile(name)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			return nil, nil, err
		}
		f, err := header.Open()
		if err != nil {
			return nil, nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, nil, err
		}
		return data, header, nil
	}
	return nil, nil, service.ErrMissingImage
}

func formInt(c *gin.Context, name string, required bool) (null.Int, error) {
	raw := strings.TrimSpace(c.PostForm(name))
	if raw == "" {
		if required {
			return null.Int{}, fmt.Errorf("%w: %s is required", service.ErrInvalidReport, name)
		}
		return null.Int{}, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return null.Int{}, fmt.Errorf("%w: %s must be an integer", service.ErrInvalidReport, name)
	}
	return null.IntFrom(int64(v)), nil
}

func formFloat(c *gin.Context, name string) (null.Float, error) {
	raw := strings.TrimSpace(c.PostForm(name))
	if raw == "" {
		return null.Float{}, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return null.Float{}, fmt.Errorf("%w: %s must be a number", service.ErrInvalidReport, name)
	}
	return null.FloatFrom(v), nil
}

func badUpload(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds the size limit"})
		return
	}
	if errors.Is(err, service.ErrMissingImage) || errors.Is(err, service.ErrInvalidReport) {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "malformed multipart form: " + err.Error()})
}

// POST /api/v1/reports, POST /upload-result
func (h *IntakeHandler) ReceiveReport(c *gin.Context) {
	h.limitBody(c)

	image, header, err := readFormFile(c, "image", "file")
	if err != nil {
		badUpload(c, err)
		return
	}

	report := domain.InboundReport{
		Token:       c.PostForm("token"),
		Image:       image,
		ContentType: header.Header.Get("Content-Type"),
	}

	cameraID, err := formInt(c, "camera_id", true)
	if err != nil {
		badUpload(c, err)
		return
	}
	free, err := formInt(c, "free", true)
	if err != nil {
		badUpload(c, err)
		return
	}
	if report.Occupied, err = formInt(c, "occupied", false); err != nil {
		badUpload(c, err)
		return
	}
	if report.ProcessingTime, err = formFloat(c, "processing_time"); err != nil {
		badUpload(c, err)
		return
	}
	report.CameraID = int(cameraID.Int64)
	report.Free = int(free.Int64)

	res, err := h.intake.ReceiveReport(c.Request.Context(), report, "http")
	if err != nil {
		writeError(c, err, "could not apply report")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"file_name": res.FileName,
		"file_path": res.FilePath,
	})
}

// POST /upload?token=<credential>
func (h *IntakeHandler) Upload(c *gin.Context) {
	h.submit(c, c.Query("token"))
}

// POST /secure-upload with Authorization: Bearer <credential>
func (h *IntakeHandler) SecureUpload(c *gin.Context) {
	credential := middleware.BearerToken(c)
	if credential == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer credential"})
		return
	}
	h.submit(c, credential)
}

func (h *IntakeHandler) submit(c *gin.Context, credential string) {
	h.limitBody(c)

	data, header, err := readFormFile(c, "file", "image")
	if err != nil {
		badUpload(c, err)
		return
	}

	res, err := h.intake.SubmitForInference(c.Request.Context(), credential, service.ImageUpload{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeError(c, err, genericInferenceFailure)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "response": res.Payload})
}
