package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/metrics"
)

// maxInferenceResponse caps how much of an upstream body is read.
const maxInferenceResponse = 1 << 20

// InferenceForwarder submits one image to an occupancy inference backend.
type InferenceForwarder interface {
	Forward(ctx context.Context, req domain.InferenceRequest) (*domain.InferenceResult, error)
}

// HTTPInferenceClient posts images as multipart forms to the inference service.
type HTTPInferenceClient struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewHTTPInferenceClient(url string, timeout time.Duration) *HTTPInferenceClient {
	return &HTTPInferenceClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.Component("inference_client"),
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeInferenceForm(req domain.InferenceRequest) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := [][2]string{
		{"token", req.Secret},
		{"camera_id", strconv.Itoa(req.CameraID)},
		{"config", req.Config},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("camera_%d.jpg", req.CameraID)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func (c *HTTPInferenceClient) Forward(ctx context.Context, req domain.InferenceRequest) (*domain.InferenceResult, error) {
	body, contentType, err := encodeInferenceForm(req)
	if err != nil {
		return nil, fmt.Errorf("encoding inference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("building inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+req.Secret)
	httpReq.Header.Set("Accept", "application/json")
	if id := logging.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.InferenceDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &InferenceTransportError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInferenceResponse))
	if err != nil {
		return nil, &InferenceTransportError{Message: "reading response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Int("camera_id", req.CameraID).Int("status", resp.StatusCode).Msg("inference service rejected image")
		return nil, &InferenceServiceError{Status: resp.StatusCode, Body: string(data)}
	}
	if !json.Valid(data) {
		return nil, ErrMalformedResponse
	}

	c.logger.Debug().Int("camera_id", req.CameraID).Dur("elapsed", time.Since(start)).Msg("inference call succeeded")
	return &domain.InferenceResult{StatusCode: resp.StatusCode, Payload: data}, nil
}
