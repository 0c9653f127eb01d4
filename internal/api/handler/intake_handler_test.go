package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeIntake struct {
	credential string
	upload     service.ImageUpload
	report     domain.InboundReport
	result     *domain.InferenceResult
	reportRes  *domain.ReportResult
	err        error
}

func (f *fakeIntake) SubmitForInference(_ context.Context, credential string, img service.ImageUpload) (*domain.InferenceResult, error) {
	f.credential = credential
	f.upload = img
	return f.result, f.err
}

func (f *fakeIntake) ReceiveReport(_ context.Context, report domain.InboundReport, _ string) (*domain.ReportResult, error) {
	f.report = report
	return f.reportRes, f.err
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, file *formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		part, err := w.CreateFormFile(file.field, file.name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(file.data)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return body, w.FormDataContentType()
}

func newIntakeRouter(intake IntakeCoordinator, maxBytes int64) *gin.Engine {
	r := gin.New()
	h := NewIntakeHandler(intake, maxBytes)
	r.POST("/upload", h.Upload)
	r.POST("/secure-upload", h.SecureUpload)
	r.POST("/api/v1/reports", h.ReceiveReport)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestUploadReturnsUpstreamPayload(t *testing.T) {
	intake := &fakeIntake{result: &domain.InferenceResult{StatusCode: 200, Payload: []byte(`{"free":12}`)}}
	r := newIntakeRouter(intake, 0)

	body, ct := multipartBody(t, nil, &formFile{"file", "frame.jpg", []byte("pixels")})
	req := httptest.NewRequest(http.MethodPost, "/upload?token=tok-abc", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	out := decode(t, rec)
	if out["status"] != "success" {
		t.Errorf("status field = %v", out["status"])
	}
	resp, ok := out["response"].(map[string]any)
	if !ok || resp["free"] != float64(12) {
		t.Errorf("response = %v", out["response"])
	}
	if intake.credential != "tok-abc" || string(intake.upload.Data) != "pixels" || intake.upload.Filename != "frame.jpg" {
		t.Errorf("forwarded %q %+v", intake.credential, intake.upload)
	}
}

func TestUploadErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantCode   float64
	}{
		{"unknown camera", service.ErrUnknownCamera, http.StatusNotFound, "Camera not found", 0},
		{"upstream 503", &service.InferenceServiceError{Status: 503, Body: "overloaded"}, http.StatusBadGateway, "Server error: overloaded", 503},
		{"transport", &service.InferenceTransportError{Message: "dial tcp 10.0.0.1:8001: connection refused"}, http.StatusBadGateway, genericInferenceFailure, 0},
		{"malformed", service.ErrMalformedResponse, http.StatusBadGateway, genericInferenceFailure, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newIntakeRouter(&fakeIntake{err: tt.err}, 0)
			body, ct := multipartBody(t, nil, &formFile{"file", "frame.jpg", []byte("pixels")})
			req := httptest.NewRequest(http.MethodPost, "/upload?token=x", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			out := decode(t, rec)
			if out["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", out["error"], tt.wantError)
			}
			if tt.wantCode != 0 && out["code"] != tt.wantCode {
				t.Errorf("code = %v, want %v", out["code"], tt.wantCode)
			}
		})
	}
}

func TestUploadAcceptsImageFieldAndRejectsMissingFile(t *testing.T) {
	intake := &fakeIntake{result: &domain.InferenceResult{Payload: []byte(`{}`)}}
	r := newIntakeRouter(intake, 0)

	body, ct := multipartBody(t, nil, &formFile{"image", "a.png", []byte("png")})
	req := httptest.NewRequest(http.MethodPost, "/upload?token=x", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("image field: status = %d", rec.Code)
	}

	body, ct = multipartBody(t, map[string]string{"note": "no file"}, nil)
	req = httptest.NewRequest(http.MethodPost, "/upload?token=x", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d", rec.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	r := newIntakeRouter(&fakeIntake{}, 512)
	body, ct := multipartBody(t, nil, &formFile{"file", "big.jpg", bytes.Repeat([]byte("x"), 4096)})
	req := httptest.NewRequest(http.MethodPost, "/upload?token=x", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestSecureUploadUsesBearerCredential(t *testing.T) {
	intake := &fakeIntake{result: &domain.InferenceResult{Payload: []byte(`{}`)}}
	r := newIntakeRouter(intake, 0)

	body, ct := multipartBody(t, nil, &formFile{"file", "f.jpg", []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/secure-upload?token=ignored", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer tok-abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if intake.credential != "tok-abc" {
		t.Errorf("credential = %q", intake.credential)
	}

	body, ct = multipartBody(t, nil, &formFile{"file", "f.jpg", []byte("x")})
	req = httptest.NewRequest(http.MethodPost, "/secure-upload", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d", rec.Code)
	}
}

func TestReceiveReportParsesForm(t *testing.T) {
	intake := &fakeIntake{reportRes: &domain.ReportResult{FileName: "camera_42.jpg", FilePath: "/data/camera_42.jpg"}}
	r := newIntakeRouter(intake, 0)

	body, ct := multipartBody(t, map[string]string{
		"token":           "secret",
		"camera_id":       "42",
		"free":            "33",
		"occupied":        "17",
		"processing_time": "1.2",
	}, &formFile{"image", "result.jpg", []byte("jpeg")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	out := decode(t, rec)
	if out["status"] != "success" || out["file_name"] != "camera_42.jpg" {
		t.Errorf("response = %v", out)
	}

	got := intake.report
	if got.Token != "secret" || got.CameraID != 42 || got.Free != 33 || string(got.Image) != "jpeg" {
		t.Errorf("report = %+v", got)
	}
	if got.Occupied.Int64 != 17 || got.ProcessingTime.Float64 != 1.2 {
		t.Errorf("optional fields = %+v %+v", got.Occupied, got.ProcessingTime)
	}
}

func TestReceiveReportErrors(t *testing.T) {
	valid := map[string]string{"token": "s", "camera_id": "1", "free": "2"}
	image := &formFile{"image", "r.jpg", []byte("x")}

	tests := []struct {
		name       string
		fields     map[string]string
		file       *formFile
		serviceErr error
		wantStatus int
	}{
		{"bad token", valid, image, service.ErrUnauthorized, http.StatusBadRequest},
		{"unknown camera", valid, image, service.ErrUnknownCamera, http.StatusNotFound},
		{"out of range", valid, image, service.ErrOccupancyOutOfRange, http.StatusUnprocessableEntity},
		{"storage", valid, image, &service.StorageError{Err: errNoSpace}, http.StatusInternalServerError},
		{"no image", valid, nil, nil, http.StatusBadRequest},
		{"free not a number", map[string]string{"token": "s", "camera_id": "1", "free": "many"}, image, nil, http.StatusBadRequest},
		{"free missing", map[string]string{"token": "s", "camera_id": "1"}, image, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newIntakeRouter(&fakeIntake{err: tt.serviceErr}, 0)
			body, ct := multipartBody(t, tt.fields, tt.file)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if _, ok := decode(t, rec)["error"]; !ok {
				t.Error("response has no error field")
			}
		})
	}
}
