package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_backend/internal/feature/placement/domain/entity"
	"storefront_backend/internal/feature/placement/usecase"
	jwtmw "storefront_backend/internal/platform/jwt"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
)

type mockSessions struct {
	CreateSessionFunc        func(ctx context.Context, ownerID, productID, color string) (entity.Session, error)
	GetSessionFunc           func(ctx context.Context, ownerID, id string) (entity.Session, error)
	DeleteSessionFunc        func(ctx context.Context, ownerID, id string) error
	PlaceManuallyFunc        func(ctx context.Context, ownerID, id string) (entity.Session, error)
	AutoPlaceFunc            func(ctx context.Context, ownerID, id string, src usecase.FrameSource) (entity.Session, error)
	ReportCaptureFailureFunc func(ctx context.Context, ownerID, id, reason string) (entity.Session, error)
	AdjustPoseFunc           func(ctx context.Context, ownerID, id string, control entity.Control, value float64) (entity.Session, error)
}

func (m *mockSessions) CreateSession(ctx context.Context, ownerID, productID, color string) (entity.Session, error) {
	return m.CreateSessionFunc(ctx, ownerID, productID, color)
}

func (m *mockSessions) GetSession(ctx context.Context, ownerID, id string) (entity.Session, error) {
	return m.GetSessionFunc(ctx, ownerID, id)
}

func (m *mockSessions) DeleteSession(ctx context.Context, ownerID, id string) error {
	return m.DeleteSessionFunc(ctx, ownerID, id)
}

func (m *mockSessions) PlaceManually(ctx context.Context, ownerID, id string) (entity.Session, error) {
	return m.PlaceManuallyFunc(ctx, ownerID, id)
}

func (m *mockSessions) AutoPlace(ctx context.Context, ownerID, id string, src usecase.FrameSource) (entity.Session, error) {
	return m.AutoPlaceFunc(ctx, ownerID, id, src)
}

func (m *mockSessions) ReportCaptureFailure(ctx context.Context, ownerID, id, reason string) (entity.Session, error) {
	return m.ReportCaptureFailureFunc(ctx, ownerID, id, reason)
}

func (m *mockSessions) AdjustPose(ctx context.Context, ownerID, id string, control entity.Control, value float64) (entity.Session, error) {
	return m.AdjustPoseFunc(ctx, ownerID, id, control, value)
}

type mockRequester struct {
	RequestPlacementFunc func(ctx context.Context, req entity.PlacementRequest) (entity.PlacementResult, error)
}

func (m *mockRequester) RequestPlacement(ctx context.Context, req entity.PlacementRequest) (entity.PlacementResult, error) {
	return m.RequestPlacementFunc(ctx, req)
}

var updatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func placedSession() entity.Session {
	c := 0.9
	return entity.Session{
		ID:         "s1",
		OwnerID:    "u1",
		ProductID:  "chair-1",
		ObjectType: "chair",
		Color:      "walnut",
		State:      entity.StatePlaced,
		Visible:    true,
		Pose:       entity.Pose{Position: entity.Vector3{Z: -2}, Rotation: entity.Vector3{Y: 1.57}, Scale: 1},
		Reasoning:  "Placed facing the desk.",
		Confidence: &c,
		UpdatedAt:  updatedAt,
	}
}

const placedSessionJSON = `{
	"id": "s1",
	"product_id": "chair-1",
	"object_type": "chair",
	"color": "walnut",
	"state": "placed",
	"visible": true,
	"capture_disabled": false,
	"auto_place_available": true,
	"pose": {"position": {"x": 0, "y": 0, "z": -2}, "rotation": {"x": 0, "y": 1.57, "z": 0}, "scale": 1},
	"reasoning": "Placed facing the desk.",
	"confidence": 0.9,
	"updated_at": "2026-01-01T00:00:00Z"
}`

// newRouter は認証済みユーザー u1 としてリクエストを処理するルーターを返します。
func newRouter(sessions SessionUsecase, requester PlacementRequester) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPlacementHandler(sessions, requester)
	r := gin.New()
	g := r.Group("/v1/placement", func(c *gin.Context) {
		c.Set(jwtmw.ContextUserID, "u1")
		c.Next()
	})
	g.POST("/resolve", h.Resolve)
	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions/:id", h.GetSession)
	g.DELETE("/sessions/:id", h.DeleteSession)
	g.POST("/sessions/:id/auto", h.AutoPlace)
	g.POST("/sessions/:id/manual", h.PlaceManually)
	g.POST("/sessions/:id/capture-failure", h.ReportCaptureFailure)
	g.PATCH("/sessions/:id/pose", h.AdjustPose)
	return r
}

func multipartImage(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("image", "frame.bin")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestPlacementHandler_CreateSession(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "created", body: `{"product_id":"chair-1"}`, wantStatus: http.StatusCreated, wantBody: placedSessionJSON},
		{name: "missing product id", body: `{}`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"invalid request"}`},
		{name: "unknown product", body: `{"product_id":"x"}`, err: usecase.ErrUnknownProduct, wantStatus: http.StatusNotFound, wantBody: `{"error":"product not found"}`},
		{name: "bad color", body: `{"product_id":"chair-1","color":"pink"}`, err: usecase.ErrInvalidColor, wantStatus: http.StatusBadRequest, wantBody: `{"error":"color not available"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockSessions{CreateSessionFunc: func(ctx context.Context, ownerID, productID, color string) (entity.Session, error) {
				assert.Equal(t, "u1", ownerID)
				if tt.err != nil {
					return entity.Session{}, tt.err
				}
				return placedSession(), nil
			}}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/placement/sessions", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			newRouter(m, nil).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestPlacementHandler_AutoPlace(t *testing.T) {
	t.Run("frame is passed as a sniffed snapshot", func(t *testing.T) {
		m := &mockSessions{AutoPlaceFunc: func(ctx context.Context, ownerID, id string, src usecase.FrameSource) (entity.Session, error) {
			assert.Equal(t, "s1", id)
			frame, err := src.Snapshot(ctx)
			require.NoError(t, err)
			assert.Equal(t, "image/png", frame.MIMEType)
			assert.Equal(t, pngHeader, frame.Data)
			return placedSession(), nil
		}}
		body, ct := multipartImage(t, pngHeader)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/placement/sessions/s1/auto", body)
		req.Header.Set("Content-Type", ct)

		newRouter(m, nil).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, placedSessionJSON, w.Body.String())
	})

	t.Run("missing image", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/placement/sessions/s1/auto", nil)

		newRouter(&mockSessions{}, nil).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"image file is required"}`, w.Body.String())
	})

	errorCases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "inference failure is retryable",
			err:        &usecase.PlacementFailure{Kind: usecase.InferenceFailure, Err: errors.New("timeout")},
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"AI placement failed; try again or place manually","retryable":true}`,
		},
		{
			name:       "schema violation looks the same as inference failure",
			err:        &usecase.PlacementFailure{Kind: usecase.SchemaViolation, Err: errors.New("confidence out of range")},
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"AI placement failed; try again or place manually","retryable":true}`,
		},
		{
			name:       "in progress",
			err:        usecase.ErrPlacementInProgress,
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"placement already in progress","retryable":true}`,
		},
		{
			name:       "capture disabled",
			err:        usecase.ErrCaptureDisabled,
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"camera is unavailable; place the item manually"}`,
		},
		{
			name:       "capture failed",
			err:        usecase.ErrCaptureFailed,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"error":"could not read a camera frame; place the item manually"}`,
		},
		{
			name:       "invalid frame",
			err:        fmt.Errorf("%w: unsupported image type", usecase.ErrInvalidFrame),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"image must be a non-empty JPEG, PNG or WebP file up to 10MB"}`,
		},
		{
			name:       "product without dimensions",
			err:        usecase.ErrAutoPlaceUnavailable,
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"product dimensions are unknown; place the item manually"}`,
		},
		{
			name:       "session not found",
			err:        usecase.ErrSessionNotFound,
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"placement session not found"}`,
		},
	}

	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockSessions{AutoPlaceFunc: func(context.Context, string, string, usecase.FrameSource) (entity.Session, error) {
				return entity.Session{}, tt.err
			}}
			body, ct := multipartImage(t, jpegHeader)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/placement/sessions/s1/auto", body)
			req.Header.Set("Content-Type", ct)

			newRouter(m, nil).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestUploadedFrame_InvalidUploads(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"not an image", []byte("%PDF-1.7 not an image"), errUnsupportedFrame},
		{"gif", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"), errUnsupportedFrame},
		{"empty part", []byte{}, errEmptyFrame},
		{"too large", append(append([]byte{}, jpegHeader...), make([]byte, usecase.MaxImageSize)...), errFrameTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockSessions{AutoPlaceFunc: func(ctx context.Context, _ string, _ string, src usecase.FrameSource) (entity.Session, error) {
				_, err := src.Snapshot(ctx)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, usecase.ErrInvalidFrame)
				return entity.Session{}, err
			}}
			body, ct := multipartImage(t, tt.data)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/placement/sessions/s1/auto", body)
			req.Header.Set("Content-Type", ct)

			newRouter(m, nil).ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPlacementHandler_AdjustPose(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantControl entity.Control
		wantValue   float64
	}{
		{name: "yaw", body: `{"control":"yaw","value":90}`, wantStatus: http.StatusOK, wantControl: entity.ControlYaw, wantValue: 90},
		{name: "zero value is allowed", body: `{"control":"vertical","value":0}`, wantStatus: http.StatusOK, wantControl: entity.ControlVertical, wantValue: 0},
		{name: "unknown control", body: `{"control":"roll","value":1}`, wantStatus: http.StatusBadRequest},
		{name: "missing value", body: `{"control":"scale"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			m := &mockSessions{AdjustPoseFunc: func(ctx context.Context, ownerID, id string, control entity.Control, value float64) (entity.Session, error) {
				called = true
				assert.Equal(t, tt.wantControl, control)
				assert.Equal(t, tt.wantValue, value)
				return placedSession(), nil
			}}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/v1/placement/sessions/s1/pose", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			newRouter(m, nil).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
		})
	}
}

func TestPlacementHandler_SessionLifecycle(t *testing.T) {
	m := &mockSessions{
		GetSessionFunc: func(context.Context, string, string) (entity.Session, error) {
			return placedSession(), nil
		},
		PlaceManuallyFunc: func(context.Context, string, string) (entity.Session, error) {
			return placedSession(), nil
		},
		ReportCaptureFailureFunc: func(ctx context.Context, ownerID, id, reason string) (entity.Session, error) {
			assert.Equal(t, "permission denied", reason)
			s := placedSession()
			s.CaptureDisabled = true
			return s, nil
		},
		DeleteSessionFunc: func(ctx context.Context, ownerID, id string) error {
			if id == "gone" {
				return usecase.ErrSessionNotFound
			}
			return nil
		},
	}
	r := newRouter(m, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/placement/sessions/s1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, placedSessionJSON, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/placement/sessions/s1/manual", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/placement/sessions/s1/capture-failure", bytes.NewBufferString(`{"reason":"permission denied"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"capture_disabled":true`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/placement/sessions/s1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/placement/sessions/gone", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlacementHandler_Resolve(t *testing.T) {
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	t.Run("success", func(t *testing.T) {
		req := &mockRequester{RequestPlacementFunc: func(ctx context.Context, r entity.PlacementRequest) (entity.PlacementResult, error) {
			assert.Equal(t, "chair", r.ObjectType)
			assert.Equal(t, entity.Dimensions{Width: 0.5, Height: 0.9, Depth: 0.5}, r.ObjectDimensions)
			assert.Equal(t, "image/png", r.SceneImage.MIMEType)
			return entity.PlacementResult{
				Position:   entity.Vector3{Z: -2},
				Rotation:   1.57,
				Confidence: 0.9,
				Scale:      1,
				Reasoning:  "Placed facing the desk.",
			}, nil
		}}
		body := `{"scene_image":"` + dataURI + `","object_type":"chair","object_dimensions":{"width":0.5,"height":0.9,"depth":0.5}}`
		w := httptest.NewRecorder()
		httpReq := httptest.NewRequest(http.MethodPost, "/v1/placement/resolve", bytes.NewBufferString(body))
		httpReq.Header.Set("Content-Type", "application/json")

		newRouter(nil, req).ServeHTTP(w, httpReq)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"position": {"x": 0, "y": 0, "z": -2},
			"rotation": 1.57,
			"confidence": 0.9,
			"scale": 1,
			"reasoning": "Placed facing the desk."
		}`, w.Body.String())
	})

	t.Run("failure is retryable", func(t *testing.T) {
		req := &mockRequester{RequestPlacementFunc: func(context.Context, entity.PlacementRequest) (entity.PlacementResult, error) {
			return entity.PlacementResult{}, &usecase.PlacementFailure{Kind: usecase.InferenceFailure, Err: errors.New("quota")}
		}}
		body := `{"scene_image":"` + dataURI + `","object_type":"chair","object_dimensions":{"width":0.5,"height":0.9,"depth":0.5}}`
		w := httptest.NewRecorder()
		httpReq := httptest.NewRequest(http.MethodPost, "/v1/placement/resolve", bytes.NewBufferString(body))
		httpReq.Header.Set("Content-Type", "application/json")

		newRouter(nil, req).ServeHTTP(w, httpReq)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), `"retryable":true`)
	})

	t.Run("bad data uri", func(t *testing.T) {
		body := `{"scene_image":"https://example.com/room.jpg","object_type":"chair","object_dimensions":{"width":0.5,"height":0.9,"depth":0.5}}`
		w := httptest.NewRecorder()
		httpReq := httptest.NewRequest(http.MethodPost, "/v1/placement/resolve", bytes.NewBufferString(body))
		httpReq.Header.Set("Content-Type", "application/json")

		newRouter(nil, &mockRequester{}).ServeHTTP(w, httpReq)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDecodeDataURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		wantMIME string
		wantErr  bool
	}{
		{name: "png", uri: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader), wantMIME: "image/png"},
		{name: "jpeg declared as png is sniffed", uri: "data:image/png;base64," + base64.StdEncoding.EncodeToString(jpegHeader), wantMIME: "image/jpeg"},
		{name: "not a data uri", uri: "image/png;base64,AAAA", wantErr: true},
		{name: "not base64", uri: "data:image/png,rawbytes", wantErr: true},
		{name: "invalid base64", uri: "data:image/png;base64,!!!", wantErr: true},
		{name: "empty payload", uri: "data:image/png;base64,", wantErr: true},
		{name: "text is not a frame", uri: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := decodeDataURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, frame.MIMEType)
		})
	}
}
