// Package handler はplacementフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_backend/internal/api"
	"storefront_backend/internal/feature/placement/domain/entity"
	"storefront_backend/internal/feature/placement/usecase"
	jwtmw "storefront_backend/internal/platform/jwt"
)

// SessionUsecase はARセッション操作のユースケースインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type SessionUsecase interface {
	CreateSession(ctx context.Context, ownerID, productID, color string) (entity.Session, error)
	GetSession(ctx context.Context, ownerID, id string) (entity.Session, error)
	DeleteSession(ctx context.Context, ownerID, id string) error
	PlaceManually(ctx context.Context, ownerID, id string) (entity.Session, error)
	AutoPlace(ctx context.Context, ownerID, id string, src usecase.FrameSource) (entity.Session, error)
	ReportCaptureFailure(ctx context.Context, ownerID, id, reason string) (entity.Session, error)
	AdjustPose(ctx context.Context, ownerID, id string, control entity.Control, value float64) (entity.Session, error)
}

// PlacementRequester はセッションを使わない配置推論です。
type PlacementRequester interface {
	RequestPlacement(ctx context.Context, req entity.PlacementRequest) (entity.PlacementResult, error)
}

// PlacementHandler はAR配置のHTTPリクエストを処理します。AuthRequired の後ろで使います。
type PlacementHandler struct {
	sessions  SessionUsecase
	requester PlacementRequester
}

// NewPlacementHandler は PlacementHandler を生成します。
func NewPlacementHandler(sessions SessionUsecase, requester PlacementRequester) *PlacementHandler {
	return &PlacementHandler{sessions: sessions, requester: requester}
}

// CreateSession はARセッションを開始します。
//
// エンドポイント: POST /v1/placement/sessions
func (h *PlacementHandler) CreateSession(c *gin.Context) {
	var req api.CreatePlacementSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("create placement session validation failed", "error", err)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	sess, err := h.sessions.CreateSession(c.Request.Context(), jwtmw.UserID(c), req.ProductID, req.Color)
	h.respond(c, http.StatusCreated, sess, err)
}

// GetSession はセッションの現在の状態を返します。
//
// エンドポイント: GET /v1/placement/sessions/:id
func (h *PlacementHandler) GetSession(c *gin.Context) {
	sess, err := h.sessions.GetSession(c.Request.Context(), jwtmw.UserID(c), c.Param("id"))
	h.respond(c, http.StatusOK, sess, err)
}

// DeleteSession はセッションを終了します。
//
// エンドポイント: DELETE /v1/placement/sessions/:id
func (h *PlacementHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.DeleteSession(c.Request.Context(), jwtmw.UserID(c), c.Param("id")); err != nil {
		h.respond(c, 0, entity.Session{}, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AutoPlace はアップロードされたフレームでAI配置を実行します。
//
// エンドポイント: POST /v1/placement/sessions/:id/auto
// Content-Type: multipart/form-data
// フィールド: image（JPEG / PNG / WebP、最大10MB）
func (h *PlacementHandler) AutoPlace(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		slog.Warn("画像ファイルの取得に失敗", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "image file is required"})
		return
	}
	sess, err := h.sessions.AutoPlace(c.Request.Context(), jwtmw.UserID(c), c.Param("id"), uploadedFrame{file: file})
	h.respond(c, http.StatusOK, sess, err)
}

// PlaceManually はAIを使わずにプロキシを表示します。
//
// エンドポイント: POST /v1/placement/sessions/:id/manual
func (h *PlacementHandler) PlaceManually(c *gin.Context) {
	sess, err := h.sessions.PlaceManually(c.Request.Context(), jwtmw.UserID(c), c.Param("id"))
	h.respond(c, http.StatusOK, sess, err)
}

// ReportCaptureFailure はカメラが使えないことを記録します。
//
// エンドポイント: POST /v1/placement/sessions/:id/capture-failure
func (h *PlacementHandler) ReportCaptureFailure(c *gin.Context) {
	var req api.CaptureFailureRequest
	// 本文は任意です
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
			return
		}
	}
	sess, err := h.sessions.ReportCaptureFailure(c.Request.Context(), jwtmw.UserID(c), c.Param("id"), req.Reason)
	h.respond(c, http.StatusOK, sess, err)
}

// AdjustPose は手動コントロール1軸を変更します。
//
// エンドポイント: PATCH /v1/placement/sessions/:id/pose
func (h *PlacementHandler) AdjustPose(c *gin.Context) {
	var req api.AdjustPoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	sess, err := h.sessions.AdjustPose(c.Request.Context(), jwtmw.UserID(c), c.Param("id"), entity.Control(req.Control), *req.Value)
	h.respond(c, http.StatusOK, sess, err)
}

// Resolve はセッションを使わずに配置を推論します。姿勢はクライアントが保持します。
//
// エンドポイント: POST /v1/placement/resolve
func (h *PlacementHandler) Resolve(c *gin.Context) {
	var req api.ResolvePlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("resolve placement validation failed", "error", err)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	frame, err := decodeDataURI(req.SceneImage)
	if err != nil {
		slog.Warn("invalid scene image", "error", err)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "scene_image must be a base64 data URI of a JPEG, PNG or WebP image"})
		return
	}

	d := req.ObjectDimensions
	result, err := h.requester.RequestPlacement(c.Request.Context(), entity.PlacementRequest{
		SceneImage:       frame,
		ObjectType:       req.ObjectType,
		ObjectDimensions: entity.Dimensions{Width: d.Width, Height: d.Height, Depth: d.Depth},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResultResponse(result))
}

func (h *PlacementHandler) respond(c *gin.Context, status int, sess entity.Session, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, toSessionResponse(sess))
}

func (h *PlacementHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "placement session not found"})
	case errors.Is(err, usecase.ErrUnknownProduct):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "product not found"})
	case errors.Is(err, usecase.ErrInvalidColor):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "color not available"})
	case errors.Is(err, usecase.ErrInvalidControl):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid control value"})
	case errors.Is(err, usecase.ErrInvalidPlacementRequest):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid placement request"})
	case errors.Is(err, usecase.ErrPlacementInProgress):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "placement already in progress", Retryable: true})
	case errors.Is(err, usecase.ErrInvalidFrame):
		slog.Warn("invalid frame upload", "error", err, "user_id", jwtmw.UserID(c))
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "image must be a non-empty JPEG, PNG or WebP file up to 10MB"})
	case errors.Is(err, usecase.ErrAutoPlaceUnavailable):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "product dimensions are unknown; place the item manually"})
	case errors.Is(err, usecase.ErrCaptureDisabled):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "camera is unavailable; place the item manually"})
	case errors.Is(err, usecase.ErrCaptureFailed):
		slog.Warn("frame capture failed", "error", err, "user_id", jwtmw.UserID(c))
		c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{Error: "could not read a camera frame; place the item manually"})
	case errors.Is(err, usecase.ErrPlacementFailure):
		slog.Error("AI placement failed", "error", err, "user_id", jwtmw.UserID(c))
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "AI placement failed; try again or place manually", Retryable: true})
	default:
		slog.Error("placement operation failed", "error", err, "user_id", jwtmw.UserID(c))
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "placement unavailable", Retryable: true})
	}
}

func toSessionResponse(s entity.Session) api.PlacementSessionResponse {
	return api.PlacementSessionResponse{
		ID:                      s.ID,
		ProductID:               s.ProductID,
		ObjectType:              s.ObjectType,
		Color:                   s.Color,
		State:                   string(s.State),
		Visible:                 s.Visible,
		CaptureDisabled:         s.CaptureDisabled,
		AutoPlaceAvailable:      !s.CaptureDisabled && s.AutoPlaceDisabledReason == "",
		AutoPlaceDisabledReason: s.AutoPlaceDisabledReason,
		Pose: api.PoseResponse{
			Position: toVector(s.Pose.Position),
			Rotation: toVector(s.Pose.Rotation),
			Scale:    s.Pose.Scale,
		},
		Reasoning:  s.Reasoning,
		Confidence: s.Confidence,
		LastError:  s.LastError,
		UpdatedAt:  s.UpdatedAt,
	}
}

func toResultResponse(r entity.PlacementResult) api.PlacementResultResponse {
	return api.PlacementResultResponse{
		Position:   toVector(r.Position),
		Rotation:   r.Rotation,
		Confidence: r.Confidence,
		Scale:      r.Scale,
		Reasoning:  r.Reasoning,
	}
}

func toVector(v entity.Vector3) api.Vector3 {
	return api.Vector3{X: v.X, Y: v.Y, Z: v.Z}
}
