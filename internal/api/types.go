// Package api はHTTP APIのリクエスト/レスポンス型を定義します。
package api

import "time"

// ErrorResponse はエラー時の共通レスポンスです。
type ErrorResponse struct {
	Error string `json:"error"`
	// Retryable はクライアントが同じ操作を再試行できる場合にtrueになります。
	Retryable bool `json:"retryable,omitempty"`
}

// MessageResponse は本文を持たない操作の成功レスポンスです。
type MessageResponse struct {
	Message string `json:"message"`
}

// SignupRequest は /signup のリクエストボディです。
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest は /login のリクエストボディです。
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest は /refresh と /logout のリクエストボディです。
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse はログイン・トークン更新成功時のレスポンスです。
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// MeResponse は認証済みユーザーの情報です。
type MeResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
}

// DimensionsResponse は商品の外形寸法（メートル）です。
type DimensionsResponse struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// ProductResponse はカタログの商品1件です。
type ProductResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Price       float64            `json:"price"`
	Description string             `json:"description"`
	Colors      []string           `json:"colors"`
	ImageURL    string             `json:"imageUrl"`
	ModelURL    string             `json:"modelUrl,omitempty"`
	Dimensions  DimensionsResponse `json:"dimensions"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// AddCartItemRequest はカートに商品を追加するリクエストです。
type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Color     string `json:"color"`
}

// UpdateCartItemRequest はカート内の数量を変更するリクエストです。
type UpdateCartItemRequest struct {
	Quantity *int   `json:"quantity" binding:"required"`
	Color    string `json:"color"`
}

// CartItemResponse はカート内の1行です。
type CartItemResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Color     string  `json:"color,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// CartResponse はカート全体です。
type CartResponse struct {
	Items      []CartItemResponse `json:"items"`
	ItemCount  int                `json:"item_count"`
	TotalPrice float64            `json:"total_price"`
}

// Vector3 は3次元座標（メートル）です。
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PoseResponse は表示中の3Dプロキシの姿勢です。
type PoseResponse struct {
	Position Vector3 `json:"position"`
	Rotation Vector3 `json:"rotation"`
	Scale    float64 `json:"scale"`
}

// CreatePlacementSessionRequest はARセッション開始のリクエストです。
type CreatePlacementSessionRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Color     string `json:"color"`
}

// PlacementSessionResponse はARセッションの現在の状態です。
type PlacementSessionResponse struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	ObjectType      string `json:"object_type"`
	Color           string `json:"color"`
	State           string `json:"state"`
	Visible         bool   `json:"visible"`
	CaptureDisabled bool   `json:"capture_disabled"`

	// AutoPlaceAvailable が false の場合、クライアントは手動配置だけを提示します。
	AutoPlaceAvailable      bool   `json:"auto_place_available"`
	AutoPlaceDisabledReason string `json:"auto_place_disabled_reason,omitempty"`

	Pose       PoseResponse `json:"pose"`
	Reasoning  string       `json:"reasoning,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// AdjustPoseRequest は手動コントロール1軸の変更です。
// control は "vertical" / "yaw" / "scale" のいずれか。yaw の値は度で指定します。
type AdjustPoseRequest struct {
	Control string   `json:"control" binding:"required,oneof=vertical yaw scale"`
	Value   *float64 `json:"value" binding:"required"`
}

// CaptureFailureRequest はカメラが利用できないことをクライアントが通知するリクエストです。
type CaptureFailureRequest struct {
	Reason string `json:"reason"`
}

// ObjectDimensions は配置対象の外形寸法（メートル）です。
type ObjectDimensions struct {
	Width  float64 `json:"width" binding:"required"`
	Height float64 `json:"height" binding:"required"`
	Depth  float64 `json:"depth" binding:"required"`
}

// ResolvePlacementRequest はセッションを使わないAI配置のリクエストです。
// scene_image は "data:<mimetype>;base64,<data>" 形式のデータURIです。
type ResolvePlacementRequest struct {
	SceneImage       string           `json:"scene_image" binding:"required"`
	ObjectType       string           `json:"object_type" binding:"required"`
	ObjectDimensions ObjectDimensions `json:"object_dimensions" binding:"required"`
}

// PlacementResultResponse はAI配置の結果です。
type PlacementResultResponse struct {
	Position   Vector3 `json:"position"`
	Rotation   float64 `json:"rotation"`
	Confidence float64 `json:"confidence"`
	Scale      float64 `json:"scale"`
	Reasoning  string  `json:"reasoning"`
}
