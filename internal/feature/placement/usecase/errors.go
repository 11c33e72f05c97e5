package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlacementRequest は外部呼び出し前の入力検証に失敗したことを示します。
	ErrInvalidPlacementRequest = errors.New("invalid placement request")
	// ErrPlacementFailure は推論呼び出しの失敗または結果の契約違反を示します。再試行可能です。
	ErrPlacementFailure = errors.New("placement failed")

	ErrSessionNotFound     = errors.New("placement session not found")
	ErrPlacementInProgress = errors.New("placement already in progress")
	// ErrCaptureDisabled はカメラが使えないためAI配置が無効化されたセッションへの要求です。
	ErrCaptureDisabled = errors.New("camera capture is disabled for this session")
	ErrCaptureFailed   = errors.New("camera capture failed")
	// ErrInvalidFrame はアップロードされたフレーム自体が不正（形式・サイズ・空）なことを示します。
	// カメラの故障ではないので、セッションのAI配置は無効化しません。
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrAutoPlaceUnavailable は寸法が登録されていない商品へのAI配置要求です。
	ErrAutoPlaceUnavailable = errors.New("automatic placement is unavailable for this product")
	ErrInvalidControl  = errors.New("invalid control value")
	ErrUnknownProduct  = errors.New("unknown product")
	ErrInvalidColor    = errors.New("color is not available for this product")
)

// FailureKind は推論失敗の種類です。
type FailureKind string

const (
	// InferenceFailure はネットワーク・クォータ・タイムアウトなど呼び出し自体の失敗です。
	InferenceFailure FailureKind = "inference_failure"
	// SchemaViolation は応答が結果の形や値域を満たさなかったことを示します。
	SchemaViolation FailureKind = "schema_violation"
)

// PlacementFailure は配置要求の失敗です。errors.Is(err, ErrPlacementFailure) が真になります。
type PlacementFailure struct {
	Kind FailureKind
	Err  error
}

func (e *PlacementFailure) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPlacementFailure, e.Kind, e.Err)
}

func (e *PlacementFailure) Unwrap() []error {
	return []error{ErrPlacementFailure, e.Err}
}

func inferenceFailure(err error) error {
	return &PlacementFailure{Kind: InferenceFailure, Err: err}
}

func schemaViolation(err error) error {
	return &PlacementFailure{Kind: SchemaViolation, Err: err}
}
