package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "storefront_backend/internal/feature/catalog/domain/entity"
	catalogusecase "storefront_backend/internal/feature/catalog/usecase"
	"storefront_backend/internal/feature/placement/domain/entity"
	"storefront_backend/internal/feature/placement/usecase"
)

type mockProducts struct {
	products map[string]catalog.Product
	err      error
}

func (m *mockProducts) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, catalogusecase.ErrProductNotFound
	}
	return &p, nil
}

type mockRequester struct {
	RequestPlacementFunc func(ctx context.Context, req entity.PlacementRequest) (entity.PlacementResult, error)
	mu                   sync.Mutex
	Calls                int
	LastRequest          entity.PlacementRequest
}

func (m *mockRequester) RequestPlacement(ctx context.Context, req entity.PlacementRequest) (entity.PlacementResult, error) {
	m.mu.Lock()
	m.Calls++
	m.LastRequest = req
	m.mu.Unlock()
	if m.RequestPlacementFunc != nil {
		return m.RequestPlacementFunc(ctx, req)
	}
	return entity.PlacementResult{}, errors.New("RequestPlacementFunc is not implemented")
}

// frameSourceFunc は関数を FrameSource として使うためのアダプターです。
type frameSourceFunc func(ctx context.Context) (entity.Frame, error)

func (f frameSourceFunc) Snapshot(ctx context.Context) (entity.Frame, error) {
	return f(ctx)
}

var jpegFrame = frameSourceFunc(func(context.Context) (entity.Frame, error) {
	return entity.Frame{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg"}, nil
})

var chairResult = entity.PlacementResult{
	Position:   entity.Vector3{X: 0, Y: 0, Z: -2},
	Rotation:   1.57,
	Confidence: 0.9,
	Scale:      1.0,
	Reasoning:  "Placed facing the desk.",
}

// approx はラジアン変換の丸め誤差を許容します。
var approx = cmpopts.EquateApprox(0, 1e-9)

func newCatalog() *mockProducts {
	return &mockProducts{products: map[string]catalog.Product{
		"chair-1": {
			ID:         "chair-1",
			Name:       "chair",
			Colors:     []string{"walnut", "black"},
			Dimensions: catalog.Dimensions{Width: 0.5, Height: 0.9, Depth: 0.5},
		},
		"lamp-1": {ID: "lamp-1", Name: "lamp", Dimensions: catalog.Dimensions{Width: 0.2, Height: 1.5, Depth: 0.2}},
	}}
}

func newService(t *testing.T, req *mockRequester) *usecase.SessionService {
	t.Helper()
	return usecase.NewSessionService(req, newCatalog(), usecase.DefaultSessionOptions())
}

func TestSessionService_CreateSession(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &mockRequester{})

	t.Run("defaults to first product color", func(t *testing.T) {
		sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
		require.NoError(t, err)

		assert.NotEmpty(t, sess.ID)
		assert.Equal(t, "walnut", sess.Color)
		assert.Equal(t, "chair", sess.ObjectType)
		assert.Equal(t, entity.Dimensions{Width: 0.5, Height: 0.9, Depth: 0.5}, sess.Dimensions)
		assert.Equal(t, entity.StateIdle, sess.State)
		assert.False(t, sess.Visible)
		if diff := cmp.Diff(entity.Pose{Position: entity.Vector3{Z: -5}, Scale: 1}, sess.Pose); diff != "" {
			t.Errorf("initial pose mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("explicit color", func(t *testing.T) {
		sess, err := svc.CreateSession(ctx, "u1", "chair-1", "black")
		require.NoError(t, err)
		assert.Equal(t, "black", sess.Color)
	})

	t.Run("product without colors uses lightgray", func(t *testing.T) {
		sess, err := svc.CreateSession(ctx, "u1", "lamp-1", "")
		require.NoError(t, err)
		assert.Equal(t, usecase.DefaultColor, sess.Color)
	})

	t.Run("unavailable color", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "u1", "chair-1", "pink")
		assert.ErrorIs(t, err, usecase.ErrInvalidColor)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "u1", "missing", "")
		assert.ErrorIs(t, err, usecase.ErrUnknownProduct)
	})

	t.Run("catalog error is wrapped", func(t *testing.T) {
		broken := usecase.NewSessionService(&mockRequester{}, &mockProducts{err: ErrAPI}, usecase.DefaultSessionOptions())
		_, err := broken.CreateSession(ctx, "u1", "chair-1", "")
		assert.ErrorIs(t, err, ErrAPI)
		assert.NotErrorIs(t, err, usecase.ErrUnknownProduct)
	})
}

func TestSessionService_Ownership(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &mockRequester{})
	sess, err := svc.CreateSession(ctx, "owner", "chair-1", "")
	require.NoError(t, err)

	_, err = svc.GetSession(ctx, "intruder", sess.ID)
	assert.ErrorIs(t, err, usecase.ErrSessionNotFound)
	_, err = svc.AdjustPose(ctx, "intruder", sess.ID, entity.ControlScale, 2)
	assert.ErrorIs(t, err, usecase.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, "intruder", sess.ID), usecase.ErrSessionNotFound)

	got, err := svc.GetSession(ctx, "owner", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestSessionService_AutoPlace_AppliesResult(t *testing.T) {
	ctx := context.Background()
	req := &mockRequester{RequestPlacementFunc: func(context.Context, entity.PlacementRequest) (entity.PlacementResult, error) {
		return chairResult, nil
	}}
	svc := newService(t, req)
	sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)

	got, err := svc.AutoPlace(ctx, "u1", sess.ID, jpegFrame)
	require.NoError(t, err)

	want := entity.Pose{Position: entity.Vector3{Z: -2}, Rotation: entity.Vector3{Y: 1.57}, Scale: 1.0}
	if diff := cmp.Diff(want, got.Pose); diff != "" {
		t.Errorf("pose mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, entity.StatePlaced, got.State)
	assert.True(t, got.Visible)
	assert.Equal(t, "Placed facing the desk.", got.Reasoning)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 0.9, *got.Confidence)

	assert.Equal(t, "chair", req.LastRequest.ObjectType)
	assert.Equal(t, entity.Dimensions{Width: 0.5, Height: 0.9, Depth: 0.5}, req.LastRequest.ObjectDimensions)

	// Placed は再実行可能で、同じ結果なら姿勢は変わりません
	again, err := svc.AutoPlace(ctx, "u1", sess.ID, jpegFrame)
	require.NoError(t, err)
	if diff := cmp.Diff(got.Pose, again.Pose); diff != "" {
		t.Errorf("re-applied pose differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, 2, req.Calls)
}

func TestSessionService_AutoPlace_FailureLeavesPoseUnchanged(t *testing.T) {
	ctx := context.Background()
	fail := true
	req := &mockRequester{RequestPlacementFunc: func(context.Context, entity.PlacementRequest) (entity.PlacementResult, error) {
		if fail {
			return entity.PlacementResult{}, &usecase.PlacementFailure{Kind: usecase.InferenceFailure, Err: ErrAPI}
		}
		return chairResult, nil
	}}
	svc := newService(t, req)
	sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)
	_, err = svc.AdjustPose(ctx, "u1", sess.ID, entity.ControlVertical, 1.5)
	require.NoError(t, err)
	before, err := svc.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)

	_, err = svc.AutoPlace(ctx, "u1", sess.ID, jpegFrame)
	require.ErrorIs(t, err, usecase.ErrPlacementFailure)

	after, err := svc.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(before.Pose, after.Pose); diff != "" {
		t.Errorf("pose changed after failure (-before +after):\n%s", diff)
	}
	assert.Equal(t, entity.StateFailed, after.State)
	assert.Equal(t, string(usecase.InferenceFailure), after.LastError)
	assert.False(t, after.Visible)
	assert.False(t, after.CaptureDisabled)

	// Failed からの再試行
	fail = false
	placed, err := svc.AutoPlace(ctx, "u1", sess.ID, jpegFrame)
	require.NoError(t, err)
	assert.Equal(t, entity.StatePlaced, placed.State)
	assert.Empty(t, placed.LastError)
}

func TestSessionService_AutoPlace_RejectsConcurrentRequest(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	req := &mockRequester{RequestPlacementFunc: func(context.Context, entity.PlacementRequest) (entity.PlacementResult, error) {
		close(started)
		<-release
		return chairResult, nil
	}}
	svc := newService(t, req)
	sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.AutoPlace(ctx, "u1", sess.ID, jpegFrame)
		done <- err
	}()
	<-started

	// 外部呼び出し中もセッションのロックは解放されています
	inFlight, err := svc.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StateAwaitingResult, inFlight.State)

	_, err = svc.AutoPlace(ctx, "u1", sess.ID, jpegFrame)
	assert.ErrorIs(t, err, usecase.ErrPlacementInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, req.Calls)
}

func TestSessionService_AutoPlace_CaptureFailureDisablesAI(t *testing.T) {
	ctx := context.Background()
	req := &mockRequester{}
	svc := newService(t, req)
	sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)

	broken := frameSourceFunc(func(context.Context) (entity.Frame, error) {
		return entity.Frame{}, errors.New("permission denied")
	})
	_, err = svc.AutoPlace(ctx, "u1", sess.ID, broken)
	assert.ErrorIs(t, err, usecase.ErrCaptureFailed)

	got, err := svc.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.True(t, got.CaptureDisabled)
	assert.Equal(t, entity.StateFailed, got.State)

	_, err = svc.AutoPlace(ctx, "u1", sess.ID, jpegFrame)
	assert.ErrorIs(t, err, usecase.ErrCaptureDisabled)
	assert.Zero(t, req.Calls)

	// 手動配置は引き続き使えます
	manual, err := svc.PlaceManually(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.True(t, manual.Visible)
}

func TestSessionService_AutoPlace_InvalidFrameAllowsRetry(t *testing.T) {
	ctx := context.Background()
	req := &mockRequester{RequestPlacementFunc: func(context.Context, entity.PlacementRequest) (entity.PlacementResult, error) {
		return chairResult, nil
	}}
	svc := newService(t, req)
	sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)

	badUpload := frameSourceFunc(func(context.Context) (entity.Frame, error) {
		return entity.Frame{}, fmt.Errorf("%w: unsupported image type: image/gif", usecase.ErrInvalidFrame)
	})
	_, err = svc.AutoPlace(ctx, "u1", sess.ID, badUpload)
	assert.ErrorIs(t, err, usecase.ErrInvalidFrame)
	assert.NotErrorIs(t, err, usecase.ErrCaptureFailed)

	got, err := svc.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.False(t, got.CaptureDisabled)
	assert.Equal(t, entity.StateIdle, got.State)
	assert.Zero(t, req.Calls)

	placed, err := svc.AutoPlace(ctx, "u1", sess.ID, jpegFrame)
	require.NoError(t, err)
	assert.Equal(t, entity.StatePlaced, placed.State)
	assert.Equal(t, 1, req.Calls)
}

func TestSessionService_ProductWithoutDimensions(t *testing.T) {
	ctx := context.Background()
	products := newCatalog()
	products.products["rug-1"] = catalog.Product{ID: "rug-1", Name: "rug"}
	req := &mockRequester{RequestPlacementFunc: func(context.Context, entity.PlacementRequest) (entity.PlacementResult, error) {
		return chairResult, nil
	}}
	svc := usecase.NewSessionService(req, products, usecase.DefaultSessionOptions())

	sess, err := svc.CreateSession(ctx, "u1", "rug-1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AutoPlaceDisabledReason)

	captured := false
	src := frameSourceFunc(func(context.Context) (entity.Frame, error) {
		captured = true
		return entity.Frame{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg"}, nil
	})
	_, err = svc.AutoPlace(ctx, "u1", sess.ID, src)
	assert.ErrorIs(t, err, usecase.ErrAutoPlaceUnavailable)
	assert.False(t, captured, "no frame is captured for a product without dimensions")
	assert.Zero(t, req.Calls)

	manual, err := svc.PlaceManually(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.True(t, manual.Visible)

	chair, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)
	assert.Empty(t, chair.AutoPlaceDisabledReason)
}

func TestSessionService_ReportCaptureFailure(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &mockRequester{})
	sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)

	got, err := svc.ReportCaptureFailure(ctx, "u1", sess.ID, "")
	require.NoError(t, err)
	assert.True(t, got.CaptureDisabled)
	assert.Equal(t, "camera unavailable", got.LastError)

	_, err = svc.AutoPlace(ctx, "u1", sess.ID, jpegFrame)
	assert.ErrorIs(t, err, usecase.ErrCaptureDisabled)
}

func TestSessionService_AutoPlace_SessionDeletedDuringRequest(t *testing.T) {
	ctx := context.Background()
	var svc *usecase.SessionService
	var id string
	req := &mockRequester{RequestPlacementFunc: func(context.Context, entity.PlacementRequest) (entity.PlacementResult, error) {
		require.NoError(t, svc.DeleteSession(ctx, "u1", id))
		return chairResult, nil
	}}
	svc = newService(t, req)
	sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)
	id = sess.ID

	_, err = svc.AutoPlace(ctx, "u1", id, jpegFrame)
	assert.ErrorIs(t, err, usecase.ErrSessionNotFound)
}

func TestSessionService_AdjustPose(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		control entity.Control
		value   float64
		want    entity.Pose
		wantErr error
	}{
		{
			name:    "vertical sets position.y only",
			control: entity.ControlVertical,
			value:   1.2,
			want:    entity.Pose{Position: entity.Vector3{Y: 1.2, Z: -5}, Scale: 1},
		},
		{
			name:    "vertical is clamped",
			control: entity.ControlVertical,
			value:   12,
			want:    entity.Pose{Position: entity.Vector3{Y: 5, Z: -5}, Scale: 1},
		},
		{
			name:    "yaw degrees stored as radians",
			control: entity.ControlYaw,
			value:   90,
			want:    entity.Pose{Position: entity.Vector3{Z: -5}, Rotation: entity.Vector3{Y: math.Pi / 2}, Scale: 1},
		},
		{
			name:    "yaw is clamped before conversion",
			control: entity.ControlYaw,
			value:   -720,
			want:    entity.Pose{Position: entity.Vector3{Z: -5}, Rotation: entity.Vector3{Y: -math.Pi}, Scale: 1},
		},
		{
			name:    "scale",
			control: entity.ControlScale,
			value:   2.5,
			want:    entity.Pose{Position: entity.Vector3{Z: -5}, Scale: 2.5},
		},
		{
			name:    "scale is clamped to minimum",
			control: entity.ControlScale,
			value:   0,
			want:    entity.Pose{Position: entity.Vector3{Z: -5}, Scale: 0.1},
		},
		{name: "NaN rejected", control: entity.ControlScale, value: math.NaN(), wantErr: usecase.ErrInvalidControl},
		{name: "Inf rejected", control: entity.ControlVertical, value: math.Inf(1), wantErr: usecase.ErrInvalidControl},
		{name: "unknown control", control: entity.Control("roll"), value: 1, wantErr: usecase.ErrInvalidControl},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, &mockRequester{})
			sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
			require.NoError(t, err)

			got, err := svc.AdjustPose(ctx, "u1", sess.ID, tt.control, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got.Pose, approx); diff != "" {
				t.Errorf("pose mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSessionService_AdjustPose_ControlsAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &mockRequester{})
	sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)

	_, err = svc.AdjustPose(ctx, "u1", sess.ID, entity.ControlYaw, 45)
	require.NoError(t, err)
	_, err = svc.AdjustPose(ctx, "u1", sess.ID, entity.ControlScale, 2)
	require.NoError(t, err)
	got, err := svc.AdjustPose(ctx, "u1", sess.ID, entity.ControlVertical, -1)
	require.NoError(t, err)

	want := entity.Pose{
		Position: entity.Vector3{Y: -1, Z: -5},
		Rotation: entity.Vector3{Y: math.Pi / 4},
		Scale:    2,
	}
	if diff := cmp.Diff(want, got.Pose, approx); diff != "" {
		t.Errorf("pose mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionService_PlaceManually(t *testing.T) {
	ctx := context.Background()
	req := &mockRequester{}
	svc := newService(t, req)
	sess, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)

	got, err := svc.PlaceManually(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Visible)
	assert.Equal(t, entity.StatePlaced, got.State)
	assert.Equal(t, sess.Pose, got.Pose)
	assert.Zero(t, req.Calls)
}

func TestSessionService_EvictIdle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(t, &mockRequester{})
	svc.SetClock(func() time.Time { return now })

	stale, err := svc.CreateSession(ctx, "u1", "chair-1", "")
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	fresh, err := svc.CreateSession(ctx, "u1", "lamp-1", "")
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	n, err := svc.EvictIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.GetSession(ctx, "u1", stale.ID)
	assert.ErrorIs(t, err, usecase.ErrSessionNotFound)
	_, err = svc.GetSession(ctx, "u1", fresh.ID)
	assert.NoError(t, err)
}
