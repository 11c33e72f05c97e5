package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"storefront_backend/internal/feature/placement/domain/entity"
	"storefront_backend/internal/feature/placement/usecase"
)

// allowedFrameTypes はフレームとして受け付ける画像形式です。
var allowedFrameTypes = []string{"image/jpeg", "image/png", "image/webp"}

var (
	errUnsupportedFrame = fmt.Errorf("%w: unsupported image type", usecase.ErrInvalidFrame)
	errFrameTooLarge    = fmt.Errorf("%w: image size exceeds maximum of %d bytes", usecase.ErrInvalidFrame, usecase.MaxImageSize)
	errEmptyFrame       = fmt.Errorf("%w: image is empty", usecase.ErrInvalidFrame)
)

// uploadedFrame はアップロードされた静止画を FrameSource として扱います。
// ファイルは Snapshot が呼ばれた時点で読み込みます。
type uploadedFrame struct {
	file *multipart.FileHeader
}

var _ usecase.FrameSource = uploadedFrame{}

func (u uploadedFrame) Snapshot(ctx context.Context) (entity.Frame, error) {
	if u.file.Size > usecase.MaxImageSize {
		return entity.Frame{}, errFrameTooLarge
	}
	f, err := u.file.Open()
	if err != nil {
		return entity.Frame{}, fmt.Errorf("open upload: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("画像ファイルのクローズに失敗", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(f, usecase.MaxImageSize+1))
	if err != nil {
		return entity.Frame{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > usecase.MaxImageSize {
		return entity.Frame{}, errFrameTooLarge
	}
	return sniffFrame(data)
}

// sniffFrame は中身から画像形式を判定します。クライアントが申告した Content-Type は信用しません。
func sniffFrame(data []byte) (entity.Frame, error) {
	if len(data) == 0 {
		return entity.Frame{}, errEmptyFrame
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedFrameTypes...) {
		return entity.Frame{}, fmt.Errorf("%w: %s", errUnsupportedFrame, mt.String())
	}
	return entity.Frame{Data: data, MIMEType: mt.String()}, nil
}

// decodeDataURI は "data:<mimetype>;base64,<data>" 形式のシーン画像をデコードします。
func decodeDataURI(uri string) (entity.Frame, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return entity.Frame{}, fmt.Errorf("%w: scene image must be a data URI", usecase.ErrInvalidFrame)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return entity.Frame{}, fmt.Errorf("%w: scene image must be base64 encoded", usecase.ErrInvalidFrame)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > usecase.MaxImageSize+2 {
		return entity.Frame{}, errFrameTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("%w: decode base64: %v", usecase.ErrInvalidFrame, err)
	}
	return sniffFrame(data)
}
