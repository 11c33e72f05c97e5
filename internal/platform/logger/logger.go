// Package logger はアプリケーション共通のslogロガーを構成します。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New は指定レベルのJSONロガーを生成します。
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Setup はstdout向けのロガーを生成し、slogのデフォルトに設定します。
func Setup(level string) *slog.Logger {
	l := New(os.Stdout, level)
	slog.SetDefault(l)
	return l
}

// ParseLevel はレベル文字列をslog.Levelに変換します。未知の値はInfoになります。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
