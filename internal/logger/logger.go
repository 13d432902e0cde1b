package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Options はロガーの出力形式とレベルを指定する。
type Options struct {
	Format string // json | text
	Level  string // debug | info | warn | error
}

// Setup は構造化ログ出力のslog.Loggerを生成して返す。
// Formatが"text"の場合は人間向けのテキスト形式、それ以外はJSON形式で出力する。
func Setup(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(opts.Format) {
	case "text":
		handler := log.NewWithOptions(w, log.Options{
			Level:           log.Level(level),
			ReportTimestamp: true,
		})
		return slog.New(handler), nil
	case "", "json":
		handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
		return slog.New(handler), nil
	default:
		return nil, fmt.Errorf("unknown log format: %q", opts.Format)
	}
}

// ParseLevel はログレベル文字列をslog.Levelに変換する。空文字はInfo。
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
	return level, nil
}

// SetupDefault は構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer, opts Options) error {
	if w == nil {
		w = os.Stdout
	}
	logger, err := Setup(w, opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
