package main

import (
	"log"
	"log/slog"
	"strings"

	"trip-planner/pkg/logging"
)

// serverErrorWriter 将 http.Server 内部错误写入结构化日志
// 客户端中途断开产生的噪音日志直接丢弃
type serverErrorWriter struct {
	logger *logging.Logger
}

var ignoredServerErrors = []string{
	"TLS handshake error",
	"broken pipe",
	"connection reset by peer",
}

func (w *serverErrorWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	for _, s := range ignoredServerErrors {
		if strings.Contains(msg, s) {
			return len(p), nil
		}
	}
	w.logger.Warn("HTTP server error", slog.String("detail", msg))
	return len(p), nil
}

// newServerErrorLog 用于 http.Server.ErrorLog
func newServerErrorLog(logger *logging.Logger) *log.Logger {
	return log.New(&serverErrorWriter{logger: logger}, "", 0)
}
