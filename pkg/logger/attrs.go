package logger

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
)

func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}
	if pod := os.Getenv("POD_NAME"); pod != "" {
		return pod
	}

	hn, _ := os.Hostname()
	return hn + "-" + uuid.NewString()[:8]
}

// commonAttrs пишутся в каждую запись; cfg.Attrs идут после базовых.
func commonAttrs(cfg Config) []slog.Attr {
	attrs := make([]slog.Attr, 0, 7+len(cfg.Attrs))
	attrs = append(attrs,
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Int("pid", os.Getpid()),
		slog.String("go_version", runtime.Version()),
		slog.Time("started_at", time.Now()),
	)
	return append(attrs, cfg.Attrs...)
}
