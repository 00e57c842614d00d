package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const redacted = "[redacted]"

// sensitive lists attribute keys whose values never reach the log sink.
var sensitive = map[string]bool{
	"pan":             true,
	"cvv":             true,
	"expiry":          true,
	"activation_code": true,
	"otp":             true,
}

// New creates a JSON slog logger configured at the provided level. If the
// level string is invalid it defaults to info.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New writing to w.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, ReplaceAttr: redact})
	return slog.New(handler)
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// redact masks card data and push tokens. Tokens keep their last four
// characters so support can correlate registrations.
func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	switch {
	case sensitive[key]:
		return slog.String(a.Key, redacted)
	case key == "push_token" || key == "token":
		v := a.Value.String()
		if len(v) <= 4 {
			return slog.String(a.Key, redacted)
		}
		return slog.String(a.Key, "..."+v[len(v)-4:])
	}
	return a
}
