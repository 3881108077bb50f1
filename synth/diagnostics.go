package synth

import (
	"context"
	"log/slog"
	"time"

	"github.com/vsariola/chipbox"
)

// DiagnosticInterval is the shortest time between two log records of the
// same diagnostic code. The diagnostics in between are counted and the
// count is logged with the next record.
const DiagnosticInterval = time.Second

// LogDiagnostics logs the diagnostics received from the channel until the
// context is done or the channel is closed. Resource problems are logged as
// errors, the rest as warnings.
func LogDiagnostics(ctx context.Context, diagnostics <-chan chipbox.Diagnostic, logger *slog.Logger) {
	var last [chipbox.NumDiagnosticCodes]time.Time
	var suppressed [chipbox.NumDiagnosticCodes]int
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-diagnostics:
			if !ok {
				return
			}
			if d.Code < 0 || d.Code >= chipbox.NumDiagnosticCodes {
				continue
			}
			now := time.Now()
			if !last[d.Code].IsZero() && now.Sub(last[d.Code]) < DiagnosticInterval {
				suppressed[d.Code]++
				continue
			}
			last[d.Code] = now
			level := slog.LevelWarn
			if d.Kind == chipbox.Resource {
				level = slog.LevelError
			}
			attrs := []any{slog.String("kind", d.Kind.String())}
			if d.Channel >= 0 {
				attrs = append(attrs, slog.Int("channel", d.Channel))
			}
			if d.Instrument >= 0 {
				attrs = append(attrs, slog.Int("instrument", d.Instrument))
			}
			if d.Bar >= 0 {
				attrs = append(attrs, slog.Int("bar", d.Bar))
			}
			if d.Value != 0 {
				attrs = append(attrs, slog.Float64("value", d.Value))
			}
			if n := suppressed[d.Code]; n > 0 {
				attrs = append(attrs, slog.Int("suppressed", n))
				suppressed[d.Code] = 0
			}
			logger.Log(ctx, level, d.Code.String(), attrs...)
		}
	}
}
