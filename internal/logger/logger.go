// Package logger is the structured logging surface shared by every w3ns
// component. Fields are passed as a map so call sites stay free of any
// particular backend's field constructors.
package logger

// Logger is implemented by ZapLogger and NoopLogger.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// NoopLogger discards everything. Tests use it.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}

// With returns a Logger that merges base into every call's fields.
// Call-site fields win on key collisions.
func With(l Logger, base map[string]any) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return &withLogger{next: l, base: base}
}

type withLogger struct {
	next Logger
	base map[string]any
}

func (w *withLogger) merge(fields map[string]any) map[string]any {
	out := make(map[string]any, len(w.base)+len(fields))
	for k, v := range w.base {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (w *withLogger) Debug(msg string, f map[string]any) { w.next.Debug(msg, w.merge(f)) }
func (w *withLogger) Info(msg string, f map[string]any)  { w.next.Info(msg, w.merge(f)) }
func (w *withLogger) Warn(msg string, f map[string]any)  { w.next.Warn(msg, w.merge(f)) }
func (w *withLogger) Error(msg string, f map[string]any) { w.next.Error(msg, w.merge(f)) }
