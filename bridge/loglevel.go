package bridge

import "github.com/rs/zerolog"

// logLevels maps the external level names onto zerolog levels. "critical"
// maps to the most severe level zerolog emits, and "off" disables output
// entirely.
var logLevels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"critical": zerolog.FatalLevel,
	"off":      zerolog.Disabled,
}

// SetLogLevel adjusts the process-wide diagnostic verbosity. Unknown
// level names leave the current level unchanged. This touches only the
// logging subsystem and is safe to call at any point in the lifecycle,
// including concurrently with stepping.
func SetLogLevel(level string) {
	if l, known := logLevels[level]; known {
		zerolog.SetGlobalLevel(l)
	}
}
