package debug

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (startup, mount attach, state changes)
	LevelLive    = 2 // Live info (per-frame targets, slew commands)
	LevelVerbose = 3 // Verbose (geometry rejections, PID outputs)
	LevelTrace   = 4 // Trace (wire bytes, GPIO)
)

var (
	level  int
	logger = zerolog.Nop()
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (startup, mount attach, state changes)
// 2 = live info (targets per frame, slew commands)
// 3 = verbose (rejected pairs, PID outputs, telemetry)
// 4 = trace (wire bytes, GPIO)
func Init(debugLevel int) {
	level = debugLevel
	SetOutput(os.Stdout)
}

// SetOutput redirects log output. Call before the frame loop starts.
func SetOutput(w io.Writer) {
	if level <= LevelOff {
		logger = zerolog.Nop()
		return
	}
	console := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "15:04:05.000000",
	}
	logger = zerolog.New(console).
		Level(zerologLevel(level)).
		With().
		Timestamp().
		Str("app", "hatchtracker").
		Logger()
}

func zerologLevel(l int) zerolog.Level {
	switch {
	case l >= LevelTrace:
		return zerolog.TraceLevel
	case l >= LevelLive:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo {
		logger.Info().Msgf(format, args...)
	}
}

// Warn prints a warning (level 1). Used for degraded operation.
func Warn(format string, args ...interface{}) {
	if level >= LevelInfo {
		logger.Warn().Msgf(format, args...)
	}
}

// Summary prints an important banner (level 1).
func Summary(title string) {
	if level >= LevelInfo {
		logger.Info().Msg("═══════════════════════════════════════")
		logger.Info().Msgf("  %s", title)
		logger.Info().Msg("═══════════════════════════════════════")
	}
}

// Transition prints a control state change (level 1).
func Transition(from, to, trigger string) {
	if level >= LevelInfo {
		logger.Info().
			Str("from", from).
			Str("to", to).
			Str("trigger", trigger).
			Msg("state transition")
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive {
		logger.Debug().Str("tier", "live").Msgf(format, args...)
	}
}

// Mount prints a mount command (level 2).
func Mount(op string, detail string) {
	if level >= LevelLive {
		logger.Debug().Str("tier", "live").Str("op", op).Msg(detail)
	}
}

// Frame prints a per-frame target summary (level 2).
func Frame(state string, targets int, elapsed time.Duration) {
	if level >= LevelLive {
		logger.Debug().
			Str("tier", "live").
			Str("state", state).
			Int("targets", targets).
			Dur("elapsed", elapsed).
			Msg("frame")
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose {
		logger.Debug().Str("tier", "verbose").Msgf(format, args...)
	}
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose {
		logger.Debug().Str("tier", "verbose").Msgf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose {
		logger.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Debug().Msgf("  %s", name)
		logger.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose {
		logger.Debug().Str("tier", "verbose").Int("step", num).Msg(description)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo {
		logger.Info().Interface(name, value).Msg("value")
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace {
		logger.Trace().Msgf(format, args...)
	}
}

// Wire prints bytes exchanged with the mount (level 4).
func Wire(direction string, b []byte) {
	if level >= LevelTrace {
		logger.Trace().Str("dir", direction).Bytes("bytes", b).Msg("wire")
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace {
		logger.Trace().Str("op", operation).Int("pin", pin).Interface("value", value).Msg("gpio")
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo {
		logger.Error().Err(err).Msg("error")
	}
}

// Fmt returns a formatted string only if debug is enabled
// (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
