package logbridge

import (
	"go.uber.org/zap/zapcore"
)

// Level is the severity attached to a native log event.
type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

var levelNames = [...]string{"trace", "debug", "info", "warning", "error", "fatal"}

// ParseLevel maps a raw native level to a Level.
// Values outside 0..5 map to LevelInfo.
func ParseLevel(raw int32) Level {
	if raw < int32(LevelTrace) || raw > int32(LevelFatal) {
		return LevelInfo
	}
	return Level(raw)
}

func (l Level) String() string {
	if l < LevelTrace || l > LevelFatal {
		return "info"
	}
	return levelNames[l]
}

// ZapLevel returns the zap level used for l.
// Fatal maps to zap's Error level: zap's Fatal exits the process, which must
// never happen from inside a native call.
func (l Level) ZapLevel() zapcore.Level {
	switch l {
	case LevelTrace, LevelDebug:
		return zapcore.DebugLevel
	case LevelWarning:
		return zapcore.WarnLevel
	case LevelError, LevelFatal:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
