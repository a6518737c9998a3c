package sqlt

import "fmt"

// LogLevel tags the severity of a LogEvent, mirroring the informational
// event stream the reconciler emits as it works.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return "info"
	}
}

// LogEvent is a single entry in the log sink: a severity-tagged,
// human-readable message. Consumers may format or discard it freely;
// the reconciler makes no assumption about where it ends up.
type LogEvent struct {
	Level   LogLevel
	Message string
}

// LogSink receives informational progress events. A nil sink is valid
// and simply discards every event.
type LogSink func(LogEvent)

func (s LogSink) emit(level LogLevel, format string, args ...any) {
	if s == nil {
		return
	}
	s(LogEvent{Level: level, Message: fmt.Sprintf(format, args...)})
}

// ScriptSink receives each DDL statement before it executes, in
// execution order. A nil sink means no script is being recorded.
type ScriptSink func(statement string)

func (s ScriptSink) emit(statement string) {
	if s != nil {
		s(statement)
	}
}
