package services

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btclog"

	"github.com/foundation42/microkernel/internal/kernel"
)

// maxLogTextBytes bounds a single log message's text, per spec §4.13.
const maxLogTextBytes = 255

// LogLevel mirrors the set of severities the built-in logger actor accepts.
type LogLevel byte

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
)

// LogRecordPayload is the decoded form of a MsgTypeLog message's payload:
// {level: 1 byte}{source: 8 bytes}{text length: 1 byte}{text: up to 255 bytes}.
type LogRecordPayload struct {
	Level  LogLevel
	Source kernel.ID
	Text   string
}

// EncodeLogRecord serializes a LogRecordPayload, truncating text to
// maxLogTextBytes.
func EncodeLogRecord(p LogRecordPayload) []byte {
	text := p.Text
	if len(text) > maxLogTextBytes {
		text = text[:maxLogTextBytes]
	}

	buf := make([]byte, 1+8+1+len(text))
	buf[0] = byte(p.Level)
	src := uint64(p.Source)
	for i := 0; i < 8; i++ {
		buf[1+i] = byte(src >> (56 - 8*i))
	}
	buf[9] = byte(len(text))
	copy(buf[10:], text)

	return buf
}

// DecodeLogRecord parses bytes produced by EncodeLogRecord.
func DecodeLogRecord(buf []byte) (p LogRecordPayload, ok bool) {
	if len(buf) < 10 {
		return LogRecordPayload{}, false
	}

	p.Level = LogLevel(buf[0])
	var src uint64
	for i := 0; i < 8; i++ {
		src = src<<8 | uint64(buf[1+i])
	}
	p.Source = kernel.ID(src)

	n := int(buf[9])
	if len(buf) < 10+n {
		return LogRecordPayload{}, false
	}
	p.Text = string(buf[10 : 10+n])

	return p, true
}

// LoggerActor is the built-in logger: an actor, registered at most once per
// runtime, that accepts MsgTypeLog records and writes them to a sink
// (stderr by default), per spec §4.13.
type LoggerActor struct {
	sink io.Writer
}

// NewLoggerActor constructs a logger actor state writing to sink. A nil
// sink defaults to os.Stderr.
func NewLoggerActor(sink io.Writer) *LoggerActor {
	if sink == nil {
		sink = os.Stderr
	}

	return &LoggerActor{sink: sink}
}

// SpawnLogger spawns the logger actor and returns its identity. Callers
// typically register it under a well-known name (e.g. "/sys/log") via the
// ns package immediately afterward.
func SpawnLogger(rt *kernel.Runtime, sink io.Writer) kernel.ID {
	actor := NewLoggerActor(sink)

	return rt.Spawn(kernel.SpawnSpec{
		Behavior:        kernel.BehaviorFunc(actor.receive),
		State:           actor,
		MailboxCapacity: 64,
	})
}

func (a *LoggerActor) receive(ctx *kernel.Context, msg kernel.Message) bool {
	if msg.Type != kernel.MsgTypeLog {
		return true
	}

	rec, ok := DecodeLogRecord(msg.Payload)
	if !ok {
		return true
	}

	fmt.Fprintf(a.sink, "[%s] %s: %s\n", rec.Level, rec.Source, rec.Text)

	return true
}

func (l LogLevel) String() string {
	switch l {
	case LogTrace:
		return "TRC"
	case LogDebug:
		return "DBG"
	case LogInfo:
		return "INF"
	case LogWarn:
		return "WRN"
	case LogError:
		return "ERR"
	default:
		return "UNK"
	}
}

// Log builds a log record attributed to source and sends it to target (the
// logger actor's identity), truncating the formatted text to
// maxLogTextBytes as the fixed-buffer contract in spec §4.13 requires.
func Log(rt *kernel.Runtime, target, source kernel.ID, level LogLevel, format string, args ...any) {
	text := fmt.Sprintf(format, args...)

	payload := EncodeLogRecord(LogRecordPayload{
		Level:  level,
		Source: source,
		Text:   text,
	})

	if !rt.Send(target, kernel.MsgTypeLog, payload) {
		log.WarnS(context.Background(), "Dropped log record, logger mailbox full "+
			"or unreachable", "target", target, "source", source)
	}
}

// btclogLevel maps a LogLevel onto the matching btclog level, for sinks
// that want to forward into the daemon's own structured logger instead of
// writing plain text.
func btclogLevel(l LogLevel) btclog.Level {
	switch l {
	case LogTrace:
		return btclog.LevelTrace
	case LogDebug:
		return btclog.LevelDebug
	case LogInfo:
		return btclog.LevelInfo
	case LogWarn:
		return btclog.LevelWarn
	case LogError:
		return btclog.LevelError
	default:
		return btclog.LevelInfo
	}
}
