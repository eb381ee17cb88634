package logger

import (
	"os"
	"regexp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// level is shared by every Logger so SetLevel applies process-wide.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

var base = newZap(zapcore.Lock(os.Stdout))

// Logger is a centralized structured logger. Each entry is one JSON line
// carrying time, level, module, message and, when present, error.
type Logger struct {
	z *zap.Logger
}

// New creates a new Logger writing to stdout.
func New() *Logger {
	return &Logger{z: base}
}

// NewWithWriter creates a Logger writing to w, mainly for tests.
func NewWithWriter(w zapcore.WriteSyncer) *Logger {
	return &Logger{z: newZap(w)}
}

func newZap(w zapcore.WriteSyncer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.CallerKey = zapcore.OmitKey
	enc.StacktraceKey = zapcore.OmitKey

	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(enc), w, level))
}

// SetLevel changes the minimum level of every Logger. Unknown names keep the
// current level and return an error.
func SetLevel(name string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex  = regexp.MustCompile(`eyJ[^\s]+`)
	userIDRegex = regexp.MustCompile(`\buser_id\s*=\s*[0-9a-fA-F-]+\b`)
	hashRegex   = regexp.MustCompile(`\$argon2id\$[^\s]+`)
)

// Anonymize replaces sensitive information in logs (emails, tokens, IDs, hashes)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = userIDRegex.ReplaceAllString(s, "user_id=[USER_ID]")
	s = hashRegex.ReplaceAllString(s, "[REDACTED_HASH]")
	return s
}

func (l *Logger) log(module string, lvl zapcore.Level, msg string, err error) {
	ce := l.z.Check(lvl, Anonymize(msg))
	if ce == nil {
		return
	}
	fields := []zap.Field{zap.String("module", module)}
	if err != nil {
		fields = append(fields, zap.String("error", Anonymize(err.Error())))
	}
	ce.Write(fields...)
}

func (l *Logger) Info(module, msg string) {
	l.log(module, zapcore.InfoLevel, msg, nil)
}

func (l *Logger) Debug(module, msg string) {
	l.log(module, zapcore.DebugLevel, msg, nil)
}

func (l *Logger) Warn(module, msg string) {
	l.log(module, zapcore.WarnLevel, msg, nil)
}

func (l *Logger) Error(module, msg string, err error) {
	l.log(module, zapcore.ErrorLevel, msg, err)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
