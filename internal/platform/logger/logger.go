package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
)

type Config struct {
	Mode     string
	Level    string
	Redact   bool
	HashSalt string
}

func LoadConfig() Config {
	return Config{
		Mode:     envutil.String("LOG_MODE", "development"),
		Level:    envutil.String("LOG_LEVEL", "debug"),
		Redact:   envutil.Bool("LOG_REDACTION_ENABLED", true),
		HashSalt: envutil.String("LOG_HASH_SALT", ""),
	}
}

// Logger is a key/value logger over zap. Its method set also satisfies the
// Temporal SDK log.Logger interface.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	redact        bool
	salt          string
}

func New(cfg Config) (*Logger, error) {
	var zc zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "prod", "production":
		zc = zap.NewProductionConfig()
	default:
		zc = zap.NewDevelopmentConfig()
	}
	level := zapcore.DebugLevel
	if strings.TrimSpace(cfg.Level) != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zl, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zl.Sugar(), redact: cfg.Redact, salt: cfg.HashSalt}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.sanitize(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.sanitize(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.sanitize(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.sanitize(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.sanitize(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(l.sanitize(keysAndValues)...),
		redact:        l.redact,
		salt:          l.salt,
	}
}

func (l *Logger) sanitize(kv []interface{}) []interface{} {
	if len(kv) == 0 || !l.redact {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := strings.ToLower(strings.TrimSpace(toString(kv[i])))
		switch {
		case isSecretKey(key):
			out = append(out, kv[i], "[REDACTED]")
		case isIdentityKey(key):
			out = append(out, kv[i], l.hash(kv[i+1]))
		default:
			out = append(out, kv[i], kv[i+1])
		}
	}
	return out
}

func isSecretKey(key string) bool {
	for _, needle := range []string{"token", "authorization", "password", "secret", "api_key", "apikey", "email"} {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

// Learner and user identifiers are hashed so transcripts stay correlatable
// without leaking raw ids into log storage.
func isIdentityKey(key string) bool {
	return strings.Contains(key, "user_id") || strings.Contains(key, "learner_id")
}

func (l *Logger) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	if l.salt != "" {
		_, _ = h.Write([]byte(l.salt))
	}
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
