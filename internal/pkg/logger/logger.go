// Package logger writes one JSON object per line. Fields are key/value
// pairs; email addresses in string values are always masked.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a level name ("debug", "INFO", ...) to a Level.
// Unknown names yield INFO.
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// sink is shared by a logger and every child derived from it.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

// Logger carries a fixed set of fields prepended to every entry.
type Logger struct {
	sink   *sink
	fields []interface{}
}

var std = &Logger{sink: &sink{out: os.Stderr, level: INFO}}

// SetLevel sets the minimum level of the process logger.
func SetLevel(l Level) {
	std.sink.mu.Lock()
	std.sink.level = l
	std.sink.mu.Unlock()
}

// SetOutput redirects the process logger; nil restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	std.sink.mu.Lock()
	std.sink.out = w
	std.sink.mu.Unlock()
}

// With returns a child of the process logger carrying kv on every entry.
func With(kv ...interface{}) *Logger { return std.With(kv...) }

// With returns a child logger that adds kv to the fields of l.
func (l *Logger) With(kv ...interface{}) *Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(kv))
	fields = append(fields, l.fields...)
	fields = append(fields, kv...)
	return &Logger{sink: l.sink, fields: fields}
}

func Debug(msg string, kv ...interface{}) { std.log(DEBUG, msg, kv) }
func Info(msg string, kv ...interface{})  { std.log(INFO, msg, kv) }
func Warn(msg string, kv ...interface{})  { std.log(WARN, msg, kv) }
func Error(msg string, kv ...interface{}) { std.log(ERROR, msg, kv) }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(DEBUG, msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(INFO, msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(WARN, msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(ERROR, msg, kv) }

func (l *Logger) log(level Level, msg string, kv []interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if level < l.sink.level {
		return
	}

	entry := make(map[string]interface{}, 3+(len(l.fields)+len(kv))/2)
	addFields(entry, l.fields)
	addFields(entry, kv)
	entry["time"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level.String()
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"level": "ERROR", "msg": "log entry not encodable", "error": err.Error()})
	}
	l.sink.out.Write(append(data, '\n'))
}

// addFields copies pairs into entry. A trailing key without a value is kept
// with a null value.
func addFields(entry map[string]interface{}, kv []interface{}) {
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 == len(kv) {
			entry[key] = nil
			break
		}
		entry[key] = fieldValue(key, kv[i+1])
	}
}

// fieldValue keeps numbers and booleans as JSON numbers and booleans and
// renders everything else as a masked string.
func fieldValue(key string, v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return x
	case string:
		return mask(key, x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case error:
		return mask(key, x.Error())
	case fmt.Stringer:
		return mask(key, x.String())
	default:
		return mask(key, fmt.Sprint(x))
	}
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func mask(key, val string) string {
	if !strings.Contains(val, "@") {
		return val
	}
	if strings.Contains(strings.ToLower(key), "email") {
		return RedactEmail(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
