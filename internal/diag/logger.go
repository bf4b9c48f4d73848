package diag

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为结构化事件日志器：start/finish/error 三类事件，单行 JSON，
// 经 zap 写入轮转文件；每个事件携带 corr_id 与 comp。
type Logger struct {
	corrID string
	z      *zap.Logger
	sink   io.Closer
}

// NewLogger 通过配置的 level 初始化，并将日志写入 logs/primelayer-current.log，10 MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	sink := NewRotatingFile("logs", "primelayer", 10*1024*1024)
	l := NewLoggerTo(zapcore.AddSync(sink), corrID, level)
	l.sink = sink
	return l
}

// NewLoggerTo 将日志写入任意 WriteSyncer（测试与 stderr 后备）。
func NewLoggerTo(ws zapcore.WriteSyncer, corrID, level string) *Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     utcTime,
		EncodeDuration: zapcore.MillisDurationEncoder,
	})
	core := zapcore.NewCore(enc, ws, parseLevel(strings.TrimSpace(level)))
	z := zap.New(core, zap.ErrorOutput(zapcore.AddSync(os.Stderr))).With(zap.String("corr_id", corrID))
	return &Logger{corrID: corrID, z: z}
}

// Nop 返回丢弃全部事件的日志器。
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

// CorrID 返回关联 ID。
func (l *Logger) CorrID() string { return l.corrID }

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func utcTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339))
}

func kvField(kv map[string]string) zap.Field {
	if len(kv) == 0 {
		return zap.Skip()
	}
	return zap.Any("kv", kv)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartKV(comp, msg, nil)
}

// StartKV 记录带键值的 start。
func (l *Logger) StartKV(comp, msg string, kv map[string]string) *Timer {
	l.z.Info(msg, zap.String("comp", comp), zap.String("stage", "start"), kvField(kv))
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// Debug 输出调试事件（仅在 level=debug 时生效）。
func (l *Logger) Debug(comp, msg string, kv map[string]string) {
	l.z.Debug(msg, zap.String("comp", comp), zap.String("stage", "debug"), kvField(kv))
}

// Warn 记录非致命事件（如精度不足被跳过的数量级）。
func (l *Logger) Warn(comp, code, msg string, kv map[string]string) {
	l.z.Warn(msg, zap.String("comp", comp), zap.String("stage", "warn"), zap.String("code", code), kvField(kv))
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorKV(comp, code, msg, durSince, nil)
}

// ErrorKV 支持附带键值对。
func (l *Logger) ErrorKV(comp, code, msg string, durSince *time.Time, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.z.Error(msg, zap.String("comp", comp), zap.String("stage", "error"), zap.String("code", code), zap.Int64("dur_ms", dur), kvField(kv))
}

// Close 刷新并关闭文件 sink。
func (l *Logger) Close() error {
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l    *Logger
	comp string
	t0   time.Time
}

// Finish 记录 finish；count 为阶段产出条目数。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0)
	t.l.z.Info(msg, zap.String("comp", t.comp), zap.String("stage", "finish"), zap.Int64("dur_ms", dur.Milliseconds()), zap.Int64("count", count))
}

// Since 返回起点时间（供 Error 计算时长）。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
