package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sensor-collector/pkg/config"
)

type Logger = zap.Logger

var (
	mu         sync.RWMutex
	baseLogger = zap.NewNop()
)

// InitLogger 构建全局 logger：彩色控制台 + 文件（按天轮转，json 或 console 格式）
func InitLogger(cfg *config.ZapLogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	writer, err := newRotateWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileEncoder := zapcore.NewJSONEncoder(fileEncoderConfig())
	if cfg.Format == "console" {
		fileEncoder = zapcore.NewConsoleEncoder(fileEncoderConfig())
	}
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig()), zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(writer), level),
	)
	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	baseLogger = l
	mu.Unlock()
	return l, nil
}

// newRotateWriter 日志文件轮转：按天或超过 MaxSize 切分；MaxAge 优先于 MaxBackup
func newRotateWriter(cfg *config.ZapLogConfig) (*rotatelogs.RotateLogs, error) {
	opts := []rotatelogs.Option{
		rotatelogs.WithRotationTime(24 * time.Hour),
		rotatelogs.WithRotationSize(int64(cfg.MaxSize) * 1024 * 1024),
	}
	// rotatelogs rejects MaxAge together with RotationCount
	switch {
	case cfg.MaxAge > 0:
		opts = append(opts, rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour))
	case cfg.MaxBackup > 0:
		opts = append(opts, rotatelogs.WithRotationCount(uint(cfg.MaxBackup)))
	}
	return rotatelogs.New(filepath.Join(cfg.Path, "sensor-collector-%Y%m%d.log"), opts...)
}

const timeLayout = "2006-01-02 15:04:05.000 -07:00"

func consoleEncoderConfig() zapcore.EncoderConfig {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.ConsoleSeparator = " "
	enc.EncodeLevel = coloredLevelEncoder
	// 控制台彩色时间
	enc.EncodeTime = func(t time.Time, pe zapcore.PrimitiveArrayEncoder) {
		pe.AppendString("\033[34m" + t.Format(timeLayout) + "\033[0m")
	}
	// Caller 两级路径
	enc.EncodeCaller = func(c zapcore.EntryCaller, pe zapcore.PrimitiveArrayEncoder) {
		rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
		pe.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
	}
	return enc
}

func fileEncoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	return enc
}

func coloredLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString("\033[36mDEBUG\033[0m")
	case zapcore.InfoLevel:
		enc.AppendString("\033[32mINFO \033[0m")
	case zapcore.WarnLevel:
		enc.AppendString("\033[33mWARN \033[0m")
	case zapcore.ErrorLevel:
		enc.AppendString("\033[31mERROR\033[0m")
	default:
		enc.AppendString("\033[35m" + level.CapitalString() + "\033[0m")
	}
}

// GetGlobalLogger 返回全局 logger；InitLogger 之前为 Nop
func GetGlobalLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

// Named returns a child of the global logger tagged with a component name.
func Named(component string) *zap.Logger {
	return GetGlobalLogger().Named(component)
}

func Debug(msg string, fields ...zap.Field) { logAt(zapcore.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zap.Field)  { logAt(zapcore.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { logAt(zapcore.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zap.Field) { logAt(zapcore.ErrorLevel, msg, fields...) }

func logAt(level zapcore.Level, msg string, fields ...zap.Field) {
	// skip logAt and the exported wrapper
	l := GetGlobalLogger().WithOptions(zap.AddCallerSkip(2))
	if ce := l.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Sync 刷盘；stdout 在部分平台上不支持 fsync，忽略该错误
func Sync() error {
	err := GetGlobalLogger().Sync()
	if err != nil && isStdoutSyncErr(err) {
		return nil
	}
	return err
}

func isStdoutSyncErr(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}
