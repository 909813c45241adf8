package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger. Development mode switches to the console encoder
// with debug level; production emits JSON at info.
func New(dev bool) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	if dev {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "ts"
	base, err := config.Build()
	if err != nil {
		return nil, err
	}
	return base.Sugar(), nil
}

// Component returns a child logger tagged with the component name.
func Component(log *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if log == nil {
		log = Nop()
	}
	return log.With("component", name)
}

// Nop returns a logger that discards everything. Used by tests and as a nil default.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
