package resource

import (
	"go.uber.org/zap/zapcore"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/logging"
)

// GetLogger returns the tenant logger fanning out to every configured sink.
// It logs from Debug in debug mode and from Warn otherwise.
func (f *Factory) GetLogger(m *appcontext.Model) (logging.Logger, error) {
	v, err := f.get(m, KindLogger, func() (any, error) {
		level := zapcore.WarnLevel
		if m.Debug {
			level = zapcore.DebugLevel
		}
		l, err := logging.NewSinkLogger(m.Logger.SinkSet, m.Logger.Ident, level)
		if err != nil {
			return nil, errors.NewResource(KindLogger, errors.CodeLoggerSinkFailed, "unable to open logger sinks").
				WithInnerError(err)
		}
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(logging.Logger), nil
}
