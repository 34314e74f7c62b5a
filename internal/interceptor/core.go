package interceptor

import (
	"github.com/xkilldash9x/domsentry/api/schemas"
	"go.uber.org/zap/zapcore"
)

// WrapCore tees zap entries into the buffer while next keeps receiving them.
// Install it with zap.WrapCore so application logs land in the history.
func (i *Interceptor) WrapCore(next zapcore.Core) zapcore.Core {
	return zapcore.NewTee(next, &recordingCore{LevelEnabler: next, i: i})
}

// recordingCore records entries only while the interceptor is installed.
type recordingCore struct {
	zapcore.LevelEnabler
	i      *Interceptor
	fields []zapcore.Field
}

func (c *recordingCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &recordingCore{LevelEnabler: c.LevelEnabler, i: c.i}
	clone.fields = append(append(clone.fields, c.fields...), fields...)
	return clone
}

func (c *recordingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *recordingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if !c.i.Installed() {
		return nil
	}

	var level schemas.Level
	switch {
	case ent.Level >= zapcore.ErrorLevel:
		level = schemas.LevelError
	case ent.Level == zapcore.WarnLevel:
		level = schemas.LevelWarning
	default:
		level = c.i.classifyLog(ent.Message)
	}

	source := c.i.opts.Source
	if ent.LoggerName != "" {
		source = ent.LoggerName
	}
	c.i.record(level, ent.Message, encodeFields(append(c.fields[:len(c.fields):len(c.fields)], fields...)), source, ent.Stack)
	return nil
}

func (c *recordingCore) Sync() error { return nil }

// encodeFields renders zap fields as the entry's pretty-printed JSON details.
func encodeFields(fields []zapcore.Field) string {
	if len(fields) == 0 {
		return ""
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return formatValue(enc.Fields)
}
