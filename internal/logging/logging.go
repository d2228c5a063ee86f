// Package logging provides the process-wide logr.Logger, backed by zap, and
// the custom verbosity levels used across every controller — matching the
// V(logging.DEBUG)/V(logging.VERBOSE) call sites inherited from the teacher's
// reconciler (the teacher's own logging package was not present in the
// retrieved pack, only its call sites, so it is rebuilt here).
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logr's V(n).Info calls. Lower is more severe;
// these follow logr convention where V(0) is always-on Info.
const (
	DEBUG   = 1
	VERBOSE = 2
)

// New builds a logr.Logger over a zap production or development logger
// depending on development.
func New(development bool) (logr.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}
