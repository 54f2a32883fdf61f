package main

import (
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/jingkaihe/httpintercept/pkg/intercept"
	"github.com/jingkaihe/httpintercept/pkg/logging"
)

// runtime carries the logger and event emitter a command runs with.
type runtime struct {
	logger  *slog.Logger
	emitter *logging.Emitter
	closers []func()
}

func newRuntime(source string) (*runtime, error) {
	logger, closeLog, err := newLogger(logConfig{
		Level:      viper.GetString("log.level"),
		Format:     viper.GetString("log.format"),
		File:       viper.GetString("log.file"),
		MaxSizeMB:  viper.GetInt("log.max-size-mb"),
		MaxBackups: viper.GetInt("log.max-backups"),
		MaxAgeDays: viper.GetInt("log.max-age-days"),
	}, os.Stderr)
	if err != nil {
		return nil, err
	}
	rt := &runtime{logger: logger, closers: []func(){closeLog}}

	emitter, err := newEmitter(viper.GetString("events"), viper.GetString("run-id"), source)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if emitter != nil {
		rt.emitter = emitter
		rt.closers = append(rt.closers, func() {
			if err := emitter.Close(); err != nil {
				logger.Warn("closing events sink", "error", err)
			}
		})
	}
	return rt, nil
}

func (rt *runtime) interceptor() *intercept.Interceptor {
	return intercept.New(intercept.WithLogger(rt.logger), intercept.WithEmitter(rt.emitter))
}

// Close runs cleanups in reverse order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}
