// Package gologger resolves component loggers and bridges them to the go-job
// logging contract used by the event processor hook.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve returns the provider logger for name when a provider is set,
// then logger, then a nop logger.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ForComponent resolves the logger of one component together with its
// go-job view. Both write through the same named logger.
func ForComponent(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.Logger, job.Logger) {
	resolvedProvider, resolved := Resolve(name, provider, logger)
	return resolved, ToJobProvider(resolvedProvider).GetLogger(name)
}
