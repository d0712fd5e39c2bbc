// Package logger provides structured logging for pixelflow using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields. Graph runs attach a
// run id through the context so every node log line can be correlated.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.Get("dag")
//	log.Info("node finished", logger.NodeFields(name, id, class))
package logger
