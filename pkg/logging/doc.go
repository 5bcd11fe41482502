// Package logging provides structured logging configuration for posgraph.
//
// This package wraps log/slog so every component (router, transport, mock
// engine, watcher, CLI) logs with the same level, format, and attributes.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	routerLog := logging.Component(logger, "router")
//	routerLog.Debug("dispatch", "operation", "GetProducts", "backend", "mock")
//
// # Integration
//
// Components accept a *slog.Logger through an option or setter. A nil logger
// is replaced with Nop(), so callers never need to guard log calls.
package logging
