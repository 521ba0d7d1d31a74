// Package logging provides structured logging with per-module log levels.
//
// Every module logger fans out to up to three handlers:
//   - the console (colored through tint on a terminal, text or JSON otherwise)
//   - the systemd journal when journald is reachable
//   - an in-memory ring buffer whose entries are also passed to a callback,
//     which the API streams to SSE clients
//
// Initialize once at startup, then ask for a module logger:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"supervisor": "debug"},
//	})
//	logger := logging.GetLogger("supervisor")
//	logger.Info("Job started", "job", name)
//
// Module levels can be changed at runtime with SetModuleLevel. Buffered
// entries are read back with GetBuffer().Select.
//
// When running under systemd:
//
//	journalctl -t superprocess -f
//	journalctl -t superprocess SUPERPROCESS_MODULE=supervisor SUPERPROCESS_PROCESS=backup
package logging
