// Package logging provides structured logging for generation runs.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation support for debugging and post-hoc analysis. It is
// designed to help troubleshoot branching generation runs by providing
// structured, filterable logs that can be analyzed after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (scene ID, branch key, episode ID)
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger]
// type uses Go's slog internally which is designed for concurrent
// access. Child loggers created via With* methods share the underlying
// writer safely.
//
// # Basic Usage
//
// Create a logger for a run directory:
//
//	logger, err := logging.NewLogger("/path/to/run", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	// Log messages at various levels
//	logger.Debug("detailed info", "key", "value")
//	logger.Info("segment committed", "duration_ms", 150)
//	logger.Warn("validation rejection", "attempt", 2)
//	logger.Error("generation failed", "error", err.Error())
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	// Add scene context
//	sceneLogger := logger.WithScene("004B")
//
//	// Add branch context
//	branchLogger := sceneLogger.WithBranch("AB")
//
//	// Add episode context, tying together every attempt for one unit
//	episodeLogger := branchLogger.WithEpisode(entry.EpisodeID().String())
//
//	// All logs from episodeLogger include scene_id, branch, and episode_id
//	episodeLogger.Info("candidate rejected", "hard_issues", 2)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"candidate rejected","scene_id":"004B","branch":"AB","episode_id":"...","hard_issues":2}
//
// # Testing
//
// For testing, use [NopLogger] to discard all log output:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NopLogger()
//	    // Use logger in tests without creating files
//	}
//
// # Log Levels
//
// The package defines four log levels:
//
//   - [LevelDebug]: Detailed information for debugging
//   - [LevelInfo]: General operational information (default)
//   - [LevelWarn]: Warning conditions that may need attention
//   - [LevelError]: Error conditions that affect functionality
//
// Use [ValidLevels] to get the list of valid level strings, and [ParseLevel]
// to normalize user-provided level strings.
package logging
