package observability

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
)

// StartCPUProfile starts CPU profiling into path and returns the function that
// stops it. An empty path is a no-op.
func StartCPUProfile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	profileFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create CPU profile: %w", err)
	}

	err = pprof.StartCPUProfile(profileFile)
	if err != nil {
		profileFile.Close()

		return nil, fmt.Errorf("start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()

		_ = profileFile.Close()
	}, nil
}

// WriteHeapProfile writes a heap profile to path after a GC. Failures are
// logged, not returned. An empty path is a no-op.
func WriteHeapProfile(path string, logger *slog.Logger) {
	if path == "" {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	profileFile, err := os.Create(path)
	if err != nil {
		logger.Warn("could not create heap profile", "path", path, "error", err)

		return
	}
	defer profileFile.Close()

	runtime.GC()

	writeErr := pprof.WriteHeapProfile(profileFile)
	if writeErr != nil {
		logger.Warn("could not write heap profile", "path", path, "error", writeErr)
	}
}
