package sys

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"webindex/pkg/utils/units"
)

// Nested reports whether a and b are the same directory or one lies inside
// the other.
func Nested(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return within(absA, absB) || within(absB, absA), nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// EnsureDir creates dirname if missing and keeps existing content.
func EnsureDir(dirname string) error {
	return os.MkdirAll(dirname, 0755)
}

func LogMemoryUsage(logger *slog.Logger) {
	const MB = units.MB
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	logger.Debug("memory usage",
		"alloc_mb", fmt.Sprintf("%.2f", float64(memStats.Alloc)/MB),
		"stack_sys_mb", fmt.Sprintf("%.2f", float64(memStats.StackSys)/MB),
		"heap_inuse_mb", fmt.Sprintf("%.2f", float64(memStats.HeapInuse)/MB),
	)
}

func WriteMemoryProfile(filename string) error {
	memF, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating memory profile: %w", err)
	}
	defer memF.Close()

	if err := pprof.WriteHeapProfile(memF); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	return nil
}

// StartTrace starts an execution trace and returns the function that stops it.
func StartTrace(filename string) (func() error, error) {
	traceF, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	if err := trace.Start(traceF); err != nil {
		traceF.Close()
		return nil, fmt.Errorf("starting trace: %w", err)
	}

	return func() error {
		trace.Stop()
		return traceF.Close()
	}, nil
}
