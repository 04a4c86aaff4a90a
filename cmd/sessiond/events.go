package main

import (
	"io"
	"log/slog"

	"github.com/rickgao/gamelink/internal/dispatch"
)

// closeEvents drains the dispatcher, then closes the sinks it delivered to.
func closeEvents(logger *slog.Logger, d *dispatch.Dispatcher, sinks ...io.Closer) {
	d.Close()
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Warn("failed to close event sink", "error", err)
		}
	}
}
