// tagaudit reports AWS resources and their Name tags for one region.
package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	Execute()
}

// setupLogging sends human-readable logs to w at the given level.
func setupLogging(w io.Writer, level zerolog.Level) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}
