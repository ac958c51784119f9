package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowQueryThreshold is the duration after which a store execution is logged as slow
const SlowQueryThreshold = 2 * time.Second

// MeasureQuery starts timing a store execution. Call the returned function
// with the row count once results are read.
//
// Usage:
//
//	done := utils.MeasureQuery("sqlite", log)
//	rows, err := run()
//	done(len(rows))
func MeasureQuery(backend string, log zerolog.Logger) func(rows int) time.Duration {
	start := time.Now()

	return func(rows int) time.Duration {
		duration := time.Since(start)

		log.Debug().
			Str("backend", backend).
			Int("rows", rows).
			Dur("duration_ms", duration).
			Msg("Query executed")

		if duration > SlowQueryThreshold {
			log.Warn().
				Str("backend", backend).
				Int("rows", rows).
				Dur("duration", duration).
				Msg("Slow query detected")
		}
		return duration
	}
}
