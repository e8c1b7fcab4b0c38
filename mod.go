// Package ndnmps coordinates the production and verification of multi-party
// BLS signatures over named data packets.
//
// Multiple independent signers cooperatively sign the same unsigned packet;
// the individual shares are aggregated into a single fixed-size signature
// that verifies against the aggregate of the participating public keys.
package ndnmps

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(zerolog.DebugLevel)

// PromCollectors exposes the metrics registered by the packages of this
// module. The host process decides how, and whether, to serve them.
var PromCollectors []prometheus.Collector
