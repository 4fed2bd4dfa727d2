// Package guardrail watches per-synthesis spend against two ascending
// thresholds and logs when they are exceeded. It never blocks a request —
// the guardrail is an operator signal, not an enforcement point.
package guardrail

import "log/slog"

// unknownSession is logged in place of a missing session id.
const unknownSession = "unknown-session"

// Monitor compares estimated costs against a warn threshold and a hard cap.
type Monitor struct {
	warnUSD    float64
	hardCapUSD float64
	logger     *slog.Logger
}

// New creates a Monitor. logger may be nil, in which case slog.Default() is
// used at check time.
func New(warnUSD, hardCapUSD float64, logger *slog.Logger) *Monitor {
	return &Monitor{warnUSD: warnUSD, hardCapUSD: hardCapUSD, logger: logger}
}

// Check logs the cost tier for one synthesis. The comparison is strictly
// greater-than on both thresholds: a cost exactly equal to the hard cap lands
// in the warn tier. Below the warn threshold nothing is logged.
func (m *Monitor) Check(sessionID string, costUSD float64) {
	logger := m.logger
	if logger == nil {
		logger = slog.Default()
	}
	if sessionID == "" {
		sessionID = unknownSession
	}

	switch {
	case costUSD > m.hardCapUSD:
		logger.Error("synthesis cost exceeded hard cap",
			"session", sessionID,
			"cost_usd", costUSD,
			"hard_cap_usd", m.hardCapUSD,
		)
	case costUSD > m.warnUSD:
		logger.Warn("synthesis cost exceeded warn threshold",
			"session", sessionID,
			"cost_usd", costUSD,
			"warn_usd", m.warnUSD,
		)
	}
}
