package export

import "log/slog"

type ArchiveOption func(a *Archive)

// WithLogger specifies the logger for the archive
func WithLogger(l *slog.Logger) ArchiveOption {
	return func(a *Archive) {
		a.logger = l
	}
}

// WithRules specifies the acceptance rules of published rate files
func WithRules(r Rules) ArchiveOption {
	return func(a *Archive) {
		a.rules = r
	}
}
