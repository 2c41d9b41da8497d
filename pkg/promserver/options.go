package promserver

const (
	// DefaultNamespace is empty: the catalog names are the published
	// contract and are served unprefixed by default.
	DefaultNamespace = ""
	// DefaultSubsystem is the default subsystem for metrics.
	DefaultSubsystem = ""
	// DefaultMetricsPath is where the exposition format is served.
	DefaultMetricsPath = "/metrics"
)

type Option func(*Server)

// WithNamespace sets the namespace string to use for metric names.
func WithNamespace(ns string) Option {
	return func(s *Server) {
		s.namespace = ns
	}
}

// WithSubsystem sets the subsystem section of the metric names.
func WithSubsystem(subsystem string) Option {
	return func(s *Server) {
		s.subsystem = subsystem
	}
}
