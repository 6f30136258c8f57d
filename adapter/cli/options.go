package cli

import "time"

// Default adapter configuration values.
const (
	defaultEventBuffer   = 100
	defaultScannerBuffer = 1 << 20 // 1 MB
	defaultGracePeriod   = 5 * time.Second
)

// AdapterOptions holds resolved construction-time configuration for a CLI
// adapter. Use New with AdapterOption functions to customize these values.
type AdapterOptions struct {
	// EventBuffer is the channel buffer size for handle events.
	EventBuffer int

	// ScannerBuffer is the maximum line size in bytes for the stdout scanner.
	ScannerBuffer int

	// GracePeriod is the duration to wait after SIGTERM before sending SIGKILL.
	GracePeriod time.Duration
}

// AdapterOption configures an Adapter at construction time.
type AdapterOption func(*AdapterOptions)

// WithEventBuffer sets the channel buffer size for handle events.
// Values <= 0 are ignored.
func WithEventBuffer(size int) AdapterOption {
	return func(o *AdapterOptions) {
		if size > 0 {
			o.EventBuffer = size
		}
	}
}

// WithScannerBuffer sets the maximum line size in bytes for the stdout scanner.
// Values <= 0 are ignored.
func WithScannerBuffer(size int) AdapterOption {
	return func(o *AdapterOptions) {
		if size > 0 {
			o.ScannerBuffer = size
		}
	}
}

// WithGracePeriod sets the duration to wait after SIGTERM before sending SIGKILL.
// Values <= 0 are ignored.
func WithGracePeriod(d time.Duration) AdapterOption {
	return func(o *AdapterOptions) {
		if d > 0 {
			o.GracePeriod = d
		}
	}
}

func resolveAdapterOptions(opts ...AdapterOption) AdapterOptions {
	o := AdapterOptions{
		EventBuffer:   defaultEventBuffer,
		ScannerBuffer: defaultScannerBuffer,
		GracePeriod:   defaultGracePeriod,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
