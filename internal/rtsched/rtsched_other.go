//go:build !linux

package rtsched

// Apply only succeeds when tuning is disabled.
func Apply(cfg Config) (func(), error) {
	if !cfg.Realtime {
		return func() {}, nil
	}
	return nil, ErrUnsupported
}

// IsPermission always reports false here.
func IsPermission(err error) bool { return false }
