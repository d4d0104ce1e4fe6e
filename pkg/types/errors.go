/*
SPDX-FileCopyrightText: 2026 the go-operator-core authors
SPDX-License-Identifier: Apache-2.0
*/

package types

// ConfigError wraps a configuration validation failure. It is the only
// error type that pkg/operator.Config.Validate returns, so callers can
// reliably distinguish a rejected configuration (ConfigInvalid, fatal
// before pipeline start) from any other error class.
type ConfigError struct {
	err error
}

func NewConfigError(err error) ConfigError {
	return ConfigError{err: err}
}

func (e ConfigError) Error() string {
	return e.err.Error()
}

func (e ConfigError) Unwrap() error {
	return e.err
}

func (e ConfigError) Cause() error {
	return e.err
}
