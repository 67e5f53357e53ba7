//go:build !linux && !tinygo

package lineio

import "errors"

func newRPIOFromNames(rowNames, colNames []string, activeLow bool) (Backend, error) {
	return nil, errors.New("rpio: backend is only available on linux")
}
