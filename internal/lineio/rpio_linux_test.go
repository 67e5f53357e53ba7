//go:build linux && !tinygo

package lineio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stianeikeland/go-rpio/v4"
)

func TestParseBCM(t *testing.T) {
	got, err := parseBCM([]string{"17", "GPIO4", "gpio27", "BCM22", " 0 ", "53"})
	require.NoError(t, err)
	assert.Equal(t, []int{17, 4, 27, 22, 0, 53}, got)

	for _, bad := range []string{"", "GPIO", "54", "-1", "P1_11"} {
		_, err := parseBCM([]string{"5", bad})
		assert.Error(t, err, bad)
	}
}

func TestRPIOLevels(t *testing.T) {
	assert.Equal(t, rpio.PullDown, rowPull(false))
	assert.Equal(t, rpio.PullUp, rowPull(true))

	assert.Equal(t, rpio.High, state(false, true))
	assert.Equal(t, rpio.Low, state(false, false))
	assert.Equal(t, rpio.Low, state(true, true), "active-low drives the column low")
	assert.Equal(t, rpio.High, state(true, false), "active-low columns idle high")
}
