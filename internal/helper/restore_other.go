//go:build !windows

package helper

const restorePointsSupported = false
