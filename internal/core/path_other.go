//go:build !windows

package core

const caseInsensitivePaths = false
