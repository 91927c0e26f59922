package helper

const restorePointsSupported = true
