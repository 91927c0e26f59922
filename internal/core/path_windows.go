package core

const caseInsensitivePaths = true
