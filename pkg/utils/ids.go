package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	runIDAlphabet = "0123456789abcdef"
	runIDLength   = 12
)

// GenerateRunID returns a short random hex id used to correlate the events
// of one pipeline run.
func GenerateRunID() (string, error) {
	return gonanoid.Generate(runIDAlphabet, runIDLength)
}
