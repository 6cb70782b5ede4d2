package pipeline

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/pkg/utils"
)

// ErrNoJSON is returned under PolicyFatal when no strategy finds a JSON
// object in a model response.
var ErrNoJSON = errors.New("no JSON object in model response")

// Policy decides what happens when extraction finds nothing.
type Policy int

const (
	// PolicyFatal returns ErrNoJSON.
	PolicyFatal Policy = iota
	// PolicyDegrade returns an object carrying the error and the start of
	// the raw response.
	PolicyDegrade
)

const maxRawResponseRunes = 500

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	// Greedy on purpose: first '{' to last '}'. Responses holding several
	// separate objects are mis-extracted and then rejected by the decoder.
	bracesRe = regexp.MustCompile(`(?s)\{.*\}`)
)

type strategy struct {
	name string
	find func(string) (string, bool)
}

var strategies = []strategy{
	{name: "direct", find: func(s string) (string, bool) { return s, true }},
	{name: "fenced", find: func(s string) (string, bool) {
		m := fencedBlockRe.FindStringSubmatch(s)
		if m == nil {
			return "", false
		}
		return m[1], true
	}},
	{name: "braces", find: func(s string) (string, bool) {
		m := bracesRe.FindString(s)
		return m, m != ""
	}},
}

// ExtractJSON pulls a JSON object out of free text. Strategies run in order
// until one yields an object; arrays and scalars do not count.
func ExtractJSON(response string, policy Policy) (map[string]any, error) {
	obj, _, err := extractJSON(response, policy)
	return obj, err
}

// extractJSON also reports the name of the strategy that succeeded, or
// "none".
func extractJSON(response string, policy Policy) (map[string]any, string, error) {
	trimmed := strings.TrimSpace(response)
	for _, s := range strategies {
		candidate, ok := s.find(trimmed)
		if !ok {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil && obj != nil {
			return obj, s.name, nil
		}
	}

	if policy == PolicyDegrade {
		return map[string]any{
			models.CritiqueKeyError:       ErrNoJSON.Error(),
			models.CritiqueKeyRawResponse: utils.Truncate(response, maxRawResponseRunes),
		}, "none", nil
	}
	return nil, "none", ErrNoJSON
}
