package models

// Research is the structured report produced by the research phase. The
// shape is whatever the model returned; downstream phases read known keys.
type Research map[string]any

// Critique is one critic's structured feedback. A critique whose model output
// could not be parsed carries Error and RawResponse instead of findings.
type Critique map[string]any

const (
	CritiqueKeyName        = "critic_name"
	CritiqueKeyError       = "error"
	CritiqueKeyRawResponse = "raw_response"
)

func (c Critique) CriticName() string {
	name, _ := c[CritiqueKeyName].(string)
	return name
}

// Degraded reports whether the critique is the parse-failure fallback.
func (c Critique) Degraded() bool {
	_, ok := c[CritiqueKeyError]
	return ok
}

func (r Research) Sources() []any {
	sources, _ := r["sources"].([]any)
	return sources
}
