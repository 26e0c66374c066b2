// Package contract owns the ResponsePayload JSON contract: schema text,
// strict and lenient decoding, and validation.
package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/internal/model"
)

var (
	ErrNoJSONObject       = errors.New("no JSON object found")
	ErrContractViolation  = errors.New("contract violation")
	errMissingRequired    = fmt.Errorf("%w: missing required field", ErrContractViolation)
	errInvalidEnum        = fmt.Errorf("%w: invalid enum value", ErrContractViolation)
	errCardinalityTooHigh = fmt.Errorf("%w: too many items", ErrContractViolation)
)

var (
	schemaOnce sync.Once
	schemaText string
)

// SchemaText is the JSON schema of ResponsePayload, reflected once.
func SchemaText() string {
	schemaOnce.Do(func() {
		raw, err := json.MarshalIndent(llm.GenerateSchema[model.ResponsePayload](), "", "  ")
		if err != nil {
			panic(fmt.Sprintf("marshal response schema: %v", err))
		}
		schemaText = string(raw)
	})
	return schemaText
}

// ParseStrict decodes a completion that must be exactly one JSON object of
// the contract, with no unknown fields and nothing after it.
func ParseStrict(raw string) (model.ResponsePayload, error) {
	var p model.ResponsePayload
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return model.ResponsePayload{}, fmt.Errorf("strict decode: %w", err)
	}
	if dec.More() {
		return model.ResponsePayload{}, fmt.Errorf("strict decode: trailing data")
	}
	return p, nil
}

// ParseLenient pulls the first balanced JSON object out of noisy text
// (code fences, prose around it) and decodes it, dropping unknown fields.
func ParseLenient(raw string) (model.ResponsePayload, error) {
	obj, err := ExtractObject(raw)
	if err != nil {
		return model.ResponsePayload{}, err
	}
	var p model.ResponsePayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return model.ResponsePayload{}, fmt.Errorf("lenient decode: %w", err)
	}
	return p, nil
}

// ExtractObject returns the first balanced {...} in s that is valid JSON.
// Braces inside string literals are ignored.
func ExtractObject(s string) (string, error) {
	for start := strings.IndexByte(s, '{'); start != -1; {
		if end := matchingBrace(s, start); end != -1 {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

func matchingBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Validate reports whether p satisfies the contract: required fields
// non-empty, enums known, arrays within their limits.
func Validate(p model.ResponsePayload) error {
	var missing []string
	if p.Stage == "" {
		missing = append(missing, "stage")
	}
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(p.Summary) == "" {
		missing = append(missing, "summary")
	}
	if p.Risk == "" {
		missing = append(missing, "risk")
	}
	if strings.TrimSpace(p.CTA.URL) == "" {
		missing = append(missing, "cta.url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", errMissingRequired, strings.Join(missing, ", "))
	}

	if !p.Stage.Valid() {
		return fmt.Errorf("%w: stage=%q", errInvalidEnum, p.Stage)
	}
	if !p.Risk.Valid() {
		return fmt.Errorf("%w: risk=%q", errInvalidEnum, p.Risk)
	}

	limits := []struct {
		field string
		n     int
		max   int
	}{
		{"suspected", len(p.Suspected), model.MaxSuspected},
		{"actions", len(p.Actions), model.MaxActions},
		{"alt_cta", len(p.AltCTA), model.MaxAltCTAs},
		{"follow_up", len(p.FollowUp), model.MaxFollowUps},
	}
	for _, l := range limits {
		if l.n > l.max {
			return fmt.Errorf("%w: %s has %d items, max %d", errCardinalityTooHigh, l.field, l.n, l.max)
		}
	}

	return nil
}

// Marshal renders p as compact JSON for repair prompts and logs.
func Marshal(p model.ResponsePayload) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(p)
	return strings.TrimSpace(buf.String())
}
