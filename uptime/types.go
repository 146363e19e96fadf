// Package uptime defines core types for the uptime probe.
package uptime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type LogLevel int

const (
	LogNone  LogLevel = iota // no logs
	LogError                 // only failed probes
	LogInfo                  // every probe, failures as warnings
	LogDebug                 // verbose
)

// ParseLogLevel maps a config value onto a LogLevel. Unknown values fall back to LogInfo.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "none", "off":
		return LogNone
	case "error":
		return LogError
	case "debug":
		return LogDebug
	default:
		return LogInfo
	}
}

// Input is the value submitted as the request payload's name field. It is either a
// plain string or an arbitrary JSON value kept in its raw encoding.
type Input struct {
	str    string
	raw    json.RawMessage
	isJSON bool
}

// StringInput wraps a plain string case.
func StringInput(s string) Input {
	return Input{str: s}
}

// JSONInput wraps a raw JSON value. A JSON string literal is unwrapped into a StringInput.
func JSONInput(raw []byte) (Input, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Input{}, errors.New("uptime: empty json input")
	}
	if !json.Valid(trimmed) {
		return Input{}, fmt.Errorf("uptime: invalid json input %q", string(trimmed))
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Input{}, fmt.Errorf("uptime: decode string input: %w", err)
		}
		return StringInput(s), nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return Input{}, fmt.Errorf("uptime: compact json input: %w", err)
	}
	return Input{raw: compact.Bytes(), isJSON: true}, nil
}

// ValueInput marshals v and wraps it. Strings stay plain strings.
func ValueInput(v any) (Input, error) {
	if s, ok := v.(string); ok {
		return StringInput(s), nil
	}
	b, err := encodeJSON(v)
	if err != nil {
		return Input{}, fmt.Errorf("uptime: marshal input: %w", err)
	}
	return JSONInput(b)
}

// IsString reports whether the input is the plain string variant.
func (i Input) IsString() bool { return !i.isJSON }

// Echo is the logging form of the input: strings verbatim, everything else as JSON text.
func (i Input) Echo() string {
	if i.isJSON {
		return string(i.raw)
	}
	return i.str
}

func (i Input) MarshalJSON() ([]byte, error) {
	if i.isJSON {
		return i.raw, nil
	}
	return []byte(marshalText(i.str)), nil
}

func (i *Input) UnmarshalJSON(b []byte) error {
	in, err := JSONInput(b)
	if err != nil {
		return err
	}
	*i = in
	return nil
}

func (i Input) String() string { return i.Echo() }

// Outcome represents the classified result of one probe.
type Outcome struct {
	URL        string        `json:"url"`
	Input      Input         `json:"input"`
	StatusCode int           `json:"status_code"`
	Body       any           `json:"body,omitempty"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`

	// rawBody is the body exactly as received, set only when it decoded as JSON.
	rawBody json.RawMessage
}

// Success reports a clean 2xx response without a logical error.
func (o Outcome) Success() bool {
	return o.Error == "" && o.StatusCode >= 200 && o.StatusCode <= 299
}

// RenderedText is the normalized summary persisted with each record: the error message
// when there is one, otherwise the echoed name field, otherwise the serialized body.
func (o Outcome) RenderedText() string {
	if o.Error != "" {
		return o.Error
	}
	if len(o.rawBody) > 0 {
		var obj map[string]json.RawMessage
		if json.Unmarshal(o.rawBody, &obj) == nil {
			if name, ok := obj["name"]; ok {
				return compactJSON(name)
			}
		}
		return compactJSON(o.rawBody)
	}
	if obj, ok := o.Body.(map[string]any); ok {
		if name, ok := obj["name"]; ok {
			return marshalText(name)
		}
	}
	return marshalText(o.Body)
}

// encodeJSON is json.Marshal without HTML escaping, so "<" and "&" stay as sent.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func marshalText(v any) string {
	b, err := encodeJSON(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// compactJSON strips insignificant whitespace from raw, keeping key order and escapes.
func compactJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Summary is what a finished polling run reports.
type Summary struct {
	RunID       string        `json:"run_id"`
	Requests    int           `json:"requests"`
	Failures    int           `json:"store_failures"`
	Duration    time.Duration `json:"duration"`
	Interrupted bool          `json:"interrupted"`
}
