package uptime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type ruleMode int

const (
	ruleSeed   ruleMode = iota // replaces the message built so far
	ruleAppend                 // extends the message built so far
)

// responseFacts is everything classification may look at for one received response.
type responseFacts struct {
	status     int
	statusText string
	raw        []byte
	readErr    error
	decoded    any
	decodeErr  error
}

func (f *responseFacts) ok() bool { return f.status >= 200 && f.status <= 299 }

type classificationRule struct {
	name  string
	mode  ruleMode
	match func(f *responseFacts) bool
	text  func(f *responseFacts) string
}

// classificationRules run in order. Seed rules set the message; append rules only add to it.
var classificationRules = []classificationRule{
	{
		name:  "http-status",
		mode:  ruleSeed,
		match: func(f *responseFacts) bool { return !f.ok() },
		text: func(f *responseFacts) string {
			text := f.statusText
			if text == "" {
				text = "Request failed"
			}
			return fmt.Sprintf("HTTP %d: %s", f.status, text)
		},
	},
	{
		// The probed service reports rejected names with a 200 and an error field.
		name: "logical-error",
		mode: ruleSeed,
		match: func(f *responseFacts) bool {
			_, ok := logicalError(f)
			return f.ok() && ok
		},
		text: func(f *responseFacts) string {
			msg, _ := logicalError(f)
			return msg
		},
	},
	{
		name: "json-body",
		mode: ruleAppend,
		match: func(f *responseFacts) bool {
			if f.ok() || f.readErr != nil || f.decodeErr != nil {
				return false
			}
			s := compactJSON(f.raw)
			return s != "{}" && s != "null"
		},
		text: func(f *responseFacts) string { return "Response: " + compactJSON(f.raw) },
	},
	{
		name: "text-body",
		mode: ruleAppend,
		match: func(f *responseFacts) bool {
			return !f.ok() && f.readErr == nil && f.decodeErr != nil && strings.TrimSpace(string(f.raw)) != ""
		},
		text: func(f *responseFacts) string { return "Response: " + string(f.raw) },
	},
	{
		name:  "unreadable-body",
		mode:  ruleAppend,
		match: func(f *responseFacts) bool { return !f.ok() && f.readErr != nil },
		text:  func(*responseFacts) string { return "Unable to parse response body" },
	},
}

// classify folds the rule table into one error message. Empty means a clean success.
func classify(f *responseFacts) string {
	var msg string
	for _, r := range classificationRules {
		if !r.match(f) {
			continue
		}
		switch r.mode {
		case ruleSeed:
			msg = r.text(f)
		case ruleAppend:
			msg += " - " + r.text(f)
		}
	}
	return msg
}

// logicalError extracts error, then message, from a JSON object body. Non-string values
// are returned as their JSON text as received.
func logicalError(f *responseFacts) (string, bool) {
	if f.readErr != nil || f.decodeErr != nil {
		return "", false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(f.raw, &obj); err != nil || obj == nil {
		return "", false
	}
	for _, key := range []string{"error", "message"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		text := compactJSON(v)
		if text == "null" {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil {
			return s, true
		}
		return text, true
	}
	return "", false
}

// newResponseFacts decodes an already-read body.
func newResponseFacts(resp *http.Response, raw []byte, readErr error) *responseFacts {
	f := &responseFacts{
		status:     resp.StatusCode,
		statusText: statusText(resp),
		raw:        raw,
		readErr:    readErr,
	}
	if readErr != nil {
		return f
	}
	f.decodeErr = json.Unmarshal(raw, &f.decoded)
	return f
}

// body is what the outcome carries: the decoded value, the raw text, or nothing.
func (f *responseFacts) body() any {
	switch {
	case f.readErr != nil:
		return nil
	case f.decodeErr == nil:
		return f.decoded
	case len(f.raw) == 0:
		return nil
	default:
		return string(f.raw)
	}
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
