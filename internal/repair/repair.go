// Package repair recovers structured values from malformed model output.
package repair

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	previewLen = 200
	// maxStarts bounds how many candidate literal starts are tried.
	maxStarts = 8
	// maxTruncations bounds the successive-truncation stage.
	maxTruncations = 32
)

// Parse decodes text as JSON, repairing it when needed. When no stage
// produces valid JSON it logs a preview of the input and returns fallback.
// Parse never panics.
func Parse(text string, fallback any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("repair: recovered panic", zap.Any("panic", r), zap.String("preview", preview(text)))
			out = fallback
		}
	}()

	repaired, ok := Repair(text)
	if ok {
		var v any
		if err := json.Unmarshal([]byte(repaired), &v); err == nil {
			return v
		}
	}
	zap.L().Warn("repair: unparseable model output", zap.Int("len", len(text)), zap.String("preview", preview(text)))
	return fallback
}

// Into repairs text and decodes it into dst. It reports whether dst was
// filled.
func Into(text string, dst any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	repaired, found := Repair(text)
	if !found {
		zap.L().Warn("repair: unparseable model output", zap.Int("len", len(text)), zap.String("preview", preview(text)))
		return false
	}
	return json.Unmarshal([]byte(repaired), dst) == nil
}

// Repair returns valid JSON recovered from text, trying in order: the text
// as-is, the text without code fences, the first balanced literal, syntactic
// fixes on that literal and finally truncation at successive closing braces.
// Valid input is returned unchanged, so Repair is idempotent.
func Repair(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}
	if json.Valid([]byte(s)) {
		return s, true
	}

	s = stripFences(s)
	if json.Valid([]byte(s)) {
		return s, true
	}

	starts := literalStarts(s)
	for _, start := range starts {
		lit := balancedLiteral(s, start)
		if json.Valid([]byte(lit)) {
			return lit, true
		}
		if fixed := fix(lit); json.Valid([]byte(fixed)) {
			return fixed, true
		}
	}

	if len(starts) == 0 {
		return "", false
	}

	tail := s[starts[0]:]
	for i, tries := len(tail)-1, 0; i > 0 && tries < maxTruncations; i-- {
		if tail[i] != '}' && tail[i] != ']' {
			continue
		}
		tries++
		if fixed := fix(tail[:i+1]); json.Valid([]byte(fixed)) {
			return fixed, true
		}
	}
	return "", false
}

// stripFences removes a markdown code fence around s, or extracts the first
// fenced block when prose surrounds it.
func stripFences(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	body := s[open+3:]
	// Drop the info string ("json", "JSON", ...).
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// literalStarts returns the positions of the first few '{' or '[' in s.
func literalStarts(s string) []int {
	var out []int
	for i := 0; i < len(s) && len(out) < maxStarts; i++ {
		if s[i] == '{' || s[i] == '[' {
			out = append(out, i)
		}
	}
	return out
}

// balancedLiteral returns the object or array literal starting at start,
// honoring double-quoted strings. An unterminated literal runs to the end.
func balancedLiteral(s string, start int) string {
	var stack []byte
	inString, escaped := false, false
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return s[start:]
}

type tokenKind int

const (
	tokPunct tokenKind = iota
	tokString
	tokLiteral
)

type token struct {
	kind tokenKind
	text string
}

func (t token) startsValue() bool {
	return t.kind != tokPunct || t.text == "{" || t.text == "["
}

func (t token) endsValue() bool {
	return t.kind != tokPunct || t.text == "}" || t.text == "]"
}

// fix applies syntactic repairs: single-quoted strings become double-quoted,
// bare keys and words are quoted, missing commas between adjacent values are
// inserted, duplicated and trailing commas are dropped, unterminated strings
// are closed and unbalanced brackets are closed.
func fix(s string) string {
	toks := lex(s)

	var out []token
	var stack []string
	last := func() (token, bool) {
		if len(out) == 0 {
			return token{}, false
		}
		return out[len(out)-1], true
	}

	for _, t := range toks {
		prev, hasPrev := last()
		switch {
		case t.kind == tokPunct && t.text == ",":
			if !hasPrev || !prev.endsValue() {
				continue
			}
			out = append(out, t)
		case t.kind == tokPunct && (t.text == "}" || t.text == "]"):
			if !contains(stack, t.text) {
				continue
			}
			for len(stack) > 0 {
				closer := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				out = trimDangling(out, closer)
				out = append(out, token{kind: tokPunct, text: closer})
				if closer == t.text {
					break
				}
			}
		case t.kind == tokPunct && t.text == ":":
			if !hasPrev || prev.kind != tokString {
				continue
			}
			out = append(out, t)
		default:
			if hasPrev && prev.endsValue() && t.startsValue() {
				out = append(out, token{kind: tokPunct, text: ","})
			}
			out = append(out, t)
			switch t.text {
			case "{":
				if t.kind == tokPunct {
					stack = append(stack, "}")
				}
			case "[":
				if t.kind == tokPunct {
					stack = append(stack, "]")
				}
			}
		}
	}

	for len(stack) > 0 {
		closer := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = trimDangling(out, closer)
		out = append(out, token{kind: tokPunct, text: closer})
	}

	var sb strings.Builder
	for _, t := range out {
		sb.WriteString(t.text)
	}
	return sb.String()
}

// trimDangling drops a trailing comma and completes a key left without a
// value before closer is appended.
func trimDangling(out []token, closer string) []token {
	for len(out) > 0 && out[len(out)-1].kind == tokPunct && out[len(out)-1].text == "," {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return out
	}
	t := out[len(out)-1]
	switch {
	case t.kind == tokPunct && t.text == ":":
		return append(out, token{kind: tokLiteral, text: "null"})
	case closer == "}" && t.kind == tokString && len(out) >= 2:
		before := out[len(out)-2]
		if before.kind == tokPunct && (before.text == "," || before.text == "{") {
			return append(out, token{kind: tokPunct, text: ":"}, token{kind: tokLiteral, text: "null"})
		}
	}
	return out
}

func contains(stack []string, s string) bool {
	for _, v := range stack {
		if v == s {
			return true
		}
	}
	return false
}

// lex splits s into JSON-ish tokens. Strings are normalized to valid
// double-quoted JSON strings; bare words become literals or quoted strings.
func lex(s string) []token {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.IndexByte("{}[]:,", c) >= 0:
			toks = append(toks, token{kind: tokPunct, text: string(c)})
			i++
		case c == '"' || c == '\'':
			str, n := readString(s[i:], c)
			toks = append(toks, token{kind: tokString, text: str})
			i += n
		default:
			j := i
			for j < len(s) && strings.IndexByte(" \t\n\r{}[]:,\"'", s[j]) < 0 {
				j++
			}
			toks = append(toks, bareword(s[i:j]))
			i = j
		}
	}
	return toks
}

// readString reads a string literal delimited by quote from the start of s
// and returns it re-encoded as a JSON string with the bytes consumed.
func readString(s string, quote byte) (string, int) {
	var sb strings.Builder
	sb.WriteByte('"')
	i := 1
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			next := s[i+1]
			if next == '\'' {
				sb.WriteByte('\'')
			} else {
				sb.WriteByte('\\')
				sb.WriteByte(next)
			}
			i += 2
			continue
		case c == '\\':
			i++
			continue
		case c == quote:
			sb.WriteByte('"')
			return sb.String(), i + 1
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20:
			// Other control bytes are invalid inside JSON strings.
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			sb.WriteRune(r)
			i += size
			continue
		}
		i++
	}
	// Unterminated: close at end of input.
	sb.WriteByte('"')
	return sb.String(), len(s)
}

func bareword(w string) token {
	switch w {
	case "true", "false", "null":
		return token{kind: tokLiteral, text: w}
	case "True":
		return token{kind: tokLiteral, text: "true"}
	case "False":
		return token{kind: tokLiteral, text: "false"}
	case "None", "undefined", "NaN":
		return token{kind: tokLiteral, text: "null"}
	}
	if json.Valid([]byte(w)) {
		return token{kind: tokLiteral, text: w}
	}
	b, _ := json.Marshal(w)
	return token{kind: tokString, text: string(b)}
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
