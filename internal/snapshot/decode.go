// Package snapshot converts the engine's Plan to and from the serialized
// fields the sequence store persists. Stored values may come in several
// historical shapes; they are recognized once here so nothing downstream has
// to guess.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
)

// Shape identifies which encoding a stored list was found in.
type Shape int

const (
	ShapeEmpty        Shape = iota // "" or null
	ShapeJSONList                  // ["a","b"] or [1,2]
	ShapeJSONString                // "[\"a\",\"b\"]" (a list encoded twice)
	ShapeBraceLiteral              // {a,"b c"}
	ShapeBracketText               // [a, b c] without JSON quoting
)

func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeJSONList:
		return "json-list"
	case ShapeJSONString:
		return "json-string"
	case ShapeBraceLiteral:
		return "brace-literal"
	case ShapeBracketText:
		return "bracket-text"
	default:
		return "unknown"
	}
}

// ParseError reports a stored value none of the known shapes could decode.
type ParseError struct {
	Field string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 40 {
		raw = raw[:40] + "..."
	}
	return fmt.Sprintf("decode %s %q: %v", e.Field, raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DecodeStrings decodes a stored string list in any known shape.
func DecodeStrings(field, raw string) ([]string, Shape, error) {
	items, shape, err := decodeList(raw)
	if err != nil {
		return nil, shape, &ParseError{Field: field, Raw: raw, Err: err}
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, err := itemString(it)
		if err != nil {
			return nil, shape, &ParseError{Field: field, Raw: raw, Err: fmt.Errorf("item %d: %w", i, err)}
		}
		out[i] = s
	}
	return out, shape, nil
}

// DecodeIDs decodes a stored pose-id list in any known shape. Items may be
// numbers, numeric strings, or objects carrying an "id".
func DecodeIDs(field, raw string) ([]pose.ID, Shape, error) {
	items, shape, err := decodeList(raw)
	if err != nil {
		return nil, shape, &ParseError{Field: field, Raw: raw, Err: err}
	}
	out := make([]pose.ID, len(items))
	for i, it := range items {
		id, err := itemID(it)
		if err != nil {
			return nil, shape, &ParseError{Field: field, Raw: raw, Err: fmt.Errorf("item %d: %w", i, err)}
		}
		out[i] = id
	}
	return out, shape, nil
}

// DecodeRepetitions decodes a stored repetition map, either as a JSON object
// or as a JSON string wrapping one.
func DecodeRepetitions(raw string) (sequence.RepetitionMap, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return nil, &ParseError{Field: "repetitions", Raw: raw, Err: err}
		}
		return DecodeRepetitions(inner)
	}
	var m sequence.RepetitionMap
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, &ParseError{Field: "repetitions", Raw: raw, Err: err}
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

// DecodeBlockRefs decodes the stored block-reference list.
func DecodeBlockRefs(raw string) ([]sequence.BlockRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var refs []sequence.BlockRef
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, &ParseError{Field: "flow_block_refs", Raw: raw, Err: err}
	}
	return refs, nil
}

// decodeList recognizes the shape of raw and returns its items as decoded
// JSON values (strings for the text shapes).
func decodeList(raw string) ([]any, Shape, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return nil, ShapeEmpty, nil
	}

	switch trimmed[0] {
	case '[':
		var items []any
		if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
			return items, ShapeJSONList, nil
		}
		parts, err := splitDelimited(trimmed[1:], ']')
		if err != nil {
			return nil, ShapeBracketText, err
		}
		return toAny(parts), ShapeBracketText, nil
	case '{':
		parts, err := splitDelimited(trimmed[1:], '}')
		if err != nil {
			return nil, ShapeBraceLiteral, err
		}
		return toAny(parts), ShapeBraceLiteral, nil
	case '"':
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return nil, ShapeJSONString, err
		}
		items, innerShape, err := decodeList(inner)
		if err != nil {
			return nil, ShapeJSONString, err
		}
		if innerShape == ShapeEmpty {
			return nil, ShapeEmpty, nil
		}
		return items, ShapeJSONString, nil
	default:
		return nil, ShapeEmpty, fmt.Errorf("unrecognized list shape")
	}
}

// splitDelimited splits the body of a brace or bracket list up to the closing
// delimiter. Items may be quoted with ' or "; backslash escapes the next
// character inside quotes. Unquoted NULL becomes "".
func splitDelimited(body string, closing byte) ([]string, error) {
	var (
		items   []string
		cur     strings.Builder
		quote   byte
		quoted  bool
		pending bool
	)
	flush := func() {
		s := cur.String()
		if !quoted {
			s = strings.TrimSpace(s)
			if s == "NULL" {
				s = ""
			}
		}
		items = append(items, s)
		cur.Reset()
		quoted = false
		pending = false
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			switch c {
			case '\\':
				if i+1 >= len(body) {
					return nil, fmt.Errorf("dangling escape")
				}
				i++
				cur.WriteByte(body[i])
			case quote:
				quote = 0
			default:
				cur.WriteByte(c)
			}
			continue
		}
		switch c {
		case '"', '\'':
			if strings.TrimSpace(cur.String()) == "" {
				cur.Reset()
				quote = c
				quoted = true
				pending = true
				continue
			}
			cur.WriteByte(c)
		case ',':
			flush()
			pending = true
		case closing:
			if rest := strings.TrimSpace(body[i+1:]); rest != "" {
				return nil, fmt.Errorf("trailing data after list: %q", rest)
			}
			if pending || strings.TrimSpace(cur.String()) != "" || quoted {
				flush()
			}
			return items, nil
		default:
			if quoted {
				if c == ' ' || c == '\t' {
					continue
				}
				return nil, fmt.Errorf("unexpected %q after quoted item", c)
			}
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	return nil, fmt.Errorf("missing closing %q", closing)
}

func toAny(parts []string) []any {
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

func itemString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expected text, got %T", v)
	}
}

func itemID(v any) (pose.ID, error) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, fmt.Errorf("pose id %v is not an integer", t)
		}
		return pose.ID(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("pose id %q is not an integer", t)
		}
		return pose.ID(n), nil
	case map[string]any:
		id, ok := t["id"]
		if !ok {
			return 0, fmt.Errorf("pose object has no id")
		}
		return itemID(id)
	default:
		return 0, fmt.Errorf("expected pose id, got %T", v)
	}
}
