package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes v as RFC 8785 canonical JSON. State hashes and
// journal identities are computed from this encoding only.
//
// Compared with encoding/json: object keys are ordered by UTF-16 code
// units, strings are NFC-normalized and not HTML-escaped, floats are
// rejected, and an absent (nil) value is an error while IRNull is null.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("absent values have no canonical form")
	case IRNull:
		buf.WriteString("null")
	case IRBool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case IRInt:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case IRString:
		return appendCanonicalString(buf, string(val))
	case IRArray:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case IRObject:
		return appendCanonicalObject(buf, val)
	case Action:
		return appendCanonicalObject(buf, IRObject(val))
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		converted, err := FromGo(v)
		if err != nil {
			return err
		}
		return appendCanonical(buf, converted)
	}
	return nil
}

func appendCanonicalObject(buf *bytes.Buffer, obj IRObject) error {
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := appendCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// appendCanonicalString escapes only quote, backslash and control
// characters. encoding/json always escapes U+2028 and U+2029, so those
// escapes are turned back into literal characters.
func appendCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(restoreLineSeparators(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})))
	return nil
}

// restoreLineSeparators rewrites \u2028 and \u2029 escapes as the raw
// characters. An escape preceded by an odd number of backslashes is literal
// text and is kept.
func restoreLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	run := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == '\\' && run%2 == 0 && bytes.HasPrefix(data[i:], []byte(`\u202`)) && i+5 < len(data) {
			switch data[i+5] {
			case '8':
				out = append(out, "\u2028"...)
				i += 5
				run = 0
				continue
			case '9':
				out = append(out, "\u2029"...)
				i += 5
				run = 0
				continue
			}
		}
		if c == '\\' {
			run++
		} else {
			run = 0
		}
		out = append(out, c)
	}
	return out
}
