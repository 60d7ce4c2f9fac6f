package client

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/spf13/cast"
	"golang.org/x/net/html/charset"
)

// xmlHeader prefixes every request body sent to the device.
const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// successMarker is the device's literal acknowledgement value.
const successMarker = "OK"

func init() {
	mxj.XmlCharsetReader = charset.NewReaderLabel
}

// Tree is a decoded XML document. Values are strings, nested maps or,
// for repeated elements, []any. A repeated element that occurs once is
// decoded as a single map, not a list of one.
type Tree map[string]any

// Decode parses a device response body into a Tree. Scalars are kept as
// strings so phone numbers retain leading '+' and zeros.
func Decode(data []byte) (Tree, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if trimmed[0] != '<' {
		return Tree{"response": string(trimmed)}, nil
	}
	m, err := mxj.NewMapXml(trimmed, false)
	if err != nil {
		return nil, err
	}
	return Tree(m), nil
}

// Encode builds a request body. Tree values go through mxj; anything else
// is marshalled with encoding/xml, which keeps struct field order.
func Encode(v any) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch vv := v.(type) {
	case Tree:
		body, err = mxj.Map(plain(vv).(map[string]any)).Xml()
	case map[string]any:
		body, err = mxj.Map(plain(vv).(map[string]any)).Xml()
	default:
		body, err = xml.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return append([]byte(xmlHeader), body...), nil
}

// plain converts nested Tree values to map[string]any for mxj.
func plain(v any) any {
	switch vv := v.(type) {
	case Tree:
		return plain(map[string]any(vv))
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = plain(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = plain(val)
		}
		return out
	}
	return v
}

// Path returns the value at a dot separated element path.
func (t Tree) Path(path string) (any, bool) {
	var cur any = map[string]any(t)
	for _, key := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at path coerced to a string.
func (t Tree) String(path string) (string, bool) {
	v, ok := t.Path(path)
	if !ok {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// Int returns the value at path coerced to an int.
func (t Tree) Int(path string) (int, error) {
	v, ok := t.Path(path)
	if !ok {
		return 0, &MalformedResponseError{Path: path}
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, &MalformedResponseError{Path: path, Err: err}
	}
	return n, nil
}

// ErrorCode returns the code of a device <error> envelope, if any.
func (t Tree) ErrorCode() (string, bool) {
	return t.String("error.code")
}

// IsOK reports whether the response is the device's success marker.
func IsOK(t Tree) bool {
	for _, key := range []string{"response", "Response"} {
		if v, ok := t[key].(string); ok {
			return v == successMarker
		}
	}
	return false
}

func asMap(v any) (map[string]any, bool) {
	switch vv := v.(type) {
	case Tree:
		return vv, true
	case map[string]any:
		return vv, true
	case mxj.Map:
		return vv, true
	}
	return nil, false
}
