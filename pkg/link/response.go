package link

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

// RawKey holds the text of a response line that was not a JSON object.
const RawKey = "_raw"

// Response is one decoded response line. The zero value is the empty
// response returned when the head stays silent.
type Response struct {
	fields map[string]json.RawMessage
}

// ParseResponse decodes a response line. Lines that are not JSON objects
// are kept verbatim under RawKey.
func ParseResponse(line string) Response {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &fields); err != nil || fields == nil {
		raw, _ := json.Marshal(line)
		return Response{fields: map[string]json.RawMessage{RawKey: raw}}
	}
	return Response{fields: fields}
}

// Empty reports whether the head sent nothing. An empty JSON object is a
// response.
func (r Response) Empty() bool { return r.fields == nil }

// Raw returns the text of a non-JSON response line.
func (r Response) Raw() (string, bool) {
	var s string
	if err := r.Decode(RawKey, &s); err != nil {
		return "", false
	}
	return s, true
}

// Has reports whether key is present.
func (r Response) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Keys returns the field names in sorted order.
func (r Response) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode unmarshals the value under key into v. A missing key or a value of
// the wrong shape is reported as ErrMalformed.
func (r Response) Decode(key string, v any) error {
	raw, ok := r.fields[key]
	if !ok {
		return fmt.Errorf("%w: missing %q", probe.ErrMalformed, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: field %q: %v", probe.ErrMalformed, key, err)
	}
	return nil
}

// FirmwareError returns the head-reported error message, if any.
func (r Response) FirmwareError() string {
	raw, ok := r.fields["error"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

// Map decodes the whole response into a generic map.
func (r Response) Map() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, raw := range r.fields {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			out[k] = v
		}
	}
	return out
}

// MarshalJSON encodes the response as the object it was decoded from.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.fields)
}

func (r Response) String() string {
	b, _ := r.MarshalJSON()
	return string(b)
}
