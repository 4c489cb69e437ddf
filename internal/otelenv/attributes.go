package otelenv

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

type attribute struct {
	key     string
	segment string // the key=value entry exactly as written
}

func (a attribute) value() string {
	_, v, _ := strings.Cut(a.segment, "=")
	return strings.TrimSpace(v)
}

// ResourceAttributes is the parsed form of an OTEL_RESOURCE_ATTRIBUTES value.
// Insertion order is preserved and the first value seen for a key wins.
type ResourceAttributes struct {
	attrs []attribute
	index map[string]int
}

// ParseResourceAttributes parses a comma-separated key=value list.
//
// Entries are kept byte-for-byte so that re-serializing never alters what the
// user wrote. Empty segments, segments without "=" and segments with an empty
// key carry no attribute and are dropped, as the OpenTelemetry SDKs ignore them
// too. Repeated keys keep their first value.
func ParseResourceAttributes(s string) *ResourceAttributes {
	ra := &ResourceAttributes{index: make(map[string]int)}
	if strings.TrimSpace(s) == "" {
		return ra
	}

	for _, part := range strings.Split(s, ",") {
		k, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, seen := ra.index[k]; seen {
			continue
		}
		ra.index[k] = len(ra.attrs)
		ra.attrs = append(ra.attrs, attribute{key: k, segment: part})
	}
	return ra
}

// Has reports whether key is present.
func (ra *ResourceAttributes) Has(key string) bool {
	_, ok := ra.index[key]
	return ok
}

// Get returns the decoded value for key.
func (ra *ResourceAttributes) Get(key string) (string, bool) {
	i, ok := ra.index[key]
	if !ok {
		return "", false
	}
	raw := ra.attrs[i].value()
	if v, err := url.PathUnescape(raw); err == nil {
		return v, true
	}
	return raw, true
}

// Append adds key=value unless key is already present. The value is
// percent-encoded. It reports whether the attribute was added.
func (ra *ResourceAttributes) Append(key, value string) bool {
	if ra.index == nil {
		ra.index = make(map[string]int)
	}
	if _, ok := ra.index[key]; ok {
		return false
	}
	ra.index[key] = len(ra.attrs)
	ra.attrs = append(ra.attrs, attribute{key: key, segment: key + "=" + EncodeValue(value)})
	return true
}

// Keys returns attribute keys in order.
func (ra *ResourceAttributes) Keys() []string {
	keys := make([]string, len(ra.attrs))
	for i, a := range ra.attrs {
		keys[i] = a.key
	}
	return keys
}

// Len returns the number of attributes.
func (ra *ResourceAttributes) Len() int { return len(ra.attrs) }

// String serializes the attributes in order.
func (ra *ResourceAttributes) String() string {
	var b strings.Builder
	for i, a := range ra.attrs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.segment)
	}
	return b.String()
}

// EncodeValue percent-encodes the characters that would break the
// comma-separated key=value format: ',', '=', '%', whitespace and control
// characters. Everything else, including non-ASCII text, is left as is.
func EncodeValue(v string) string {
	if !strings.ContainsFunc(v, needsEncoding) {
		return v
	}

	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(v); {
		r, size := utf8.DecodeRuneInString(v[i:])
		if needsEncoding(r) {
			for j := i; j < i+size; j++ {
				b.WriteByte('%')
				b.WriteByte(hex[v[j]>>4])
				b.WriteByte(hex[v[j]&0x0f])
			}
		} else {
			b.WriteString(v[i : i+size])
		}
		i += size
	}
	return b.String()
}

func needsEncoding(r rune) bool {
	switch r {
	case ',', '=', '%':
		return true
	}
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
