// Package protocol defines the line-oriented messages exchanged between
// the tugboat library and the reaper daemon over its persistent connection.
//
// A client sends exactly one filter line after connecting:
//
//	label=org.tugboat.session-id%3Dabc123\n
//
// and the daemon answers with a single acknowledgement line ("ACK\n").
// No further messages are exchanged; the daemon treats closure of the
// connection as the signal to delete everything matching the filter.
package protocol

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/p-arndt/tugboat/labels"
)

// Ack is the daemon's acknowledgement line, sent once per registered filter.
const Ack = "ACK"

// DefaultPort is the TCP port the daemon listens on inside its container.
const DefaultPort = 8080

// LabelFilterKey marks a filter entry as a Docker label match.
const LabelFilterKey = "label"

// Entry is a single key=value pair in a filter expression.
type Entry struct {
	Key   string
	Value string
}

// Filter describes which resources the daemon must delete once the
// registering connection closes. Entries are ANDed together.
type Filter []Entry

// NewLabelFilter builds a filter matching resources that carry the given
// label key with the given value.
func NewLabelFilter(labelKey, labelValue string) Filter {
	return Filter{{Key: LabelFilterKey, Value: labelKey + "=" + labelValue}}
}

// SessionFilter builds the canonical filter covering every resource a
// session created.
func SessionFilter(sessionID string) Filter {
	return NewLabelFilter(labels.KeySessionID, sessionID)
}

// Encode serializes the filter as ampersand-joined key=value pairs.
// Values are URL-escaped so label values containing '&' or '=' survive
// the trip. The trailing newline is left to the writer.
func (f Filter) Encode() string {
	parts := make([]string, len(f))
	for i, e := range f {
		parts[i] = url.QueryEscape(e.Key) + "=" + url.QueryEscape(e.Value)
	}
	return strings.Join(parts, "&")
}

// Decode parses one filter line (without the trailing newline) back into
// its entries.
func Decode(line string) (Filter, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, fmt.Errorf("empty filter line")
	}

	var f Filter
	for _, part := range strings.Split(line, "&") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed filter entry %q", part)
		}
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("unescape filter key %q: %w", key, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("unescape filter value %q: %w", value, err)
		}
		f = append(f, Entry{Key: k, Value: v})
	}
	return f, nil
}

// Labels extracts the label matches from the filter as a key→value map,
// splitting each "label" entry on its first '='.
func (f Filter) Labels() map[string]string {
	labels := make(map[string]string)
	for _, e := range f {
		if e.Key != LabelFilterKey {
			continue
		}
		k, v, ok := strings.Cut(e.Value, "=")
		if !ok {
			continue
		}
		labels[k] = v
	}
	return labels
}
