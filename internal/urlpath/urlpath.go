// Package urlpath provides the paired encoded/decoded path-segment
// value used by the HTTP-facing collaborators. It is a thin value
// object; the engine itself never interprets either form.
package urlpath

import "net/url"

// Segment carries one path segment in both its raw and percent-encoded
// (UTF-8, RFC 2396) forms. The zero value is not meaningful; construct
// with New.
type Segment struct {
	unencoded string
	encoded   string
}

// New constructs a Segment from a raw path segment.
//
// Encoding goes through an absolute "file" URI construction (a URL
// with scheme "file" and the segment as its path) rather than encoding
// the segment directly against a nil scheme: some URL encoders refuse
// to touch bare colons when there is no scheme to disambiguate them
// from a scheme separator, which would otherwise corrupt segment names
// containing a colon. Building the URL against an explicit "file"
// scheme (with the empty host omitted) and then stripping the "file:/"
// prefix sidesteps that and leaves colons intact.
func New(raw string) Segment {
	u := url.URL{Scheme: "file", Path: "/" + raw, OmitHost: true}
	encoded := u.String()
	const prefix = "file:/"
	if len(encoded) >= len(prefix) && encoded[:len(prefix)] == prefix {
		encoded = encoded[len(prefix):]
	}
	return Segment{unencoded: raw, encoded: encoded}
}

// Unencoded returns the raw segment.
func (s Segment) Unencoded() string {
	return s.unencoded
}

// Encoded returns the percent-encoded segment.
func (s Segment) Encoded() string {
	return s.encoded
}

// String returns the unencoded form, matching the value's printable
// representation.
func (s Segment) String() string {
	return s.unencoded
}
