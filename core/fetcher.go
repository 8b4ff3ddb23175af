package core

import (
	"context"
	"net/url"
)

// QueryPair is one `key=value` query parameter. Keys may repeat.
type QueryPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EncodeQuery encodes pairs as a query string, one parameter per pair, in order.
func EncodeQuery(pairs []QueryPair) string {
	var buf []byte
	for _, p := range pairs {
		if len(buf) > 0 {
			buf = append(buf, '&')
		}
		buf = append(buf, url.QueryEscape(p.Key)...)
		buf = append(buf, '=')
		buf = append(buf, url.QueryEscape(p.Value)...)
	}
	return string(buf)
}

type (
	// Fetcher retrieves JSON documents from the upstream API and decodes them into `out`.
	Fetcher interface {
		Fetch(ctx context.Context, sess Session, path string, pairs []QueryPair, out interface{}) error
	}

	// Poster sends a JSON body to the upstream API and decodes the response into `out` (if not nil).
	Poster interface {
		Post(ctx context.Context, sess Session, path string, body, out interface{}) error
	}

	// Client is the full upstream API.
	Client interface {
		Fetcher
		Poster
	}
)
