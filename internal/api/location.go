package api

import "net/url"

// queryLocation adapts a URL query string to the search controller's
// Location. Each request gets its own copy, so writes affect only the
// canonical location echoed back in the response.
type queryLocation struct {
	values url.Values
	key    string
}

func newQueryLocation(values url.Values) *queryLocation {
	copied := url.Values{}
	for k, vs := range values {
		copied[k] = append([]string(nil), vs...)
	}
	return &queryLocation{values: copied, key: "q"}
}

func (l *queryLocation) Read() string {
	return l.values.Get(l.key)
}

func (l *queryLocation) Write(query string) {
	if query == "" {
		l.values.Del(l.key)
		return
	}
	l.values.Set(l.key, query)
}

// Encode returns the canonical query string after controller writes.
func (l *queryLocation) Encode() string {
	return l.values.Encode()
}
