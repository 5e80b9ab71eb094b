package payments

import (
	"encoding/json"
	"mime"
	"net/url"
	"strings"
)

func isForm(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}

// decodeBody reads a form body into flat values, or a JSON body into v.
func decodeBody(in Inbound, v any) (url.Values, error) {
	if isForm(in.ContentType) {
		values, err := url.ParseQuery(string(in.Body))
		if err != nil {
			return nil, ErrMalformed
		}
		return values, nil
	}
	if len(strings.TrimSpace(string(in.Body))) == 0 {
		return nil, ErrMalformed
	}
	if err := json.Unmarshal(in.Body, v); err != nil {
		return nil, ErrMalformed
	}
	return nil, nil
}

func firstOf(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(values.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
