package httputil

import "net/http"

// BearerHeaders returns the auth header used by the Notion API.
func BearerHeaders(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
