package middleware

import (
	"net/http"

	"github.com/mssola/useragent"

	"qrlink/pkg/requestcontext"
)

// Device parses the caller's User-Agent into a compact descriptor so audit
// events can say which client asked for a link without storing raw UA strings.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientDevice(r.Context(), describeClient(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func describeClient(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return rawUA
	}
	desc := name
	if version != "" {
		desc += " " + version
	}
	if os := ua.OS(); os != "" {
		desc += " / " + os
	}
	if ua.Bot() {
		desc += " (bot)"
	}
	return desc
}
