// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: form parsing, listing parameters and safe return locations.

package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"acme/internal/invoices"
	"acme/internal/validation"
)

// ListParams holds the search and pagination parameters of a listing.
type ListParams struct {
	Query string
	Page  int
}

// ParseListParams extracts query and page from URL query values. Page
// defaults to 1 and never goes below it.
func ParseListParams(query url.Values) ListParams {
	params := ListParams{
		Query: sanitizeInput(query.Get("query")),
		Page:  1,
	}
	if v := strings.TrimSpace(query.Get("page")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 1 {
			params.Page = p
		}
	}
	return params
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// ReturnLocation is where to send the client after an action that does not
// navigate by itself. It is the same-origin invoice listing the request
// came from, keeping its search and page, or the bare listing.
func ReturnLocation(r *http.Request) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return invoices.ListingPath
	}
	u, err := url.Parse(ref)
	if err != nil {
		return invoices.ListingPath
	}
	if u.Host != "" && u.Host != r.Host {
		return invoices.ListingPath
	}
	if u.Path != invoices.ListingPath {
		return invoices.ListingPath
	}

	params := ParseListParams(u.Query())
	q := url.Values{}
	if params.Query != "" {
		q.Set("query", params.Query)
	}
	if params.Page > 1 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if len(q) == 0 {
		return invoices.ListingPath
	}
	return invoices.ListingPath + "?" + q.Encode()
}

// sanitizeInput trims s and drops control characters.
func sanitizeInput(s string) string {
	v, _ := validation.Trimmed(s)
	str, _ := v.(string)
	return str
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
