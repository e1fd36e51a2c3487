package rdfio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrFetch is returned when a remote document cannot be retrieved.
var ErrFetch = errors.New("fetching RDF document")

// Source is an opened RDF document.
type Source struct {
	io.ReadCloser
	// Name is the location the source was opened from.
	Name string
	// Size is the byte length, or -1 when unknown.
	Size int64
	// Format is guessed from the location or Content-Type, empty if unknown.
	Format Format
}

// HTTPClient is used for http(s) locations.
var HTTPClient = &http.Client{Timeout: 5 * time.Minute}

// Open opens a file path, a file:// URL, an http(s) URL, or "-" for stdin.
func Open(ctx context.Context, location string) (*Source, error) {
	if location == "-" {
		return &Source{ReadCloser: io.NopCloser(os.Stdin), Name: "stdin", Size: -1}, nil
	}

	u, err := url.Parse(location)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return openHTTP(ctx, location, u)
		case "file":
			return openFile(u.Path)
		}
	}
	return openFile(location)
}

func openFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	size := int64(-1)
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	format, _ := FormatForPath(path)
	return &Source{ReadCloser: f, Name: path, Size: size, Format: format}, nil
}

var contentTypes = map[string]Format{
	"text/turtle":           Turtle,
	"application/x-turtle":  Turtle,
	"application/n-triples": NTriples,
	"application/n-quads":   NQuads,
	"application/trig":      TriG,
	"application/rdf+xml":   RDFXML,
	"application/ld+json":   JSONLD,
}

func openHTTP(ctx context.Context, location string, u *url.URL) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "text/turtle, application/n-triples, application/rdf+xml;q=0.9, application/ld+json;q=0.8, */*;q=0.1")

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, location, resp.Status)
	}

	format, _ := FormatForPath(u.Path)
	ct := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if f, ok := contentTypes[strings.ToLower(ct)]; ok {
		format = f
	}
	return &Source{ReadCloser: resp.Body, Name: location, Size: resp.ContentLength, Format: format}, nil
}
