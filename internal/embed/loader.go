// Package embed loads the third-party embeddable player API once per process
// and resolves canonical video identifiers from the known watch URL shapes.
package embed

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync"
)

// DefaultScriptURL is the embed API script location.
const DefaultScriptURL = "https://www.youtube.com/iframe_api"

// idPattern covers youtu.be/<id>, /v/<id>, /u/<n>/<id>, /embed/<id>,
// watch?v=<id> and &v=<id>.
var idPattern = regexp.MustCompile(`(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*)`)

// VideoID extracts the canonical video identifier from a watch URL.
// It returns the empty string when no known shape matches.
func VideoID(url string) string {
	m := idPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[2]
}

// Loader fetches the embed API script exactly once. Concurrent and repeated
// Load calls share the single result. Construct a fresh Loader in tests; the
// package-level Default loader carries the process-wide singleton state.
type Loader struct {
	scriptURL string
	client    *http.Client

	once sync.Once
	err  error
}

// New creates a loader for the given script URL. A nil client falls back to
// http.DefaultClient.
func New(scriptURL string, client *http.Client) *Loader {
	if scriptURL == "" {
		scriptURL = DefaultScriptURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{scriptURL: scriptURL, client: client}
}

// Default is the process-wide loader.
var Default = New(DefaultScriptURL, nil)

// Load ensures the embed API script has been fetched. The first caller
// performs the fetch; every caller observes the same outcome. There is no
// teardown: once loaded, the API stays loaded for the process lifetime.
func (l *Loader) Load(ctx context.Context) error {
	l.once.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.scriptURL, nil)
		if err != nil {
			l.err = fmt.Errorf("embed: build request: %w", err)
			return
		}
		resp, err := l.client.Do(req)
		if err != nil {
			l.err = fmt.Errorf("embed: fetch api script: %w", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			l.err = fmt.Errorf("embed: api script returned status %d", resp.StatusCode)
		}
	})
	return l.err
}
