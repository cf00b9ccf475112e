// Package source holds the per-kind strategies a watch uses to find out how
// old its target is and what text it contains.
package source

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Kind selects the age and content strategy of a watch. It is also the
// grouping key of the report.
type Kind string

const (
	KindFile   Kind = "File"
	KindLog    Kind = "Log"
	KindURL    Kind = "URL"
	KindDB     Kind = "DB"
	KindSeries Kind = "Series"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindFile, KindLog, KindURL, KindDB, KindSeries}
}

// FileBacked reports whether the kind's locator is a local path.
func (k Kind) FileBacked() bool {
	switch k {
	case KindFile, KindLog, KindSeries:
		return true
	default:
		return false
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind looks a kind up by name, ignoring case.
func ParseKind(name string) (Kind, bool) {
	for _, known := range Kinds() {
		if strings.EqualFold(name, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Target is a watch's resolved identity: the locator after template
// resolution plus the fields of its context.
type Target struct {
	Locator string
	Fields  map[string]string
}

// Field returns a context field or "".
func (t Target) Field(name string) string {
	if t.Fields == nil {
		return ""
	}
	return t.Fields[name]
}

// Stamp is what an AgeSource reports. AsOf is meaningful only when Exists.
type Stamp struct {
	Exists bool
	AsOf   time.Time
}

// AgeSource resolves whether a target exists and the time it is current as
// of. A target that is plainly absent is reported as Stamp{} with a nil
// error; anything that went wrong while looking is returned as an error.
type AgeSource interface {
	Age(ctx context.Context, t Target) (Stamp, error)
}

// ContentSource returns the scannable text lines of a target.
type ContentSource interface {
	Lines(ctx context.Context, t Target) ([]string, error)
}

// LineStamper is an AgeSource that can date a target from lines already
// read, so a check reads the content only once.
type LineStamper interface {
	// UsesContent reports whether the age of t comes from its lines.
	UsesContent(t Target) bool
	StampFromLines(t Target, lines []string) (Stamp, error)
}

type noContent struct{}

func (noContent) Lines(context.Context, Target) ([]string, error) {
	return nil, nil
}

// NoContent is the ContentSource of kinds without text.
var NoContent ContentSource = noContent{}

// Provider hands out the strategies for each kind. The HTTP client and the
// database pool are shared by every watch and safe for concurrent use.
type Provider struct {
	client *http.Client
	pool   *DBPool
}

// NewProvider builds a Provider. A nil client gets DefaultHTTPClient and a
// nil pool gets a fresh DBPool.
func NewProvider(client *http.Client, pool *DBPool) *Provider {
	if client == nil {
		client = DefaultHTTPClient(30 * time.Second)
	}
	if pool == nil {
		pool = NewDBPool()
	}
	return &Provider{client: client, pool: pool}
}

// Pool exposes the shared database pool so callers can close it.
func (p *Provider) Pool() *DBPool {
	return p.pool
}

// Sources returns the age and content strategies for kind.
func (p *Provider) Sources(kind Kind) (AgeSource, ContentSource, error) {
	switch kind {
	case KindFile:
		return FileSource{}, NoContent, nil
	case KindLog:
		return LogSource{}, LogSource{}, nil
	case KindURL:
		return URLSource{Client: p.client}, NoContent, nil
	case KindDB:
		return DBSource{Pool: p.pool}, NoContent, nil
	case KindSeries:
		return SeriesSource{}, NoContent, nil
	default:
		return nil, nil, fmt.Errorf("unknown watch type %q", kind)
	}
}

// DefaultHTTPClient returns a client tuned for many short read-only fetches.
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}
