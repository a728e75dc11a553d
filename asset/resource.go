package asset

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnsupportedScheme is returned for resource URLs other than local paths
// and http(s).
var ErrUnsupportedScheme = errors.New("resource: unsupported scheme")

// HTTPClient is used for fetching remote resources.
var HTTPClient = http.DefaultClient

// Resource is a streamable scene file. It is either a local file or a file
// fetched over http(s).
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Path returns the location of this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// IsRemote returns true if the resource is streamed over http(s).
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// NewResource opens the resource at location. Relative locations without a
// scheme are resolved against the directory of relTo when it is not nil, so
// files included by a remote scene are fetched from the same server.
//
// The caller must close the returned resource.
func NewResource(location string, relTo *Resource) (*Resource, error) {
	u, err := url.Parse(strings.Replace(location, `\`, `/`, -1))
	if err != nil {
		return nil, errors.Wrapf(err, "resource: could not parse %q", location)
	}

	if u.Scheme == "" && relTo != nil && !filepath.IsAbs(u.Path) {
		rel := u.Path
		u = cloneURL(relTo.url)
		if u.Scheme == "" {
			u.Path = filepath.Join(filepath.Dir(u.Path), rel)
		} else {
			u.Path = path.Join(path.Dir(u.Path), rel)
		}
	}

	var rc io.ReadCloser
	switch u.Scheme {
	case "":
		if rc, err = os.Open(filepath.Clean(u.Path)); err != nil {
			return nil, errors.Wrap(err, "resource")
		}
	case "http", "https":
		resp, err := HTTPClient.Get(u.String())
		if err != nil {
			return nil, errors.Wrapf(err, "resource: could not fetch %q", u.String())
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, errors.Errorf("resource: could not fetch %q: status %d", u.String(), resp.StatusCode)
		}
		rc = resp.Body
	default:
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
	}

	return &Resource{ReadCloser: rc, url: u}, nil
}

// NewResourceFromStream wraps an in-memory stream. Relative includes are
// resolved against name.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	u, err := url.Parse(name)
	if err != nil {
		u = &url.URL{Path: name}
	}
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        u,
	}
}

func cloneURL(u *url.URL) *url.URL {
	c := *u
	return &c
}
