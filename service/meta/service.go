package meta

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service loads YAML documents from any afs URL, expanding ${env.KEY}
// expressions before decoding.
type Service struct {
	fs      afs.Service
	baseURL string
}

// New creates a service resolving relative URLs against baseURL; a nil fs
// uses afs.New().
func New(fs afs.Service, baseURL string) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs, baseURL: baseURL}
}

// URL resolves location against the base URL.
func (s *Service) URL(location string) string {
	if s.baseURL == "" || url.Scheme(location, "") != "" || strings.HasPrefix(location, "/") {
		return location
	}
	return url.Join(s.baseURL, location)
}

// Download returns the document at URL with env expressions expanded.
func (s *Service) Download(ctx context.Context, URL string) ([]byte, error) {
	URL = s.URL(URL)
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %v: %w", URL, err)
	}
	return []byte(ExpandEnv(string(data))), nil
}

// Load decodes the YAML document at URL into target, which may be a
// *yaml.Node.
func (s *Service) Load(ctx context.Context, URL string, target interface{}) error {
	data, err := s.Download(ctx, URL)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %v: %w", URL, err)
	}
	return nil
}

// Exists reports whether URL exists.
func (s *Service) Exists(ctx context.Context, URL string) (bool, error) {
	return s.fs.Exists(ctx, s.URL(URL))
}
