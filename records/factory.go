package records

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/creatorclaim/publisher/interfaces"
)

// NewKVStoreFromURI creates a keyed store from a location URI.
//
// Supported schemes:
//   - file:///path/to/dir - local filesystem storage
//   - s3://bucket/prefix/?region=us-west-2&endpoint=...&access_key=...&secret_key=... - S3 or compatible
//
// Returns ErrInvalidStoreURI for malformed URIs or unsupported schemes.
func NewKVStoreFromURI(locationURI string, log *slog.Logger) (interfaces.KVStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidStoreURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		path := u.Path
		if u.Host != "" {
			// file://relative/path parses the first segment as host
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, fmt.Errorf("%w: file URI has no path", interfaces.ErrInvalidStoreURI)
		}
		return NewFileKVStore(path, log)

	case "s3":
		bucket := u.Host
		if bucket == "" {
			return nil, fmt.Errorf("%w: s3 URI has no bucket", interfaces.ErrInvalidStoreURI)
		}
		prefix := strings.TrimPrefix(u.Path, "/")
		q := u.Query()
		region := q.Get("region")
		if region == "" {
			region = "us-east-1"
		}
		return NewS3KVStore(bucket, prefix, region, q.Get("endpoint"), q.Get("access_key"), q.Get("secret_key"), log)

	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidStoreURI, u.Scheme)
	}
}
