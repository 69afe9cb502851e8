package intake

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/japaniel/discoursehash/pkg/errors"
)

// Open opens an intake file. Files ending in .gz are decompressed; .tgz and
// .tar.gz archives yield their first .json member.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tgz"), strings.HasSuffix(lower, ".tar.gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "gzip reader for %s", path)
		}
		member, err := jsonMember(tar.NewReader(gz))
		if err != nil {
			gz.Close()
			f.Close()
			return nil, errors.Wrapf(err, "read archive %s", path)
		}
		return &readCloser{Reader: member, closers: []io.Closer{gz, f}}, nil
	case strings.HasSuffix(lower, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "gzip reader for %s", path)
		}
		return &readCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
	default:
		return f, nil
	}
}

func jsonMember(tr *tar.Reader) (io.Reader, error) {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, errors.New("no json file found in archive")
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag == tar.TypeReg && strings.HasSuffix(header.Name, ".json") {
			return tr, nil
		}
	}
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
