package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Sample is one raw image record read from a shard. The tar entry name
// encodes the image id: <imageID>.jpg / .jpeg / .png.
type Sample struct {
	ID    int64
	Image []byte
}

// StreamShard streams image samples from the shard at path. Entries whose
// base name does not parse as an integer id are reported as errors; entries
// with unknown extensions are skipped.
func StreamShard(ctx context.Context, path string) (<-chan Sample, <-chan error) {
	out := make(chan Sample)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- errors.Wrap(err, "open shard")
			return
		}
		defer f.Close()

		tr := tar.NewReader(bufio.NewReader(f))
		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- errors.Wrap(err, "read tar")
				return
			}
			if hdr.FileInfo().IsDir() {
				continue
			}
			name := filepath.Base(hdr.Name)
			ext := strings.ToLower(filepath.Ext(name))
			switch ext {
			case ".jpg", ".jpeg", ".png":
			default:
				continue
			}
			id, err := strconv.ParseInt(strings.TrimSuffix(name, ext), 10, 64)
			if err != nil {
				errCh <- errors.Wrapf(err, "parse image id from %s", name)
				return
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				errCh <- errors.Wrapf(err, "read image %s", name)
				return
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Sample{ID: id, Image: data}:
			}
		}
	}()

	return out, errCh
}
