/*
Package export assembles downloadable archives from generated page artifacts.
*/
package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"

	"github.com/okanyucel2/coloring-book-generator-sub000/types"
)

// Fetcher reads stored artifact bytes by reference
type Fetcher interface {
	Fetch(ref string) ([]byte, bool)
}

// Archive builds a ZIP of every completed page in the job. Pages whose
// artifacts have expired from the store are skipped. Returns the archive
// bytes and the number of pages included.
func Archive(job *types.Job, fetcher Fetcher) ([]byte, int, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	included := 0
	for _, it := range job.Items {
		if it.Status != types.ItemCompleted || it.OutputRef == "" {
			continue
		}
		data, found := fetcher.Fetch(it.OutputRef)
		if !found {
			continue
		}
		f, err := zw.Create(path.Base(it.OutputRef))
		if err != nil {
			zw.Close()
			return nil, 0, fmt.Errorf("create archive entry for %s: %w", it.OutputRef, err)
		}
		if _, err := f.Write(data); err != nil {
			zw.Close()
			return nil, 0, fmt.Errorf("write archive entry for %s: %w", it.OutputRef, err)
		}
		included++
	}

	if err := zw.Close(); err != nil {
		return nil, 0, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), included, nil
}
