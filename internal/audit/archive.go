package audit

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// gzipFile compresses path to path+".gz", removes the original, and returns
// the compressed size.
func gzipFile(path string) (int64, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dstPath := path + ".gz"
	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(dstPath)
		return 0, fmt.Errorf("compress: %w", err)
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return 0, err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return 0, err
	}

	info, err := os.Stat(dstPath)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(path); err != nil {
		return info.Size(), fmt.Errorf("remove original: %w", err)
	}
	return info.Size(), nil
}
