package mirror

import (
	"bufio"
	"fmt"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/openmined/dbsync/internal/utils"
)

const gzExt = ".gz"

// gunzip decompresses src into dst and gives dst the modification time of src.
func gunzip(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("gunzip %s: %w", src, err)
	}
	defer zr.Close()

	if err := utils.WriteFileFrom(dst, zr); err != nil {
		return fmt.Errorf("gunzip %s: %w", src, err)
	}

	mtime, err := utils.FileModTime(src)
	if err != nil {
		return err
	}
	return utils.SetModTime(dst, mtime)
}
