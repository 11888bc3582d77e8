package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const LogSubDir = "ioctest"

// LogFilename builds the deterministic per-test, per-device log file path
// <varDir>/logs/ioctest/<test>_<tag>_<id>_<mode>.log and makes sure its
// directory exists.
func LogFilename(testName, tag, id string, mode fmt.Stringer, varDir string) (string, error) {
	dir := filepath.Join(varDir, "logs", LogSubDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create log directory %s: %w", dir, err)
	}

	name := strings.Join([]string{
		sanitizeLogPart(testName),
		tag,
		sanitizeLogPart(id),
		strings.ToLower(mode.String()),
	}, "_")
	return filepath.Join(dir, name+".log"), nil
}

func sanitizeLogPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, s)
}

// ArchiveLog gzips path into path+".gz" and removes the original. The archive
// path is returned.
func ArchiveLog(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func(src *os.File) {
		_ = src.Close()
	}(src)

	archivePath := path + ".gz"
	dst, err := os.Create(archivePath)
	if err != nil {
		return "", err
	}

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(path)
	if _, err = io.Copy(zw, src); err != nil {
		_ = zw.Close()
		_ = dst.Close()
		return "", fmt.Errorf("could not compress %s: %w", path, err)
	}
	if err = zw.Close(); err != nil {
		_ = dst.Close()
		return "", err
	}
	if err = dst.Close(); err != nil {
		return "", err
	}

	_ = src.Close()
	if err = os.Remove(path); err != nil {
		return "", err
	}
	return archivePath, nil
}
