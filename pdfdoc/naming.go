package pdfdoc

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultSuffix   = "_bordered"
	TimestampLayout = "20060102_150405"
)

func stem(path string) (string, string) {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".pdf"
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), ext
}

// OutputPath names the processed copy of input:
// <stem><suffix>[_YYYYmmdd_HHMMSS].pdf in outDir, or next to input when
// outDir is empty.
func OutputPath(input, outDir, suffix string, timestamp bool, now time.Time) string {
	dir := filepath.Dir(input)
	if outDir != "" {
		dir = outDir
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	name, ext := stem(input)
	name += suffix
	if timestamp {
		name += "_" + now.Format(TimestampLayout)
	}
	return filepath.Join(dir, name+ext)
}

func BackupPath(input string) string {
	return backupIn(input, filepath.Dir(input))
}

func backupIn(input, dir string) string {
	name, ext := stem(input)
	return filepath.Join(dir, name+"_backup"+ext)
}

// Backup copies input to BackupPath(input) and returns that path.
func Backup(input string) (string, error) {
	return BackupTo(input, filepath.Dir(input))
}

// BackupTo is Backup with the copy placed in dir.
func BackupTo(input, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := backupIn(input, dir)
	in, err := os.Open(input)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	return dst, out.Close()
}
