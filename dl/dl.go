// Package dl fetches the map renderer distribution.
package dl

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrChecksumMismatch = errors.New("checksum mismatch")

var client = &http.Client{Timeout: 5 * time.Minute}

// Ensure downloads url to dst unless dst already exists. It reports whether a
// download happened.
func Ensure(url, sha1sum, dst string) (bool, error) {
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	if err := Get(url, sha1sum, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Get downloads url into dst. When sha1sum is set the download is verified
// before dst is created.
func Get(url, sha1sum, dst string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	err = os.MkdirAll(filepath.Dir(dst), os.ModePerm)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	hash := sha1.New()
	_, err = io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if sha1sum != "" {
		got := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(got, sha1sum) {
			return fmt.Errorf("%w: %s: got %s, want %s", ErrChecksumMismatch, url, got, sha1sum)
		}
	}

	return os.Rename(tmp.Name(), dst)
}
