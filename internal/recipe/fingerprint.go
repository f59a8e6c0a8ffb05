package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Fingerprint computes a digest over the recipe content in dir: the PKGBUILD
// plus any install scripts, patches and other local source files, hashed in
// sorted relative-path order so the result is deterministic. Two recipes with
// the same fingerprint build the same artifacts regardless of what version
// string they declare.
func Fingerprint(dir string) (string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !fingerprintRelevant(info.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan recipe %s: %w", dir, err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("recipe %s has no fingerprintable files", dir)
	}
	sort.Strings(files)

	h := sha256.New()
	for _, rel := range files {
		// Path goes into the digest so renames change the fingerprint.
		fmt.Fprintf(h, "%s\x00", filepath.ToSlash(rel))
		f, err := os.Open(filepath.Join(dir, rel))
		if err != nil {
			return "", fmt.Errorf("open %s: %w", rel, err)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", rel, err)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// fingerprintRelevant reports whether a file participates in the recipe
// fingerprint. Build byproducts and downloaded sources are excluded.
func fingerprintRelevant(name string) bool {
	if name == "PKGBUILD" || name == ".SRCINFO" {
		return true
	}
	for _, suffix := range []string{".install", ".patch", ".diff", ".desktop", ".service", ".conf", ".sh"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
