// Package index builds the repository database: a gzipped tar with one
// <name>-<version>/desc metadata entry per retained artifact file.
// Regeneration is idempotent over the same file set, so merging is expressed
// as regenerating from the union of old and new entries.
package index

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/megvadulthangya/manjaro-awesome/internal/snapshot"
)

// Entry is the index metadata for one artifact file.
type Entry struct {
	Filename  string
	Name      string
	Version   string
	Arch      string
	CSize     int64
	SHA256    string
	BuildDate int64
}

// FromFile computes an Entry for a local artifact file. The filename must
// follow the artifact naming convention.
func FromFile(filePath string) (Entry, error) {
	base := filepath.Base(filePath)
	art, ok := snapshot.ParseName(base)
	if !ok {
		return Entry{}, fmt.Errorf("%s does not follow the artifact naming convention", base)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return Entry{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return Entry{}, fmt.Errorf("hash artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return Entry{}, fmt.Errorf("stat artifact: %w", err)
	}

	return Entry{
		Filename:  base,
		Name:      art.Name,
		Version:   art.Version.String(),
		Arch:      art.Arch,
		CSize:     size,
		SHA256:    hex.EncodeToString(h.Sum(nil)),
		BuildDate: info.ModTime().Unix(),
	}, nil
}

// Write generates the index at dbPath from the given entries. Entries are
// sorted by filename so the same set always yields the same layout.
func Write(dbPath string, entries []Entry) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	f, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, e := range sorted {
		dir := e.Name + "-" + e.Version
		desc := e.descBody()
		hdr := &tar.Header{
			Name:     dir + "/desc",
			Mode:     0o644,
			Size:     int64(len(desc)),
			ModTime:  time.Unix(e.BuildDate, 0),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write index entry %s: %w", dir, err)
		}
		if _, err := tw.Write([]byte(desc)); err != nil {
			return fmt.Errorf("write index entry %s: %w", dir, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize index: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalize index: %w", err)
	}
	return f.Close()
}

// Read parses an existing index back into entries. Unknown tar members are
// ignored.
func Read(dbPath string) ([]Entry, error) {
	f, err := os.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress index: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var entries []Entry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read index: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || path.Base(hdr.Name) != "desc" {
			continue
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read index entry %s: %w", hdr.Name, err)
		}
		e, err := parseDesc(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse index entry %s: %w", hdr.Name, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Merge combines existing entries with updates. Updates win on filename
// collisions, and entries whose filename is absent from keep are dropped
// (keep nil means keep everything).
func Merge(existing, updates []Entry, keep func(filename string) bool) []Entry {
	byFile := make(map[string]Entry, len(existing)+len(updates))
	for _, e := range existing {
		byFile[e.Filename] = e
	}
	for _, e := range updates {
		byFile[e.Filename] = e
	}

	merged := make([]Entry, 0, len(byFile))
	for name, e := range byFile {
		if keep != nil && !keep(name) {
			continue
		}
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Filename < merged[j].Filename })
	return merged
}

func (e Entry) descBody() string {
	var b strings.Builder
	field := func(key, value string) {
		fmt.Fprintf(&b, "%%%s%%\n%s\n\n", key, value)
	}
	field("FILENAME", e.Filename)
	field("NAME", e.Name)
	field("VERSION", e.Version)
	field("ARCH", e.Arch)
	field("CSIZE", fmt.Sprintf("%d", e.CSize))
	field("SHA256SUM", e.SHA256)
	field("BUILDDATE", fmt.Sprintf("%d", e.BuildDate))
	return b.String()
}

func parseDesc(body string) (Entry, error) {
	fields := make(map[string]string)
	var key string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			key = ""
			continue
		}
		if strings.HasPrefix(line, "%") && strings.HasSuffix(line, "%") {
			key = strings.Trim(line, "%")
			continue
		}
		if key != "" && fields[key] == "" {
			fields[key] = line
		}
	}

	if fields["FILENAME"] == "" || fields["NAME"] == "" || fields["VERSION"] == "" {
		return Entry{}, fmt.Errorf("desc missing required fields")
	}
	e := Entry{
		Filename: fields["FILENAME"],
		Name:     fields["NAME"],
		Version:  fields["VERSION"],
		Arch:     fields["ARCH"],
		SHA256:   fields["SHA256SUM"],
	}
	fmt.Sscanf(fields["CSIZE"], "%d", &e.CSize)
	fmt.Sscanf(fields["BUILDDATE"], "%d", &e.BuildDate)
	return e, nil
}
