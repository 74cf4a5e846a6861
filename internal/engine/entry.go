package engine

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"
)

// EntryType distinguishes regular files from directories inside an archive.
type EntryType string

const (
	EntryTypeFile      EntryType = "file"
	EntryTypeDirectory EntryType = "directory"
)

const (
	DefaultFileMode      fs.FileMode = 0644
	DefaultDirectoryMode fs.FileMode = 0755
)

// EntryMetadata describes one archive entry. Name and Date are always set
// once the metadata went through NormalizeMetadata.
type EntryMetadata struct {
	Name    string
	Date    time.Time
	Mode    fs.FileMode
	Type    EntryType
	Comment string
}

// IsDir reports whether the entry is a directory.
func (m EntryMetadata) IsDir() bool {
	return m.Type == EntryTypeDirectory
}

// Entry pairs metadata with the bytes to store under it.
type Entry struct {
	Metadata EntryMetadata
	Source   Source
}

var drivePrefix = regexp.MustCompile(`^\w+:`)

// SanitizePath turns name into a relative, slash separated archive path.
// Backslashes become slashes, drive prefixes and leading slashes are removed
// and ".." segments cannot climb above the archive root. An empty result
// means the name is unusable.
func SanitizePath(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = drivePrefix.ReplaceAllString(name, "")
	if strings.TrimSpace(name) == "" {
		return ""
	}

	cleaned := strings.TrimPrefix(path.Clean("/"+name), "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// NormalizeMetadata sanitizes the name and fills in defaults. A name ending
// in a slash marks a directory when no type was given. now supplies the date
// for entries that have none.
func NormalizeMetadata(meta EntryMetadata, now func() time.Time) (EntryMetadata, error) {
	raw := meta.Name
	meta.Name = SanitizePath(raw)
	if meta.Name == "" {
		return EntryMetadata{}, fmt.Errorf("%w: %q", ErrInvalidEntryName, raw)
	}

	if meta.Type == "" {
		meta.Type = EntryTypeFile
		if strings.HasSuffix(strings.ReplaceAll(raw, `\`, "/"), "/") {
			meta.Type = EntryTypeDirectory
		}
	}

	if meta.Mode == 0 {
		meta.Mode = DefaultFileMode
		if meta.IsDir() {
			meta.Mode = DefaultDirectoryMode
		}
	}

	if meta.Date.IsZero() {
		meta.Date = now()
	}

	return meta, nil
}
