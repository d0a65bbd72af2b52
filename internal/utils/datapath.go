package utils

import (
	"path"
	"path/filepath"
	"strings"
)

// DataFolderPlaceholder is the token in a datasource template that stands for
// the root of the data tree on either side of a sync.
const DataFolderPlaceholder = "{data_folder}"

// InfoExt is the extension of the optional metadata companion of a datasource.
const InfoExt = ".info"

// FixPathname normalizes a directory path to forward slashes with exactly one
// trailing slash. The empty string stays empty.
func FixPathname(p string) string {
	p = FixFilename(p)
	if p == "" || strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// FixFilename normalizes separators to forward slashes and collapses repeated
// slashes. A leading double slash (UNC share) and a trailing slash are kept.
func FixFilename(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	prefix := ""
	if strings.HasPrefix(p, "//") {
		prefix, p = "/", p[1:]
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return prefix + p
}

// SubstituteDataFolder replaces every occurrence of the data folder placeholder
// in template with root. A trailing slash on root is dropped so that
// "{data_folder}/x" never yields a double separator.
func SubstituteDataFolder(template, root string) string {
	root = strings.TrimSuffix(FixFilename(root), "/")
	return FixFilename(strings.ReplaceAll(template, DataFolderPlaceholder, root))
}

// InfoCompanion returns template with its extension replaced by ".info".
// A template without extension gets ".info" appended.
func InfoCompanion(template string) string {
	return strings.TrimSuffix(template, path.Ext(template)) + InfoExt
}

// IsInfoCompanion reports whether p names an info companion file.
func IsInfoCompanion(p string) bool {
	return path.Ext(p) == InfoExt
}

// SplitRemote splits a slash separated path into its directory and file name.
// The directory is "." for a bare file name.
func SplitRemote(p string) (dir, name string) {
	p = FixFilename(p)
	return path.Dir(p), path.Base(p)
}

// JoinRemote joins a slash separated directory and name.
func JoinRemote(dir, name string) string {
	if dir == "" {
		return name
	}
	return FixPathname(dir) + strings.TrimPrefix(name, "/")
}

// ToNative converts a slash separated path into the host separator.
func ToNative(p string) string {
	return filepath.FromSlash(p)
}
