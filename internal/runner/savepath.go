package runner

import (
	"path"
	"path/filepath"
	"strings"
)

// ExpandSaveLocation substitutes the save-location template variables.
func ExpandSaveLocation(template, title, year, ratingKey string) string {
	replacer := strings.NewReplacer(
		"{movie_title}", title,
		"{movie_year}", year,
		"{rating_key}", ratingKey,
	)
	return replacer.Replace(template)
}

// sanitizePath strips characters that are unsafe in path components while
// keeping separators and the dots filenames need.
func sanitizePath(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for _, c := range p {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case strings.ContainsRune(" _-/().", c):
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(b.String())
}

// ResolveSavePath turns the configured save-location template into a concrete
// directory and filename. Relative locations are anchored under outputRoot;
// an explicit leading "/output" maps to outputRoot too so container-style
// paths keep working. batchSubfolder inserts a "batch" directory directly
// under the root.
func ResolveSavePath(outputRoot, template, title, year, ratingKey string, batchSubfolder bool, ext string) (dir, filename string) {
	expanded := ExpandSaveLocation(template, title, year, ratingKey)
	safe := sanitizePath(filepath.ToSlash(expanded))

	if path.Ext(safe) != "" {
		dir = path.Dir(safe)
		filename = path.Base(safe)
	} else {
		dir = safe
		name := title
		if name == "" {
			name = ratingKey
		}
		if year != "" {
			name += " (" + year + ")"
		}
		filename = name + ext
	}
	if dir == "." {
		dir = ""
	}

	if strings.HasPrefix(dir, "/output") {
		dir = strings.TrimPrefix(dir, "/output")
	}
	dir = strings.TrimLeft(dir, "/")

	if batchSubfolder {
		dir = path.Join("batch", dir)
	}

	return filepath.Join(outputRoot, filepath.FromSlash(dir)), filename
}
