// Package bids parses and assembles BIDS-derivatives style filenames.
package bids

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Entities holds the key-value pairs encoded in a BIDS filename plus its suffix.
type Entities struct {
	Subject string
	Session string
	Acq     string
	Dir     string
	Run     string
	Space   string
	Rec     string
	Desc    string
	Suffix  string
}

// ParseFilename extracts BIDS entities from a filename like
// sub-01_ses-1_acq-hires_space-T1w_desc-preproc_dwi.nii.gz.
func ParseFilename(path string) (Entities, error) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}

	var e Entities
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return e, fmt.Errorf("filename %q has no BIDS entities", path)
	}
	e.Suffix = parts[len(parts)-1]

	for _, part := range parts[:len(parts)-1] {
		key, value, found := strings.Cut(part, "-")
		if !found || value == "" {
			return e, fmt.Errorf("malformed BIDS entity %q in %q", part, path)
		}
		switch key {
		case "sub":
			e.Subject = value
		case "ses":
			e.Session = value
		case "acq":
			e.Acq = value
		case "dir":
			e.Dir = value
		case "run":
			e.Run = value
		case "space":
			e.Space = value
		case "rec":
			e.Rec = value
		case "desc":
			e.Desc = value
		}
	}

	if e.Subject == "" {
		return e, fmt.Errorf("filename %q is missing the sub- entity", path)
	}
	return e, nil
}

// Filename rebuilds a BIDS filename from entities, skipping empty ones.
// Entity order follows the BIDS specification.
func (e Entities) Filename(extension string) string {
	var sb strings.Builder
	write := func(key, value string) {
		if value == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte('_')
		}
		sb.WriteString(key)
		sb.WriteByte('-')
		sb.WriteString(value)
	}
	write("sub", e.Subject)
	write("ses", e.Session)
	write("acq", e.Acq)
	write("dir", e.Dir)
	write("run", e.Run)
	write("space", e.Space)
	write("rec", e.Rec)
	write("desc", e.Desc)
	if e.Suffix != "" {
		if sb.Len() > 0 {
			sb.WriteByte('_')
		}
		sb.WriteString(e.Suffix)
	}
	sb.WriteString(extension)
	return sb.String()
}

// StemWithout returns the filename stem up to and including the last entity
// before the given key, used to locate sibling derivatives that drop trailing
// entities (eg *_desc-brain_mask next to *_desc-preproc_dwi).
func StemWithout(path string, key string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	idx := strings.Index(name, key+"-")
	if idx <= 0 {
		return name
	}
	return strings.TrimSuffix(name[:idx], "_")
}
