package dpkg

import (
	"strings"

	"github.com/pop-os/popci/internal/errs"
)

// dscFields holds the three fields parsed out of a .dsc file: the source
// package name, the upstream-composed version, and the raw Package-List
// block text (one "binary kind section priority arch=..." line per entry).
type dscFields struct {
	source      string
	version     string
	packageList string
}

// parseDsc extracts Source:, Version:, and the Package-List: block from a
// .dsc file's contents.
func parseDsc(dsc string) (dscFields, error) {
	var fields dscFields
	lines := strings.Split(dsc, "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case fields.source == "" && strings.HasPrefix(line, "Source:"):
			fields.source = strings.TrimSpace(strings.TrimPrefix(line, "Source:"))
		case fields.version == "" && strings.HasPrefix(line, "Version:"):
			fields.version = strings.TrimSpace(strings.TrimPrefix(line, "Version:"))
		case fields.packageList == "" && strings.HasPrefix(line, "Package-List:"):
			var entries []string
			for i+1 < len(lines) && strings.HasPrefix(lines[i+1], " ") {
				i++
				entries = append(entries, strings.TrimSpace(lines[i]))
			}
			fields.packageList = strings.Join(entries, "\n")
		}
	}

	if fields.source == "" {
		return dscFields{}, &errs.Parse{What: "dsc", Cause: errMissing("Source")}
	}
	if fields.version == "" {
		return dscFields{}, &errs.Parse{What: "dsc", Cause: errMissing("Version")}
	}
	if fields.packageList == "" {
		return dscFields{}, &errs.Parse{What: "dsc", Cause: errMissing("Package-List")}
	}

	return fields, nil
}

// packageListEntry is one parsed line of the Package-List: block.
type packageListEntry struct {
	binary string
	kind   string
	archs  []string
}

// Each line is "binary kind section priority arch=a,b,c [key=val ...]".
func parsePackageList(packageList string) []packageListEntry {
	var entries []packageListEntry
	for _, line := range strings.Split(packageList, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		archField := strings.TrimPrefix(fields[4], "arch=")
		entries = append(entries, packageListEntry{
			binary: fields[0],
			kind:   fields[1],
			archs:  strings.Split(archField, ","),
		})
	}
	return entries
}

// parseSourceFromControl extracts the first "Source:" field from a
// debian/control file's contents.
func parseSourceFromControl(control string) (string, error) {
	for _, line := range strings.Split(control, "\n") {
		if strings.HasPrefix(line, "Source:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Source:")), nil
		}
	}
	return "", &errs.Parse{What: "control", Cause: errMissing("Source")}
}

type missingFieldError string

func (e missingFieldError) Error() string { return "missing field: " + string(e) }

func errMissing(field string) error { return missingFieldError(field) }
