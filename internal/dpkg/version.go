package dpkg

import (
	"os"
	"strings"

	"github.com/apex/log"
	"golang.org/x/mod/semver"
)

// logVersionOrdering compares pathVersion for sourceName against whatever
// path versions already sit in sourceDir and logs when this build is newer
// or older than the most recent one found; an equal ordering logs nothing.
// This is advisory
// only (the idempotence check in Source is keyed on file presence, not
// ordering) — grounded on internal/checkupstream's use of golang.org/x/mod/
// semver to compare upstream versions, adapted here to Debian path
// versions via semverish, which is a best-effort mapping: Debian versions
// are not semver, so a failed mapping just skips the log line.
func logVersionOrdering(sourceDir, sourceName, pathVersion string) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return
	}

	prefix := sourceName + "_"
	var newest string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".dsc") {
			continue
		}
		v := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".dsc")
		if v == pathVersion {
			continue
		}
		if newest == "" || compareSemverish(v, newest) > 0 {
			newest = v
		}
	}
	if newest == "" {
		return
	}

	switch compareSemverish(pathVersion, newest) {
	case 1:
		log.WithField("source", sourceName).WithField("version", pathVersion).
			WithField("previous", newest).Debug("building a newer path version")
	case -1:
		log.WithField("source", sourceName).WithField("version", pathVersion).
			WithField("previous", newest).Debug("building an older path version than one already present")
	}
}

// compareSemverish maps two Debian path versions ("1.2.3~1700000000~jammy~abcdef1")
// onto semver.Compare by discarding everything from the first '~' and
// padding the rest to three dot-separated components as the version core,
// returning 0 if either side doesn't then parse as semver (e.g. a Debian
// revision such as "2.3-1" does not).
func compareSemverish(a, b string) int {
	sa, oka := semverishCore(a)
	sb, okb := semverishCore(b)
	if !oka || !okb {
		return 0
	}
	return semver.Compare(sa, sb)
}

func semverishCore(v string) (string, bool) {
	if idx := strings.IndexByte(v, '~'); idx >= 0 {
		v = v[:idx]
	}
	parts := strings.SplitN(v, ".", 3)
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	core := "v" + strings.Join(parts[:3], ".")
	if !semver.IsValid(core) {
		return "", false
	}
	return core, true
}
