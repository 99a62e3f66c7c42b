package dpkg

import (
	"fmt"
	"os"
	"time"

	"github.com/pop-os/popci/internal/errs"
)

// changelogEntry is the information prepended to debian/changelog ahead of
// a source build.
type changelogEntry struct {
	package_     string
	version      string
	distribution string
	urgency      string
	changes      []string
	author       string
	email        string
	date         time.Time
}

// prependChangelogEntry inserts entry at the top of the changelog file at
// path, in dpkg-changelog format. No changelog-format library exists
// anywhere in the example pack, so this is a small hand-rolled writer
// rather than a wired dependency (see DESIGN.md).
func prependChangelogEntry(path string, entry changelogEntry) error {
	existing, err := os.ReadFile(path)
	if err != nil {
		return &errs.Filesystem{Op: "read", Path: path, Cause: err}
	}

	header := fmt.Sprintf("%s (%s) %s; urgency=%s\n\n", entry.package_, entry.version, entry.distribution, entry.urgency)
	var body string
	for _, change := range entry.changes {
		body += "  " + change + "\n"
	}
	footer := fmt.Sprintf("\n -- %s <%s>  %s\n\n", entry.author, entry.email, entry.date.Format(time.RFC1123Z))

	combined := header + body + footer + string(existing)

	if err := os.WriteFile(path, []byte(combined), 0644); err != nil {
		return &errs.Filesystem{Op: "write", Path: path, Cause: err}
	}
	return nil
}
