package apt

import "text/template"

// releaseTmpl renders a per-directory Release file.
var releaseTmpl = template.Must(template.New("release").Parse(
	`Archive: {{.Codename}}
Version: {{.Version}}
Component: main
Origin: {{.Context}}-{{.Pocket}}
Label: {{.Description}} {{.Pocket}}
Architecture: {{.Arch}}
`))

type releaseFields struct {
	Arch        string
	Context     string
	Description string
	Codename    string
	Version     string
	Pocket      string
}
