// ABOUTME: Embedded HTML document shell wrapping converted report bodies
// ABOUTME: Keeps persisted .html exports self-contained and browser-readable

package export

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
)

//go:embed templates/report.html
var reportShellSrc string

var reportShell = template.Must(template.New("report").Parse(reportShellSrc))

type shellData struct {
	Title string
	Body  template.HTML
}

// renderHTMLDocument wraps an already-converted HTML body in the embedded
// document shell. The body is trusted output of the markdown converter, not
// user input, so it goes in unescaped.
func renderHTMLDocument(title, body string) (string, error) {
	var buf bytes.Buffer
	if err := reportShell.Execute(&buf, shellData{Title: title, Body: template.HTML(body)}); err != nil {
		return "", fmt.Errorf("rendering document shell: %w", err)
	}
	return buf.String(), nil
}
