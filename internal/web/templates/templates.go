// Package templates renders the HTML report pages.
package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

const pageHead = `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`

// ReportIndex lists every report with a link to its table.
func ReportIndex(specs []core.ReportSpec) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return writeAll(w,
			pageHead, "Reports</title></head><body><main><h1>Reports</h1><ul>",
			func(w io.Writer) error {
				for _, spec := range specs {
					if _, err := fmt.Fprintf(w, `<li><a href="%s">%s</a></li>`,
						reportHref(spec.Name), templ.EscapeString(spec.Name)); err != nil {
						return err
					}
				}
				return nil
			},
			"</ul></main></body></html>",
		)
	})
}

// reportHref builds the attribute-safe link to a report page.
func reportHref(name string) string {
	return templ.EscapeString(string(templ.URL("/reports/" + url.PathEscape(name))))
}

// ReportTable renders a report as a two-column table with a total row.
func ReportTable(report *core.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		name := templ.EscapeString(report.Name)
		return writeAll(w,
			pageHead, name, "</title></head><body><main>",
			"<h1>", name, "</h1>",
			`<table><thead><tr><th>`, templ.EscapeString(report.KeyLabel), `</th><th>count</th></tr></thead><tbody>`,
			func(w io.Writer) error {
				for _, row := range report.Rows {
					key := "<em>none</em>"
					if row.Key != nil {
						key = templ.EscapeString(*row.Key)
					}
					if _, err := fmt.Fprintf(w, "<tr><td>%s</td><td>%d</td></tr>", key, row.Count); err != nil {
						return err
					}
				}
				return nil
			},
			"</tbody><tfoot><tr><th>total</th><th>", strconv.FormatInt(report.Total(), 10), "</th></tr></tfoot></table>",
			"</main></body></html>",
		)
	})
}

// ErrorAlert renders a coded error message.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parts := []any{
			`<div class="alert alert-error" role="alert"><p><strong>`, templ.EscapeString(message), `</strong>`,
		}
		if code != "" {
			parts = append(parts, ` <code>`, templ.EscapeString(code), `</code>`)
		}
		parts = append(parts, `</p>`)
		if action != "" {
			parts = append(parts, `<p>`, templ.EscapeString(action), `</p>`)
		}
		parts = append(parts, `</div>`)
		return writeAll(w, parts...)
	})
}

// writeAll writes strings and runs nested writers in order.
func writeAll(w io.Writer, parts ...any) error {
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			if _, err := io.WriteString(w, v); err != nil {
				return err
			}
		case func(io.Writer) error:
			if err := v(w); err != nil {
				return err
			}
		}
	}
	return nil
}
