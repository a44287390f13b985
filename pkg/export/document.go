package export

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
)

// Table is a uniform-shaped block of rows inside a section.
type Table struct {
	KeyHeader string
	Fields    []string
	Rows      []domain.MetricRow
}

// Section is one rendered report section. Degraded sections carry a
// placeholder instead of data and never abort the document.
type Section struct {
	ID          string
	Title       string
	Type        domain.SectionType
	Degraded    bool
	Placeholder string
	Narrative   string
	Summary     map[string]string
	Table       *Table
}

// Cover is the optional branded cover page.
type Cover struct {
	Title           string
	Branding        string
	Confidentiality string
	GeneratedAt     time.Time
}

// Document is the assembled, format-independent report: an ordered
// sequence of sections plus an optional cover page.
type Document struct {
	Title    string
	Period   domain.Period
	Cover    *Cover
	Sections []Section
}

// Artifact is one serialized export of a document.
type Artifact struct {
	Format      domain.ExportFormat
	ContentType string
	Filename    string
	Data        []byte
}

var contentTypes = map[domain.ExportFormat]string{
	domain.FormatCSV:        "text/csv",
	domain.FormatPDF:        "application/pdf",
	domain.FormatExcel:      "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	domain.FormatPowerPoint: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

var extensions = map[domain.ExportFormat]string{
	domain.FormatCSV:        "csv",
	domain.FormatPDF:        "pdf",
	domain.FormatExcel:      "xlsx",
	domain.FormatPowerPoint: "pptx",
}

// ContentType returns the MIME type for a format, or octet-stream for
// one the renderer does not know.
func ContentType(format domain.ExportFormat) string {
	if ct, ok := contentTypes[format]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Renderer serializes documents. Rendering is pure over the collected
// data; it performs no I/O of its own.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render serializes the document into the requested format.
func (r *Renderer) Render(doc Document, format domain.ExportFormat) (Artifact, error) {
	ct, ok := contentTypes[format]
	if !ok {
		return Artifact{}, fmt.Errorf("unsupported export format: %s", format)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case domain.FormatCSV:
		data, err = r.renderCSV(doc)
	default:
		data, err = r.renderDocument(doc, format)
	}
	if err != nil {
		return Artifact{}, err
	}

	return Artifact{
		Format:      format,
		ContentType: ct,
		Filename:    fmt.Sprintf("%s.%s", slug(doc.Title), extensions[format]),
		Data:        data,
	}, nil
}

// renderCSV exports the first tabular section; the CSV shape carries a
// single uniform table, not a multi-section layout.
func (r *Renderer) renderCSV(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	for _, s := range doc.Sections {
		if s.Table == nil || s.Degraded {
			continue
		}
		err := WriteCSV(&buf, s.Table.KeyHeader, s.Table.Fields, s.Table.Rows)
		return buf.Bytes(), err
	}
	return nil, fmt.Errorf("document has no tabular section to export as csv")
}

// documentTmpl lays the assembled sections out as the paginated document
// shape shared by pdf, excel and powerpoint exports.
var documentTmpl = template.Must(template.New("document").Funcs(template.FuncMap{
	"value": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
}).Parse(`{{- with .Cover -}}
===== {{.Title}} =====
{{if .Branding}}{{.Branding}}
{{end}}{{if .Confidentiality}}Confidentiality: {{.Confidentiality}}
{{end}}Generated: {{.GeneratedAt.Format "2006-01-02 15:04"}}

{{end -}}
Report: {{.Title}}
Period: {{.Period.Start}} to {{.Period.End}}
{{range .Sections}}
## {{.Title}}
{{- if .Degraded}}
[data unavailable] {{.Placeholder}}
{{- else}}
{{- if .Narrative}}
{{.Narrative}}
{{- end}}
{{- range $k, $v := .Summary}}
{{$k}}: {{$v}}
{{- end}}
{{- with .Table}}
{{.KeyHeader}}{{range .Fields}} | {{.}}{{end}}
{{- $fields := .Fields}}
{{- range .Rows}}
{{- $row := .}}
{{$row.Key}}{{range $fields}} | {{value (index $row.Fields .)}}{{end}}
{{- end}}
{{- end}}
{{- end}}
{{end -}}
`))

func (r *Renderer) renderDocument(doc Document, format domain.ExportFormat) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render %s document: %w", format, err)
	}
	return buf.Bytes(), nil
}

func slug(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "report"
	}
	return string(out)
}
