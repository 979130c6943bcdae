// Package report summarizes a collected dataset.
package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"sort"
	"text/template"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/FranksOps/dugout/internal/storage"
)

// Count is one bucket of a breakdown.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary contains aggregated figures about a set of records.
type Summary struct {
	TotalRecords     int       `json:"total_records"`
	Posts            int       `json:"posts"`
	Replies          int       `json:"replies"`
	AnonymousAuthors int       `json:"anonymous_authors"`
	Duplicates       int       `json:"duplicates"`
	AvgCharLen       float64   `json:"avg_char_len"`
	Earliest         time.Time `json:"earliest"`
	Latest           time.Time `json:"latest"`
	Span             string    `json:"span"`
	Forums           []Count   `json:"forums"`
	Keywords         []Count   `json:"keywords"`
}

// GenerateSummary aggregates records. Breakdowns are ordered by count, then
// name.
func GenerateSummary(records []*storage.Record) Summary {
	var s Summary
	if len(records) == 0 {
		return s
	}

	forums := map[string]int{}
	kws := map[string]int{}
	keys := make(map[storage.Key]struct{}, len(records))
	chars := 0

	s.Earliest = records[0].CreatedAt
	s.Latest = records[0].CreatedAt

	for _, r := range records {
		s.TotalRecords++
		switch r.Source {
		case storage.SourcePost:
			s.Posts++
		case storage.SourceReply:
			s.Replies++
		}
		if r.Author == nil {
			s.AnonymousAuthors++
		}
		if _, dup := keys[r.Key()]; dup {
			s.Duplicates++
		} else {
			keys[r.Key()] = struct{}{}
		}
		chars += r.TextLen()
		forums[r.Forum]++
		kws[r.MatchedKeyword]++

		if r.CreatedAt.Before(s.Earliest) {
			s.Earliest = r.CreatedAt
		}
		if r.CreatedAt.After(s.Latest) {
			s.Latest = r.CreatedAt
		}
	}

	s.AvgCharLen = float64(chars) / float64(s.TotalRecords)
	s.Span = s.Latest.Sub(s.Earliest).String()
	s.Forums = ranked(forums)
	s.Keywords = ranked(kws)
	return s
}

func ranked(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Top returns at most n buckets. n <= 0 returns all of them.
func Top(counts []Count, n int) []Count {
	if n <= 0 || n >= len(counts) {
		return counts
	}
	return counts[:n]
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Dugout Dataset Summary
----------------------
Records:       {{.TotalRecords}} ({{.Posts}} posts, {{.Replies}} replies)
Duplicates:    {{.Duplicates}}
No author:     {{.AnonymousAuthors}}
Avg length:    {{printf "%.1f" .AvgCharLen}} chars
{{- if .TotalRecords}}
Created:       {{.Earliest.Format "2006-01-02 15:04:05"}} - {{.Latest.Format "2006-01-02 15:04:05"}} ({{.Span}})
{{- end}}

Forums:
{{- range .Forums}}
  {{.Name}}: {{.Count}}
{{- else}}
  None
{{- end}}

Keywords:
{{- range .Keywords}}
  {{.Name}}: {{.Count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}

	return nil
}

// WriteTable renders the forum and keyword breakdowns as bordered tables,
// each limited to the top n rows.
func WriteTable(w io.Writer, summary Summary, n int) error {
	for _, section := range []struct {
		title  string
		counts []Count
	}{
		{"Forum", Top(summary.Forums, n)},
		{"Keyword", Top(summary.Keywords, n)},
	} {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"#", section.title, "Records"})
		for i, c := range section.counts {
			t.AppendRow(table.Row{i + 1, c.Name, c.Count})
		}
		t.AppendFooter(table.Row{"", "Total", summary.TotalRecords})
		t.Render()
	}
	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Dugout Dataset Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Dugout Dataset Report</h1>
  {{- if .TotalRecords}}
  <p><strong>Created:</strong> {{.Earliest.Format "2006-01-02 15:04:05"}} to {{.Latest.Format "2006-01-02 15:04:05"}} ({{.Span}})</p>
  {{- end}}

  <div class="stat-card">
    <div>Records</div>
    <div class="stat-val">{{.TotalRecords}}</div>
  </div>
  <div class="stat-card">
    <div>Posts</div>
    <div class="stat-val">{{.Posts}}</div>
  </div>
  <div class="stat-card">
    <div>Replies</div>
    <div class="stat-val">{{.Replies}}</div>
  </div>
  <div class="stat-card">
    <div>Duplicates</div>
    <div class="stat-val" style="color: {{if gt .Duplicates 0}}red{{else}}green{{end}};">{{.Duplicates}}</div>
  </div>

  <h3>Forums</h3>
  <table>
    <tr><th>Forum</th><th>Records</th></tr>
    {{- range .Forums}}
    <tr><td>{{.Name}}</td><td>{{.Count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Keywords</h3>
  <table>
    <tr><th>Keyword</th><th>Records</th></tr>
    {{- range .Keywords}}
    <tr><td>{{.Name}}</td><td>{{.Count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}
