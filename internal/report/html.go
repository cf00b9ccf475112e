package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BucketLayout names the per-day report directories (year + day of year).
const BucketLayout = "2006002"

// StatusDir receives reports written in status-only mode.
const StatusDir = "status"

//go:embed templates/*.html
var templateFS embed.FS

// Links are the navigation hrefs of a rendered page.
type Links struct {
	// Base prefixes detail page hrefs; empty for relative links.
	Base string
	Prev string
	Next string
}

// Renderer writes reports as HTML.
type Renderer struct {
	Title string

	index *template.Template
	log   *template.Template
}

type indexData struct {
	Title   string
	RunDate string
	RunTime string
	Report  Report
	Links   Links
}

type logData struct {
	Row  Row
	Unit Unit
}

// NewRenderer parses the embedded page templates.
func NewRenderer(title string) (*Renderer, error) {
	if title == "" {
		title = "Job status"
	}
	index, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}
	logPage, err := template.ParseFS(templateFS, "templates/log.html")
	if err != nil {
		return nil, fmt.Errorf("parse log template: %w", err)
	}
	return &Renderer{Title: title, index: index, log: logPage}, nil
}

// Bucket returns the directory name for reports of day t.
func Bucket(t time.Time) string {
	return t.Format(BucketLayout)
}

// RunDate renders t the way page headings and mail subjects show it.
func RunDate(t time.Time) string {
	return fmt.Sprintf("%s (%s)", Bucket(t), t.Format("Mon Jan 02"))
}

// BucketLinks returns relative links to the previous and next day buckets.
func BucketLinks(t time.Time) Links {
	return Links{
		Prev: "../" + Bucket(t.AddDate(0, 0, -1)) + "/index.html",
		Next: "../" + Bucket(t.AddDate(0, 0, 1)) + "/index.html",
	}
}

// RenderIndex writes the summary page of rep.
func (r *Renderer) RenderIndex(w io.Writer, rep Report, links Links) error {
	data := indexData{
		Title:   r.Title,
		RunDate: RunDate(rep.GeneratedAt),
		RunTime: rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
		Report:  rep,
		Links:   links,
	}
	if err := r.index.Execute(w, data); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	return nil
}

// RenderDetail writes the detail page of one row.
func (r *Renderer) RenderDetail(w io.Writer, rep Report, row Row) error {
	if err := r.log.Execute(w, logData{Row: row, Unit: rep.Unit}); err != nil {
		return fmt.Errorf("render %s: %w", row.DetailName, err)
	}
	return nil
}

// MailBody renders the index with detail links rooted at publicURL.
func (r *Renderer) MailBody(rep Report, publicURL string, statusOnly bool) (string, error) {
	base := strings.TrimRight(publicURL, "/")
	if base != "" {
		if statusOnly {
			base += "/" + StatusDir + "/"
		} else {
			base += "/" + Bucket(rep.GeneratedAt) + "/"
		}
	}
	var buf bytes.Buffer
	if err := r.RenderIndex(&buf, rep, Links{Base: base}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Write renders rep under root and returns the directory written. In
// status-only mode the pages go to root/status without day links,
// otherwise to the day bucket of the report.
func (r *Renderer) Write(root string, rep Report, statusOnly bool) (string, error) {
	dir := filepath.Join(root, Bucket(rep.GeneratedAt))
	links := BucketLinks(rep.GeneratedAt)
	if statusOnly {
		dir = filepath.Join(root, StatusDir)
		links = Links{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure report directory: %w", err)
	}

	for _, row := range rep.Rows {
		var buf bytes.Buffer
		if err := r.RenderDetail(&buf, rep, row); err != nil {
			return "", err
		}
		if err := writeFileAtomic(filepath.Join(dir, row.DetailName), buf.Bytes()); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	if err := r.RenderIndex(&buf, rep, links); err != nil {
		return "", err
	}
	if err := writeFileAtomic(filepath.Join(dir, "index.html"), buf.Bytes()); err != nil {
		return "", err
	}
	return dir, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
