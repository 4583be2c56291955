package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo summarizes an artifact pair for `codecorpus verify`.
type StatusInfo struct {
	IndexPath    string    `json:"index_path"`
	MetadataPath string    `json:"metadata_path"`
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	RootDir      string    `json:"root_dir"`

	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	IndexKind  string `json:"index_kind"`
	Metric     string `json:"metric"`
	Unit       string `json:"unit"`
	ChunkSize  int    `json:"chunk_size"`
	Overlap    int    `json:"overlap"`

	Vectors int `json:"vectors"`
	Records int `json:"records"`
	Files   int `json:"files"`

	IndexSize    int64 `json:"index_size"`
	MetadataSize int64 `json:"metadata_size"`

	// Status is "consistent" or "inconsistent".
	Status string   `json:"status"`
	Issues []string `json:"issues,omitempty"`
}

// StatusRenderer displays corpus status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Corpus: "+info.IndexPath))

	_, _ = fmt.Fprintf(r.out, "  Status:     %s\n", r.renderStatus(info.Status))
	for _, issue := range info.Issues {
		_, _ = fmt.Fprintf(r.out, "    - %s\n", issue)
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Vectors:    %d\n", info.Vectors)
	_, _ = fmt.Fprintf(r.out, "  Records:    %d\n", info.Records)
	_, _ = fmt.Fprintf(r.out, "  Files:      %d\n", info.Files)
	if !info.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Built:      %s\n", formatTime(info.CreatedAt))
	}
	if info.RootDir != "" {
		_, _ = fmt.Fprintf(r.out, "  Source:     %s\n", info.RootDir)
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Chunking:")
	_, _ = fmt.Fprintf(r.out, "    Unit:     %s\n", info.Unit)
	_, _ = fmt.Fprintf(r.out, "    Size:     %d (overlap %d)\n", info.ChunkSize, info.Overlap)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Index:")
	_, _ = fmt.Fprintf(r.out, "    Kind:     %s (%s)\n", info.IndexKind, info.Metric)
	_, _ = fmt.Fprintf(r.out, "    Model:    %s (%d dims)\n", info.Model, info.Dimensions)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Index:    %s\n", FormatBytes(info.IndexSize))
	_, _ = fmt.Fprintf(r.out, "    Metadata: %s (%s)\n", FormatBytes(info.MetadataSize), info.MetadataPath)

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "consistent":
		return r.styles.Success.Render(status)
	case "inconsistent":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
