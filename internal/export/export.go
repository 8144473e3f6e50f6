// Package export renders read-only prompt records into portable formats.
// Exporters are stateless transforms; they never touch the store or index.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/stellarlinkco/prompt-mini/internal/store"
)

// Format names a supported output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
)

// ParseFormat resolves a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csv":
		return FormatCSV, nil
	case "txt", "text":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", name)
	}
}

// Write renders prompts in the given format.
func Write(w io.Writer, format Format, prompts []*store.Prompt) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, prompts)
	case FormatText:
		return writeText(w, prompts)
	case FormatMarkdown:
		return writeMarkdown(w, prompts)
	case FormatJSON:
		return writeJSON(w, prompts)
	default:
		return fmt.Errorf("export: unknown format %q", format)
	}
}

func writeCSV(w io.Writer, prompts []*store.Prompt) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "title", "body", "purpose", "tags", "session_ref", "notes", "created", "modified"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for _, p := range prompts {
		if p == nil {
			continue
		}
		rec := []string{
			p.ID,
			p.Title,
			p.Body,
			p.Purpose,
			strings.Join(p.Tags, ","),
			p.SessionRef,
			p.Notes,
			p.Created.Format(time.RFC3339),
			p.Modified.Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush csv: %w", err)
	}
	return nil
}

func writeText(w io.Writer, prompts []*store.Prompt) error {
	for i, p := range prompts {
		if p == nil {
			continue
		}
		if i > 0 {
			if _, err := io.WriteString(w, "\n"+strings.Repeat("-", 60)+"\n\n"); err != nil {
				return fmt.Errorf("export: write text: %w", err)
			}
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Title: %s\n", p.Title)
		if p.Purpose != "" {
			fmt.Fprintf(&sb, "Purpose: %s\n", p.Purpose)
		}
		if len(p.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(p.Tags, ", "))
		}
		fmt.Fprintf(&sb, "Modified: %s\n\n", p.Modified.Format(time.RFC3339))
		sb.WriteString(p.Body)
		sb.WriteString("\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return fmt.Errorf("export: write text: %w", err)
		}
	}
	return nil
}

func writeMarkdown(w io.Writer, prompts []*store.Prompt) error {
	for _, p := range prompts {
		if p == nil {
			continue
		}
		var sb strings.Builder
		title := p.Title
		if title == "" {
			title = p.ID
		}
		fmt.Fprintf(&sb, "## %s\n\n", title)
		if p.Purpose != "" {
			fmt.Fprintf(&sb, "*%s*\n\n", p.Purpose)
		}
		if len(p.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags: `%s`\n\n", strings.Join(p.Tags, "` `"))
		}
		fmt.Fprintf(&sb, "```\n%s\n```\n\n", p.Body)
		if p.Notes != "" {
			fmt.Fprintf(&sb, "> %s\n\n", p.Notes)
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return fmt.Errorf("export: write markdown: %w", err)
		}
	}
	return nil
}

func writeJSON(w io.Writer, prompts []*store.Prompt) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if prompts == nil {
		prompts = []*store.Prompt{}
	}
	if err := enc.Encode(prompts); err != nil {
		return fmt.Errorf("export: write json: %w", err)
	}
	return nil
}
