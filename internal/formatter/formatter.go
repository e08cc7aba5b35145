// package formatter renders tracked anime lists into export formats.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/shared"
)

// Format is an export output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

const synopsisLimit = 280

// ParseFormat accepts the format names the CLI exposes, including the md and text aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q (json, csv, markdown, txt)", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension used for the format.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return "." + string(f)
}

// Render encodes export in the given format.
func Render(export *models.ListExport, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(export)
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToJSON encodes the export as indented JSON.
func ExportToJSON(export *models.ListExport) ([]byte, error) {
	data, err := shared.MarshalJSON(export, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list export: %w", err)
	}
	return data, nil
}

// ExportToCSV writes one row per tracked item. Catalog columns are added when the export
// carries details.
func ExportToCSV(export *models.ListExport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	enriched := len(export.Details) > 0
	header := []string{"ID", "MAL ID", "Name", "Status", "Rating", "Genres"}
	if enriched {
		header = append(header, "Season", "Studios", "URL")
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, item := range export.Items {
		row := []string{
			item.ID,
			strconv.Itoa(item.ExternalID),
			item.Name,
			string(item.Status),
			item.RatingLabel(),
			item.Genres,
		}
		if enriched {
			if d := export.Details[item.ExternalID]; d != nil {
				row = append(row, d.SeasonLabel(), strings.Join(d.Studios, ", "), d.URL)
			} else {
				row = append(row, "", "", models.PageURL(item.ExternalID))
			}
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown groups the list by status, one section per status with at least one entry.
func ExportToMarkdown(export *models.ListExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", exportTitle(export))
	if !export.ExportedAt.IsZero() {
		fmt.Fprintf(&buf, "**Exported**: %s\n\n", export.ExportedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&buf, "**Entries**: %d\n\n", len(export.Items))

	counts := models.CountByStatus(export.Items)
	for _, status := range models.Statuses {
		if counts[status] == 0 {
			continue
		}

		fmt.Fprintf(&buf, "## %s (%d)\n\n", status.Label(), counts[status])

		n := 0
		for _, item := range export.Items {
			if item.Status != status {
				continue
			}
			n++
			fmt.Fprintf(&buf, "%d. [%s](%s) [%s]", n, item.Name, models.PageURL(item.ExternalID), item.RatingLabel())
			if item.Genres != "" {
				fmt.Fprintf(&buf, " _%s_", item.Genres)
			}
			buf.WriteString("\n")

			if d := export.Details[item.ExternalID]; d != nil {
				writeMarkdownDetails(&buf, d)
			}
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

func writeMarkdownDetails(buf *bytes.Buffer, d *models.AnimeDetails) {
	if season := d.SeasonLabel(); season != "" {
		fmt.Fprintf(buf, "   - Season: %s\n", season)
	}
	if len(d.Studios) > 0 {
		fmt.Fprintf(buf, "   - Studios: %s\n", strings.Join(d.Studios, ", "))
	}
	if synopsis := truncate(d.Synopsis, synopsisLimit); synopsis != "" {
		fmt.Fprintf(buf, "   - %s\n", synopsis)
	}
}

// ExportToText writes a plain listing, one line per entry.
func ExportToText(export *models.ListExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", exportTitle(export))
	fmt.Fprintf(&buf, "Entries: %d\n\n", len(export.Items))

	for i, item := range export.Items {
		fmt.Fprintf(&buf, "%d. %s [%s] (%s)\n", i+1, item.Name, item.Status.Label(), item.RatingLabel())
	}

	return buf.Bytes(), nil
}

// WriteExport renders export and writes it to path, creating parent directories.
//
// An empty path writes anime_list with the format's extension in the working directory.
func WriteExport(export *models.ListExport, format Format, path string) (string, error) {
	data, err := Render(export, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = "anime_list" + format.Extension()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

func exportTitle(export *models.ListExport) string {
	if export.Username == "" {
		return "Anime List"
	}
	return export.Username + "'s Anime List"
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
