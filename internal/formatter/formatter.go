// package formatter renders movies, playlists and profiles as plain text, Markdown, CSV and JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/shared"
)

const dateLayout = "Jan 2, 2006"

// BaseName returns the default file name stem for a playlist export.
func BaseName(p models.Playlist) string {
	return fmt.Sprintf("playlist_%d", p.ID)
}

// Rating renders a vote average on a ten point scale, or "-" when nobody voted.
func Rating(m models.Movie) string {
	if m.VoteCount == 0 && m.VoteAverage == 0 {
		return "-"
	}
	return strconv.FormatFloat(m.VoteAverage, 'f', 1, 64) + "/10"
}

// MoviesText renders one page of catalog results as a numbered list.
func MoviesText(movies []models.Movie, page, totalPages int) []byte {
	var buf bytes.Buffer

	if len(movies) == 0 {
		buf.WriteString("No movies found.\n")
		return buf.Bytes()
	}

	offset := 0
	if page > 1 {
		offset = (page - 1) * len(movies)
	}
	for i, m := range movies {
		fmt.Fprintf(&buf, "%3d. %s", offset+i+1, m.Title)
		if year := m.Year(); year != "" {
			fmt.Fprintf(&buf, " (%s)", year)
		}
		fmt.Fprintf(&buf, "  ★ %s  [id %d]\n", Rating(m), m.ID)
	}
	if totalPages > 0 {
		fmt.Fprintf(&buf, "\nPage %d of %d\n", max(page, 1), totalPages)
	}
	return buf.Bytes()
}

// MovieText renders the detail view of a single movie.
func MovieText(m *models.Movie) []byte {
	var buf bytes.Buffer

	title := m.Title
	if year := m.Year(); year != "" {
		title = fmt.Sprintf("%s (%s)", title, year)
	}
	buf.WriteString(title + "\n")
	buf.WriteString(strings.Repeat("=", len([]rune(title))) + "\n")

	if m.Tagline != "" {
		fmt.Fprintf(&buf, "%s\n", m.Tagline)
	}
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "Rating:  %s (%d votes)\n", Rating(*m), m.VoteCount)
	if rt := models.FormatRuntime(m.Runtime); rt != "" {
		fmt.Fprintf(&buf, "Runtime: %s\n", rt)
	}
	if genres := m.GenreNames(", "); genres != "" {
		fmt.Fprintf(&buf, "Genres:  %s\n", genres)
	}
	if m.ReleaseDate != "" {
		fmt.Fprintf(&buf, "Release: %s\n", m.ReleaseDate)
	}
	if m.IMDbID != "" {
		fmt.Fprintf(&buf, "IMDb:    %s\n", m.IMDbID)
	}
	if poster := m.PosterURL(); poster != "" {
		fmt.Fprintf(&buf, "Poster:  %s\n", poster)
	}

	if m.Overview != "" {
		fmt.Fprintf(&buf, "\n%s\n", m.Overview)
	}
	return buf.Bytes()
}

// ProfileText renders a profile alongside the identity it belongs to. Either may be nil.
func ProfileText(p *models.Profile, id *models.Identity) []byte {
	var buf bytes.Buffer

	if p == nil && id == nil {
		buf.WriteString("Not signed in.\n")
		return buf.Bytes()
	}

	if p != nil {
		fmt.Fprintf(&buf, "Username: %s\n", p.Username)
	} else {
		buf.WriteString("Username: (no profile yet)\n")
	}

	email := ""
	if id != nil {
		email = id.Email
	}
	if email == "" && p != nil {
		email = p.Email
	}
	if email != "" {
		fmt.Fprintf(&buf, "Email:    %s\n", email)
	}
	if id != nil {
		verified := "no"
		if id.EmailVerified {
			verified = "yes"
		}
		fmt.Fprintf(&buf, "Verified: %s\n", verified)
	}
	if p != nil && !p.CreatedAt.IsZero() {
		fmt.Fprintf(&buf, "Joined:   %s\n", p.CreatedAt.Format(dateLayout))
	}
	fmt.Fprintf(&buf, "Avatar:   %s\n", models.AvatarURL(p, id))
	return buf.Bytes()
}

// PlaylistsText renders a playlist listing, one line per playlist.
func PlaylistsText(playlists []models.Playlist) []byte {
	var buf bytes.Buffer

	if len(playlists) == 0 {
		buf.WriteString("No playlists yet.\n")
		return buf.Bytes()
	}

	for _, p := range playlists {
		fmt.Fprintf(&buf, "%5d  %s (%d movies)", p.ID, p.Name, p.MovieCount)
		if p.User != nil && p.User.Username != "" {
			fmt.Fprintf(&buf, " by %s", p.User.Username)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// ExportToCSV converts a PlaylistExport to CSV with columns: ID, IMDb ID, Title, Year, Runtime, Rating, Genres
func ExportToCSV(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "IMDb ID", "Title", "Year", "Runtime", "Rating", "Genres"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range export.Movies {
		record := []string{
			strconv.Itoa(m.ID),
			m.IMDbID,
			m.Title,
			m.Year(),
			strconv.Itoa(m.Runtime),
			strconv.FormatFloat(m.VoteAverage, 'f', 1, 64),
			m.GenreNames("|"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to Markdown with an optional cover image
func ExportToMarkdown(export *models.PlaylistExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}

	fmt.Fprintf(&buf, "**Movies**: %d\n", len(export.Movies))
	if owner := export.Playlist.User; owner != nil && owner.Username != "" {
		fmt.Fprintf(&buf, "**Curator**: %s\n", owner.Username)
	}
	if !export.Playlist.CreatedAt.IsZero() {
		fmt.Fprintf(&buf, "**Created**: %s\n", export.Playlist.CreatedAt.Format(dateLayout))
	}
	buf.WriteString("\n## Movies\n\n")

	for i, m := range export.Movies {
		year := ""
		if y := m.Year(); y != "" {
			year = fmt.Sprintf(" (%s)", y)
		}
		runtime := ""
		if rt := models.FormatRuntime(m.Runtime); rt != "" {
			runtime = " · " + rt
		}
		fmt.Fprintf(&buf, "%d. **%s**%s ★ %s%s\n", i+1, m.Title, year, Rating(m), runtime)
	}

	if len(export.Missing) > 0 {
		buf.WriteString("\n## Unavailable\n\n")
		for _, ref := range export.Missing {
			fmt.Fprintf(&buf, "- %s\n", ref.IMDbID)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text
func ExportToText(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Movies: %d\n\n", len(export.Movies))

	for i, m := range export.Movies {
		if year := m.Year(); year != "" {
			fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, m.Title, year)
		} else {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, m.Title)
		}
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without movie references)
func ToMetadataJSON(playlist models.Playlist) ([]byte, error) {
	playlist.Movies = nil
	return shared.MarshalJSON(playlist, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	MoviesFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV with an accompanying metadata JSON file.
//
// Defaults to [BaseName] as the base path & creates {base}_movies.csv and {base}_metadata.json
func WriteCSVExport(export *models.PlaylistExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = BaseName(export.Playlist)
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	moviesFile := baseFilepath + "_movies.csv"
	if err := os.WriteFile(moviesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export.Playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{MoviesFile: moviesFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// ImageFetcher downloads the bytes behind an image URL.
type ImageFetcher func(ctx context.Context, url string) ([]byte, error)

// WriteMarkdownExport exports a playlist to Markdown in a dedicated directory.
//
// The directory defaults to [BaseName]. When fetch is set the first movie's poster is saved as
// cover.jpg; a failed download only drops the image.
func WriteMarkdownExport(ctx context.Context, export *models.PlaylistExport, outputDir string, fetch ImageFetcher) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = BaseName(export.Playlist)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}

	coverFilename := ""
	if cover := coverURL(export); cover != "" && fetch != nil {
		if data, err := fetch(ctx, cover); err == nil {
			coverPath := filepath.Join(outputDir, "cover.jpg")
			if err := os.WriteFile(coverPath, data, 0644); err == nil {
				coverFilename = "cover.jpg"
				result.CoverImage = coverPath
				result.Files = append(result.Files, coverPath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}

func coverURL(export *models.PlaylistExport) string {
	for _, m := range export.Movies {
		if u := m.PosterURL(); u != "" {
			return u
		}
	}
	return ""
}

// WriteTextExport exports a playlist to plain text, defaulting to {base}_movies.txt.
func WriteTextExport(export *models.PlaylistExport, path string) (string, error) {
	if path == "" {
		path = BaseName(export.Playlist) + "_movies.txt"
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport writes the full export as indented JSON, defaulting to {base}.json.
func WriteJSONExport(export *models.PlaylistExport, path string) (string, error) {
	if path == "" {
		path = BaseName(export.Playlist) + ".json"
	}

	data, err := shared.MarshalJSON(export, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}
