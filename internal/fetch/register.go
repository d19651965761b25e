package fetch

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/rpattn/shortreg/internal/snapshot"
)

// markerPrefix introduces the publication timestamp on the register page.
const markerPrefix = "Listan uppdaterades:"

// RegisterSource fetches one register stream: the page carrying the
// publication marker and the snapshot file itself.
type RegisterSource struct {
	client   *Client
	pageURL  string
	fileURL  string
	fileName string
	columns  snapshot.ColumnMap
}

func NewRegisterSource(client *Client, pageURL, fileURL string, columns snapshot.ColumnMap) *RegisterSource {
	return &RegisterSource{
		client:   client,
		pageURL:  pageURL,
		fileURL:  fileURL,
		fileName: fileNameFromURL(fileURL),
		columns:  columns,
	}
}

// FetchMarker scrapes the register page for the publication timestamp. An
// absent timestamp paragraph yields the empty unpublished sentinel, not an
// error: the page exists but the list has not been (re)published yet.
func (s *RegisterSource) FetchMarker(ctx context.Context) (string, error) {
	page, err := s.client.Get(ctx, s.pageURL)
	if err != nil {
		return "", err
	}
	return ExtractMarker(page)
}

// FetchRows downloads and parses the snapshot file, preserving source row
// order.
func (s *RegisterSource) FetchRows(ctx context.Context) ([]snapshot.RawRow, error) {
	payload, err := s.client.Get(ctx, s.fileURL)
	if err != nil {
		return nil, err
	}
	return snapshot.ParseFile(s.fileName, payload, s.columns)
}

// ExtractMarker finds the "Listan uppdaterades: <ts>" paragraph in a
// register page and returns the timestamp text, or the empty sentinel when
// no such paragraph exists.
func ExtractMarker(page []byte) (string, error) {
	doc, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return "", fmt.Errorf("failed to parse register page: %w", err)
	}

	var marker string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if marker != "" {
			return
		}
		if node.Type == html.TextNode {
			text := strings.TrimSpace(node.Data)
			if strings.Contains(text, markerPrefix) {
				marker = strings.TrimSpace(strings.TrimPrefix(text[strings.Index(text, markerPrefix):], markerPrefix))
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return marker, nil
}

func fileNameFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" || !strings.Contains(trimmed, ".") {
		return "snapshot.xlsx"
	}
	return trimmed
}
