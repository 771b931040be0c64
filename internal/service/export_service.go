package service

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/patchwell/linkstash/internal/model"
	"github.com/patchwell/linkstash/internal/repo"
)

// ExportService renders an owner's full collection to a single standalone
// HTML page; user notes are markdown and go through goldmark.
type ExportService struct {
	items *repo.ItemRepo
	md    goldmark.Markdown
}

func NewExportService(items *repo.ItemRepo) *ExportService {
	return &ExportService{
		items: items,
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (s *ExportService) ExportHTML(ctx context.Context, ownerID string) (string, error) {
	items, err := s.items.ListSearchable(ctx, ownerID)
	if err != nil {
		return "", err
	}
	model.SortItems(items, model.SortNewestFirst)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>linkstash export</title></head><body>\n")
	b.WriteString(fmt.Sprintf("<h1>Saved items (%d)</h1>\n", len(items)))
	for _, it := range items {
		b.WriteString("<article>\n")
		title := it.Title
		if title == "" {
			title = "(untitled)"
		}
		if it.OriginalURL != "" {
			b.WriteString(fmt.Sprintf("<h2><a href=\"%s\">%s</a></h2>\n", html.EscapeString(it.OriginalURL), html.EscapeString(title)))
		} else {
			b.WriteString(fmt.Sprintf("<h2>%s</h2>\n", html.EscapeString(title)))
		}
		if it.Summary != "" {
			b.WriteString(fmt.Sprintf("<p>%s</p>\n", html.EscapeString(it.Summary)))
		}
		if len(it.Tags) > 0 {
			b.WriteString(fmt.Sprintf("<p><em>%s</em></p>\n", html.EscapeString(strings.Join(it.Tags, ", "))))
		}
		if it.UserNotes != "" {
			notes, err := s.renderNotes(it.UserNotes)
			if err != nil {
				return "", fmt.Errorf("render notes for %s: %w", it.ID, err)
			}
			b.WriteString(notes)
		}
		b.WriteString("</article>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String(), nil
}

func (s *ExportService) renderNotes(markdown string) (string, error) {
	var out bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &out); err != nil {
		return "", err
	}
	return out.String(), nil
}
