package telegram

import (
	"fmt"
	"html"
	"strings"

	"manga-bookmark-bot/internal/domain"
)

const timeLayout = "2006-01-02 15:04 UTC"

// FormatBookmark оформляет одну закладку в HTML-разметке Telegram.
func FormatBookmark(b domain.Bookmark) string {
	var sb strings.Builder
	sb.WriteString("<b>" + html.EscapeString(b.Title) + "</b>\n")
	chapter := b.LastChapterTitle
	if chapter == "" {
		chapter = "unknown"
	}
	sb.WriteString("Chapter: " + html.EscapeString(chapter) + "\n")
	updated := "unknown"
	if b.TimeOfLastUpdate != nil {
		updated = b.TimeOfLastUpdate.UTC().Format(timeLayout)
	}
	sb.WriteString("Updated: " + updated)
	if link := readLink(b); link != "" {
		sb.WriteString(fmt.Sprintf("\n<a href=\"%s\">Read now</a>", html.EscapeString(link)))
	}
	return sb.String()
}

// FormatBookmarks оформляет список закладок с заголовком.
func FormatBookmarks(header string, list []domain.Bookmark) string {
	blocks := make([]string, 0, len(list)+1)
	blocks = append(blocks, "<b>"+html.EscapeString(header)+"</b>")
	for _, b := range list {
		blocks = append(blocks, FormatBookmark(b))
	}
	return strings.Join(blocks, "\n\n")
}

func readLink(b domain.Bookmark) string {
	if b.LinkOnLastChapter != "" {
		return b.LinkOnLastChapter
	}
	return b.LinkOnTitle
}
