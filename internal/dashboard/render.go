package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/russross/blackfriday"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.New("dashboard.html.tmpl").Funcs(template.FuncMap{
	"join":      strings.Join,
	"add":       func(a, b int) int { return a + b },
	"panelID":   func() string { return PanelID },
	"hasSeries": func(c Chart) bool { return len(c.Series) > 0 },
}).ParseFS(templateFS, "templates/dashboard.html.tmpl"))

// Page is everything the dashboard view needs.
type Page struct {
	ConversationID string
	Dashboard      *Dashboard
	Reply          string
	Sources        PanelState
}

type pageData struct {
	Page
	ReplyHTML template.HTML
	Title     string
}

// Render writes the dashboard page. A nil dashboard renders the reply with an empty
// sources panel.
func Render(w io.Writer, page Page) error {
	if page.Sources == "" {
		page.Sources = PanelExpanded
	}
	title := "Dashboard"
	if page.Dashboard != nil && strings.TrimSpace(page.Dashboard.Title) != "" {
		title = page.Dashboard.Title
	}
	data := pageData{
		Page:      page,
		ReplyHTML: MarkdownHTML(page.Reply),
		Title:     title,
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render dashboard failed: %w", err)
	}
	return nil
}

const markdownExtensions = blackfriday.EXTENSION_NO_INTRA_EMPHASIS |
	blackfriday.EXTENSION_TABLES |
	blackfriday.EXTENSION_FENCED_CODE |
	blackfriday.EXTENSION_AUTOLINK |
	blackfriday.EXTENSION_STRIKETHROUGH

// MarkdownHTML converts an assistant reply to HTML. Raw HTML in the reply is dropped.
func MarkdownHTML(reply string) template.HTML {
	if strings.TrimSpace(reply) == "" {
		return ""
	}
	renderer := blackfriday.HtmlRenderer(blackfriday.HTML_SKIP_HTML|blackfriday.HTML_SKIP_STYLE|blackfriday.HTML_SAFELINK, "", "")
	return template.HTML(blackfriday.Markdown([]byte(reply), renderer, markdownExtensions))
}
