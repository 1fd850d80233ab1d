package dashboard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replyWithBlock = "Revenue grew 12% year over year.\n\n" +
	"```dashboard\n" +
	`{"title":"Q3 overview","kpis":[{"label":"Revenue","value":"$4.2B","change":12},{"label":"Margin","value":31.5,"unit":"%"}],` +
	`"charts":[{"type":"bar","title":"Revenue by quarter","labels":["Q1","Q2","Q3"],"series":[{"name":"Revenue","values":[3.6,3.9,4.2]}]}],` +
	`"sources":[{"name":"10-Q.pdf","page":4,"excerpt":"Total revenue"}]}` + "\n" +
	"```\n\nLet me know if you need more."

func TestExtractRemovesBlock(t *testing.T) {
	clean, d, err := Extract(replyWithBlock)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, "Q3 overview", d.Title)
	require.Len(t, d.KPIs, 2)
	assert.Equal(t, Figure("$4.2B"), d.KPIs[0].Value)
	assert.Equal(t, Figure("12"), d.KPIs[0].Change)
	assert.Equal(t, Figure("31.5"), d.KPIs[1].Value)
	require.Len(t, d.Charts, 1)
	assert.Equal(t, []float64{3.6, 3.9, 4.2}, d.Charts[0].Series[0].Values)
	assert.Equal(t, "10-Q.pdf", d.Sources[0].Name)

	assert.NotContains(t, clean, "```")
	assert.True(t, strings.HasPrefix(clean, "Revenue grew 12%"))
	assert.True(t, strings.HasSuffix(clean, "need more."))
}

func TestExtractWithoutBlock(t *testing.T) {
	clean, d, err := Extract("  plain answer \n")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, "plain answer", clean)
}

func TestExtractInvalidBlockKeepsReply(t *testing.T) {
	reply := "text\n```dashboard\n{not json}\n```"
	clean, d, err := Extract(reply)
	require.Error(t, err)
	assert.Nil(t, d)
	assert.Equal(t, reply, clean)
}

func TestPanelState(t *testing.T) {
	assert.Equal(t, PanelExpanded, ParsePanelState(""))
	assert.Equal(t, PanelExpanded, ParsePanelState("bogus"))
	assert.Equal(t, PanelCollapsed, ParsePanelState(" Collapsed "))

	assert.Equal(t, PanelExpanded, PanelCollapsed.Toggle())
	assert.Equal(t, PanelCollapsed, PanelExpanded.Toggle())
	assert.Equal(t, PanelExpanded, PanelExpanded.Toggle().Toggle())
}

func renderDoc(t *testing.T, page Page) (*goquery.Document, string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, page))
	html := buf.String()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc, html
}

func TestRenderDefaultsToExpandedPanel(t *testing.T) {
	clean, d, err := Extract(replyWithBlock)
	require.NoError(t, err)

	doc, html := renderDoc(t, Page{ConversationID: "C1", Dashboard: d, Reply: clean})

	panel := doc.Find("#" + PanelID)
	require.Equal(t, 1, panel.Length())
	assert.False(t, panel.HasClass("collapsed"))
	assert.Equal(t, "expanded", panel.AttrOr("data-state", ""))
	assert.Contains(t, panel.Find("li").First().Text(), "10-Q.pdf")

	assert.Equal(t, 2, doc.Find("table.kpis tbody tr").Length())
	assert.Equal(t, "Q3 overview", strings.TrimSpace(doc.Find("header h1").Text()))
	assert.Contains(t, html, "#sources-panel.collapsed { display: none; }")
	assert.NotContains(t, html, "!important")
}

func TestRenderToggleFromCollapsedShowsPanel(t *testing.T) {
	state := PanelCollapsed
	doc, _ := renderDoc(t, Page{ConversationID: "C1", Sources: state})
	assert.True(t, doc.Find("#"+PanelID).HasClass("collapsed"))
	assert.Equal(t, "false", doc.Find("#sources-toggle").AttrOr("aria-expanded", ""))

	doc, _ = renderDoc(t, Page{ConversationID: "C1", Sources: state.Toggle()})
	panel := doc.Find("#" + PanelID)
	assert.False(t, panel.HasClass("collapsed"))
	// the only rule hiding the panel is scoped to the collapsed class
	style := doc.Find("style").Text()
	assert.NotContains(t, style, "#sources-panel { display: none")
}

func TestRenderDropsRawHTMLFromReply(t *testing.T) {
	doc, _ := renderDoc(t, Page{ConversationID: "C1", Reply: "<script>alert(1)</script>\n\n**net income** rose"})
	reply := doc.Find("article.reply")
	assert.Equal(t, 0, reply.Find("script").Length())
	assert.Equal(t, "net income", reply.Find("strong").Text())
}
