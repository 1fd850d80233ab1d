package dashboard

import "strings"

// PanelState is the visibility of the sources panel.
type PanelState string

const (
	PanelExpanded  PanelState = "expanded"
	PanelCollapsed PanelState = "collapsed"
)

// PanelID is the element id of the sources panel on the rendered page.
const PanelID = "sources-panel"

// ParsePanelState reads a query value. Anything unknown means expanded.
func ParsePanelState(s string) PanelState {
	if strings.EqualFold(strings.TrimSpace(s), string(PanelCollapsed)) {
		return PanelCollapsed
	}
	return PanelExpanded
}

func (s PanelState) Toggle() PanelState {
	if s == PanelCollapsed {
		return PanelExpanded
	}
	return PanelCollapsed
}

func (s PanelState) Collapsed() bool {
	return s == PanelCollapsed
}

// Class is the CSS class carried by the panel element. Only the collapsed class hides it.
func (s PanelState) Class() string {
	if s == PanelCollapsed {
		return "collapsed"
	}
	return ""
}
