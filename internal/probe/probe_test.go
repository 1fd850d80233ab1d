package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/dashboard"
)

func TestCheckPanelOnRenderedDashboard(t *testing.T) {
	for _, state := range []dashboard.PanelState{dashboard.PanelExpanded, dashboard.PanelCollapsed} {
		var buf bytes.Buffer
		require.NoError(t, dashboard.Render(&buf, dashboard.Page{ConversationID: "C1", Sources: state}))

		report, err := CheckPanel(&buf)
		require.NoError(t, err)
		assert.True(t, report.Toggleable(), "state %s", state)
		assert.Equal(t, state.Collapsed(), report.Collapsed)
		assert.Equal(t, string(state), report.State)
	}
}

func TestCheckPanelFlagsForcedHide(t *testing.T) {
	page := `<html><head><style>#sources-panel { display: none !important; }</style></head>
<body><section id="sources-panel"></section></body></html>`
	report, err := CheckPanel(strings.NewReader(page))
	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.True(t, report.ForcedHide)
	assert.False(t, report.Toggleable())

	report, err = CheckPanel(strings.NewReader(`<html><body><p>nothing</p></body></html>`))
	require.NoError(t, err)
	assert.False(t, report.Found)
}

func TestClientChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "C1", body["conversation_id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dashboard":null,"reply":"ok","conversation_id":"C1","context":{"stage":"standard","file_count":12,"chars":174000,"placement":"system"}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "tok", time.Second).Chat(context.Background(), "can u analyze this document", "C1")
	require.NoError(t, err)
	assert.Equal(t, 12, res.Context.FileCount)
	assert.False(t, res.HasDashboard())
}

func TestClientChatReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"code":50201,"message":"language model request failed"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Chat(context.Background(), "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
