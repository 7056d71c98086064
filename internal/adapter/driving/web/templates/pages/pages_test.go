package pages_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/tokenlink/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/tokenlink/internal/adapter/driving/web/viewmodel"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestCredentialPrompt_EscapesMessagesButNotHelp(t *testing.T) {
	body := render(t, pages.CredentialPrompt(vm.PromptViewModel{
		CSRFToken: `tok"en`,
		HelpHTML:  "<p><strong>GitHub</strong></p>",
		Error:     "<b>bad</b>",
	}))

	assert.Contains(t, body, `action="/credential"`)
	assert.Contains(t, body, `value="tok&#34;en"`)
	assert.Contains(t, body, "&lt;b&gt;bad&lt;/b&gt;")
	assert.Contains(t, body, "<strong>GitHub</strong>")
	assert.NotContains(t, body, `class="notice"`)
}

func TestSession_RendersTransitionsAndRetries(t *testing.T) {
	body := render(t, pages.Session(vm.SessionViewModel{
		State:      "reconnecting",
		StateClass: "pending",
		RetryCount: 2,
		MaxRetries: 3,
		Transitions: []vm.TransitionViewModel{
			{At: "12:00:00", From: "active", To: "reconnecting", Reason: "session disconnected", RetryCount: 2},
			{At: "11:59:00", From: "connecting", To: "active", Reason: "connected"},
		},
	}))

	assert.Contains(t, body, `class="state state-pending"`)
	assert.Contains(t, body, "2 / 3")
	assert.Equal(t, 2, strings.Count(body, "<tr><td>"))
	assert.Contains(t, body, "session disconnected")
	assert.NotContains(t, body, "<dt>Since</dt>")
	assert.NotContains(t, body, `action="/credential"`)
}

func TestSession_EmbedsPromptWhenDown(t *testing.T) {
	body := render(t, pages.Session(vm.SessionViewModel{
		State:      "disconnected",
		StateClass: "down",
		MaxRetries: 3,
		Prompt:     &vm.PromptViewModel{CSRFToken: "abc"},
	}))

	assert.Contains(t, body, "state-down")
	assert.Contains(t, body, `action="/credential"`)
	assert.Less(t, strings.Index(body, `class="session"`), strings.Index(body, `class="prompt"`))
}

func TestStarting(t *testing.T) {
	assert.Contains(t, render(t, pages.Starting()), "Starting&hellip;")
}
