package views

import (
	"bytes"
	"testing"

	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTemplates(t *testing.T) {
	templates, err := getTemplates()
	require.NoError(t, err)
	require.NotNil(t, templates)
	for _, name := range []string{"login.html", "register.html", "home.html", "projects.html", "project.html"} {
		assert.NotNil(t, templates.Lookup(name), name)
	}
}

func TestLoginTemplate(t *testing.T) {
	templates, err := getTemplates()
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	err = templates.ExecuteTemplate(buf, "login.html", map[string]any{
		"Error": "Sign-in failed, check your email and password.",
	})
	require.NoError(t, err)
	html := buf.String()
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "Sign-in failed")
	assert.Contains(t, html, `action="/login"`)
}

func TestProjectTemplateLeadView(t *testing.T) {
	templates, err := getTemplates()
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	data := map[string]any{
		"Project": models.Project{ID: 7, Name: "gateway", Lead: models.User{Email: "lead@teamhub.dev"}},
		"Members": []models.Member{},
		"IsLead":  true,
		"JoinRequests": []models.JoinRequest{
			{ID: 3, User: models.User{Email: "applicant@teamhub.dev"}, Status: models.JoinRequestPending},
		},
	}
	err = templates.ExecuteTemplate(buf, "project.html", data)
	require.NoError(t, err)
	html := buf.String()
	assert.Contains(t, html, "applicant@teamhub.dev")
	assert.Contains(t, html, `action="/requests/3/accept"`)
	assert.Contains(t, html, `action="/requests/3/reject"`)
	assert.NotContains(t, html, "Request to join")
}

func TestProjectTemplateMemberView(t *testing.T) {
	templates, err := getTemplates()
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	data := map[string]any{
		"Project": models.Project{ID: 7, Name: "gateway", Lead: models.User{Email: "lead@teamhub.dev"}},
		"Members": []models.Member{},
		"IsLead":  false,
	}
	err = templates.ExecuteTemplate(buf, "project.html", data)
	require.NoError(t, err)
	html := buf.String()
	assert.Contains(t, html, `action="/projects/7/join"`)
	assert.NotContains(t, html, "Join requests")
}
