package outreach

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devsync/outreach-backend/internal/domain/lead"
)

func TestFooterApply(t *testing.T) {
	f := testFooter()
	token := uuid.New()

	html, text := f.Apply("<p>body</p>", "body", token)

	url := "https://example.com/unsubscribe?token=" + token.String()
	assert.True(t, strings.HasPrefix(html, "<p>body</p>"))
	assert.Contains(t, html, url)
	assert.Contains(t, html, "123 Main St, Springfield, IL 62701")
	assert.Contains(t, text, "Unsubscribe: "+url)
	assert.Contains(t, text, "DevSync Outreach")
}

func TestTemplatePersonalizer(t *testing.T) {
	p := &TemplatePersonalizer{CompanyName: "DevSync Innovation", WebsiteURL: "https://example.com"}

	content, err := p.Generate(context.Background(), &lead.Lead{
		BusinessName: "Blue Bakery",
		Category:     "bakery",
		City:         "Springfield",
	})
	require.NoError(t, err)

	assert.Equal(t, "Website Solutions for Blue Bakery", content.Subject)
	assert.Contains(t, content.BodyText, "bakery")
	assert.Contains(t, content.BodyText, "Springfield")
	assert.Contains(t, content.BodyHTML, "<p>")
}

func TestTemplatePersonalizerEmptyFields(t *testing.T) {
	p := &TemplatePersonalizer{CompanyName: "DevSync Innovation", WebsiteURL: "https://example.com"}

	content, err := p.Generate(context.Background(), &lead.Lead{})
	require.NoError(t, err)
	assert.Contains(t, content.Subject, "your business")
}

func TestCallScript(t *testing.T) {
	script := CallScript(&lead.Lead{Category: "bakery"}, "DevSync Innovation")
	assert.Contains(t, script, "DevSync Innovation")
	assert.Contains(t, script, "bakery")
	assert.Contains(t, script, "say remove to opt out")
}
