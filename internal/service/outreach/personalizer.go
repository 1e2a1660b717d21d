package outreach

import (
	"context"
	"fmt"
	"strings"

	"github.com/devsync/outreach-backend/internal/domain/lead"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

// Personalizer generates per-lead email content. Implementations may call
// external generators; the campaign pipeline falls back to the template
// personalizer when generation fails.
type Personalizer interface {
	Generate(ctx context.Context, l *lead.Lead) (*outreach.EmailContent, error)
}

// TemplatePersonalizer fills a fixed template from lead fields. It never
// fails, making it the terminal fallback in the generation chain.
type TemplatePersonalizer struct {
	CompanyName string
	WebsiteURL  string
}

func (p *TemplatePersonalizer) Generate(_ context.Context, l *lead.Lead) (*outreach.EmailContent, error) {
	business := l.BusinessName
	if business == "" {
		business = "your business"
	}
	category := l.Category
	if category == "" {
		category = "local"
	}
	city := l.City
	if city == "" {
		city = "your area"
	}

	subject := fmt.Sprintf("Website Solutions for %s", business)
	body := fmt.Sprintf(`Hi %s team,

I noticed you're in the %s space in %s, and most businesses in your category lose potential customers to slow or outdated websites.

At %s, we build fast, SEO-optimized websites that bring in more leads and help your business stand out locally.

Would a quick 10-15 minute call this week work to see if we can help you increase your online visibility?

You can check our work here: %s

Best regards,
%s Team`, business, category, city, p.CompanyName, p.WebsiteURL, p.CompanyName)

	return &outreach.EmailContent{
		Subject:  subject,
		BodyHTML: toHTML(body),
		BodyText: body,
	}, nil
}

func toHTML(text string) string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	for _, para := range strings.Split(text, "\n\n") {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(para, "\n", "<br>\n"))
		b.WriteString("</p>\n")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// CallScript builds the TTS introduction spoken when a call connects. The
// closing prompt drives intent detection on the transcript.
func CallScript(l *lead.Lead, companyName string) string {
	category := l.Category
	if category == "" {
		category = "local"
	}
	return fmt.Sprintf(
		"Hello, this is calling from %s. We build websites for %s businesses. "+
			"May I speak with the person who manages your website? "+
			"Please say yes if you're interested, or say remove to opt out.",
		companyName, category)
}
