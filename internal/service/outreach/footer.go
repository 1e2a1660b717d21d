package outreach

import (
	"fmt"

	"github.com/google/uuid"
)

// Footer renders the compliance block appended to every outbound email:
// sender identity, physical business address, and a working unsubscribe link.
type Footer struct {
	FromName        string
	BusinessAddress string
	// UnsubscribeBaseURL is the public endpoint the token is appended to.
	UnsubscribeBaseURL string
}

// UnsubscribeURL builds the one-click unsubscribe link for a token.
func (f Footer) UnsubscribeURL(token uuid.UUID) string {
	return fmt.Sprintf("%s?token=%s", f.UnsubscribeBaseURL, token)
}

// Apply appends the footer to both bodies and returns the result.
func (f Footer) Apply(bodyHTML, bodyText string, token uuid.UUID) (string, string) {
	url := f.UnsubscribeURL(token)

	htmlFooter := fmt.Sprintf(`
<hr style="margin-top: 30px; border: none; border-top: 1px solid #ddd;">
<p style="font-size: 12px; color: #666; margin-top: 20px;">
    <strong>%s</strong><br>
    %s<br>
    <br>
    You received this email because your business information is publicly listed.
    <a href="%s">Unsubscribe</a> from future emails.
</p>
`, f.FromName, f.BusinessAddress, url)

	textFooter := fmt.Sprintf(`

---
%s
%s

You received this email because your business information is publicly listed.
Unsubscribe: %s
`, f.FromName, f.BusinessAddress, url)

	return bodyHTML + htmlFooter, bodyText + textFooter
}
