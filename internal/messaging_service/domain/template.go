package domain

import (
	"regexp"
	"strings"
)

// TemplateData carries the substitution values for SMS message templates.
// Templates reference them as {shop_name}, {case_number}, {invoice_number},
// {amount}, {date} and {link}.
type TemplateData struct {
	ShopName   string
	CaseNumber string
	Amount     string
	Date       string
	Link       string
}

// placeholderPattern matches any leftover {variable} token after known
// substitutions ran.
var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z0-9_]+\}`)

// RenderTemplate substitutes template variables and guarantees totality:
// unresolved or unknown placeholders become the empty string so no literal
// {var} token ever reaches an outgoing SMS.
func RenderTemplate(tpl string, data TemplateData) string {
	replacer := strings.NewReplacer(
		"{shop_name}", data.ShopName,
		"{case_number}", data.CaseNumber,
		"{invoice_number}", data.CaseNumber,
		"{amount}", data.Amount,
		"{date}", data.Date,
		"{link}", data.Link,
	)
	rendered := replacer.Replace(tpl)
	return placeholderPattern.ReplaceAllString(rendered, "")
}
