package categorizer

import (
	"context"
	"fmt"
	"strings"

	"marksweep/internal/models"
)

type domainRule struct {
	pattern  string
	category string
}

// domainRules is matched in order by substring against the hostname.
var domainRules = []domainRule{
	{"github.com", "Development"},
	{"gitlab.com", "Development"},
	{"bitbucket.org", "Development"},
	{"stackoverflow.com", "Development"},
	{"stackexchange.com", "Development"},
	{"dev.to", "Development"},
	{"codepen.io", "Development"},
	{"jsfiddle.net", "Development"},
	{"replit.com", "Development"},
	{"youtube.com", "Entertainment"},
	{"netflix.com", "Entertainment"},
	{"twitch.tv", "Entertainment"},
	{"spotify.com", "Entertainment"},
	{"soundcloud.com", "Entertainment"},
	{"amazon.com", "Shopping"},
	{"ebay.com", "Shopping"},
	{"etsy.com", "Shopping"},
	{"aliexpress.com", "Shopping"},
	{"google.com", "Search/Tools"},
	{"bing.com", "Search/Tools"},
	{"duckduckgo.com", "Search/Tools"},
	{"facebook.com", "Social Media"},
	{"twitter.com", "Social Media"},
	{"instagram.com", "Social Media"},
	{"linkedin.com", "Professional"},
	{"behance.net", "Professional"},
	{"dribbble.com", "Professional"},
	{"news.", "News"},
	{"cnn.com", "News"},
	{"bbc.com", "News"},
	{"wikipedia.org", "Reference"},
	{"reddit.com", "Community"},
	{"discord.com", "Community"},
	{"medium.com", "Reference"},
	{"notion.so", "Productivity"},
	{"trello.com", "Productivity"},
	{"slack.com", "Productivity"},
}

// tokenRules apply when no domain rule matched.
var tokenRules = []struct {
	tokens   []string
	category string
}{
	{[]string{"blog", "medium", "substack"}, "Reference"},
	{[]string{"shop", "store"}, "Shopping"},
	{[]string{"news", "journal"}, "News"},
	{[]string{"edu", "university"}, "Education"},
}

// DomainCategory categorizes a hostname: 0.9 on a known domain, 0.8 on a
// keyword hint, otherwise Other at 0.7.
func DomainCategory(host string) models.CategoryResult {
	host = strings.ToLower(host)
	category, confidence := models.CategoryOther, 0.7

	matched := false
	for _, rule := range domainRules {
		if strings.Contains(host, rule.pattern) {
			category, confidence = rule.category, 0.9
			matched = true
			break
		}
	}

	if !matched {
	tokens:
		for _, rule := range tokenRules {
			for _, tok := range rule.tokens {
				if strings.Contains(host, tok) {
					category, confidence = rule.category, 0.8
					break tokens
				}
			}
		}
	}

	return models.CategoryResult{
		Category:    category,
		Confidence:  confidence,
		Description: fmt.Sprintf("Website categorized as %s based on domain analysis", strings.ToLower(category)),
		Method:      models.MethodDomain,
	}
}

// DomainStage is the heuristic stage. It always answers.
func DomainStage(_ context.Context, req Request) (models.CategoryResult, bool) {
	return DomainCategory(req.Host), true
}
