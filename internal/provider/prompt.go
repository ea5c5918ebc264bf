package provider

import (
	"strings"
)

const (
	DefaultRegionalLanguage = "Romanian"
	DefaultFallbackLanguage = "English"
)

type PromptOptions struct {
	RegionalLanguage string
	FallbackLanguage string
}

func (o PromptOptions) withDefaults() PromptOptions {
	if strings.TrimSpace(o.RegionalLanguage) == "" {
		o.RegionalLanguage = DefaultRegionalLanguage
	}
	if strings.TrimSpace(o.FallbackLanguage) == "" {
		o.FallbackLanguage = DefaultFallbackLanguage
	}
	return o
}

// BuildPrompt renders the one-shot summarization instruction. The model gets
// no chance to ask follow-up questions, so the prompt says so.
func BuildPrompt(opts PromptOptions, sourceURL, excerpt string) string {
	opts = opts.withDefaults()

	b := strings.Builder{}
	b.WriteString("Summarise the following article ")
	b.WriteString(strings.TrimSpace(sourceURL))
	b.WriteString(".\n")
	b.WriteString("Do not include any requests for clarification or offers for more information, ")
	b.WriteString("since this is a one-way interaction with no opportunity for follow-up.\n")
	b.WriteString("If the article is in " + opts.RegionalLanguage + ", write the summary in " + opts.RegionalLanguage + ". ")
	b.WriteString("If the article is in " + opts.FallbackLanguage + " or any other language, write the summary in " +
		opts.FallbackLanguage + ".\n")
	b.WriteString("Keep going until the summary is complete before ending your turn.\n")
	b.WriteString("Use only the content of the article for the summary. ")
	b.WriteString("Do not use pre-existing knowledge about the topic.")

	if excerpt = strings.TrimSpace(excerpt); excerpt != "" {
		b.WriteString("\n\nArticle content:\n")
		b.WriteString(excerpt)
	}

	return b.String()
}
