// Package prompts builds the LLM prompt text used by the retrieval
// service. Builders are pure string assembly so they stay trivially
// testable.
package prompts

import (
	"fmt"
	"strings"

	"github.com/reelsight/reelsight-engine/pkg/models"
)

// BuildContentChatSystemPrompt creates the system turn for an "ask about
// item" conversation. The transcript is embedded verbatim; the model is
// instructed to answer only from it.
func BuildContentChatSystemPrompt(item *models.ContentItem, transcript string) string {
	var prompt strings.Builder

	prompt.WriteString("You are an assistant that answers questions about one social media video.\n")
	prompt.WriteString("Answer only from the transcript and metadata below. ")
	prompt.WriteString("If the transcript does not contain the answer, say so briefly.\n\n")

	prompt.WriteString("## Video\n")
	if item.AuthorUsername != "" {
		prompt.WriteString(fmt.Sprintf("Author: @%s\n", item.AuthorUsername))
	}
	if item.Caption != "" {
		prompt.WriteString(fmt.Sprintf("Caption: %s\n", item.Caption))
	}
	if item.Views != nil {
		prompt.WriteString(fmt.Sprintf("Views: %d\n", *item.Views))
	}
	if item.PublishedAt != nil {
		prompt.WriteString(fmt.Sprintf("Published: %s\n", item.PublishedAt.Format("2006-01-02")))
	}

	prompt.WriteString("\n## Transcript\n")
	prompt.WriteString(transcript)
	prompt.WriteString("\n")

	return prompt.String()
}
