package summarizer

import "fmt"

// PromptTemplate is filled with the bullet count and the user's text.
const PromptTemplate = "Summarize the following text in %d bullet points:\n\n%s"

// DefaultBullets is used when a caller does not say how many points it wants.
const DefaultBullets = 3

// BuildPrompt interpolates bullets and text into PromptTemplate. The bullet
// count is passed through as given; text is not trimmed.
func BuildPrompt(bullets int, text string) string {
	return fmt.Sprintf(PromptTemplate, bullets, text)
}
