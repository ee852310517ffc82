package prompt

import "strings"

// RenderSummary builds the prompt for the closing narrative of a completed
// decision. steps carries every submitted step in framework order.
func RenderSummary(question string, steps []PriorStep) string {
	var b strings.Builder
	b.WriteString("\nThe user has completed every step of a structured personal decision process.\n\n")
	b.WriteString("Decision Record:\n")
	b.WriteString(RenderContext(Context{Question: question, Prior: steps}))
	b.WriteString("\n\n")
	b.WriteString("Write a concise summary of this decision in markdown. Include:\n")
	b.WriteString("1. The decision and the outcome the user wanted\n")
	b.WriteString("2. The options considered and how they compared against the criteria\n")
	b.WriteString("3. The chosen option and the rationale behind it\n")
	b.WriteString("4. The action plan, the main obstacles and how to handle them\n")
	b.WriteString("5. What to review at the next check-in\n\n")
	b.WriteString("Respond with the markdown summary only.\n")
	return b.String()
}

// RenderQuickAdvice builds the single-shot prompt for a free-form question.
func RenderQuickAdvice(question string) string {
	return "Help me make a decision about: " + question
}
