package processor

import (
	"fmt"
	"strings"
)

// PromptBuilder assembles the chat messages sent to the model for SQL
// generation. The schema note is supplied per request so it can track
// live introspection results.
type PromptBuilder struct{}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// SystemMessage returns the generation system prompt
func (pb *PromptBuilder) SystemMessage() string {
	return "You are an expert SQL generator for SQLite databases. " +
		"You must follow instructions strictly and only output a single valid SQL SELECT statement (no explanation). " +
		"Do NOT return any commentary. Do NOT use backticks. Use the exact table and column names provided."
}

// UserMessage returns the generation user prompt for a question. The
// column rules repeat the schema's sharp edges because the model gets
// them wrong without explicit reminders.
func (pb *PromptBuilder) UserMessage(schemaNote, question string) string {
	var b strings.Builder

	b.WriteString(schemaNote)
	b.WriteString("\n\nImportant rules for generation:\n")
	b.WriteString("- Output ONLY one SELECT SQL statement. Do NOT output explanation or text.\n")
	b.WriteString("- Use the exact column names from the schema above:\n")
	b.WriteString("  - product_name is products.product_name (NOT products.name)\n")
	b.WriteString("  - product primary key is products.product_id\n")
	b.WriteString("  - customer name is customers.name (NOT customers.customer_name)\n")
	b.WriteString("  - customer primary key is customers.customer_id\n")
	b.WriteString("  - sale price is in sales.price (NOT products.price)\n")
	b.WriteString("  - join using sales.product_id = products.product_id and sales.customer_id = customers.customer_id\n")
	b.WriteString("- If the question requests product name or customer name, include JOINs to products and customers.\n")
	b.WriteString("- Use table aliases s (sales), p (products), c (customers) when helpful.\n")
	b.WriteString("- Only use SQLite-compatible functions.\n")
	b.WriteString("- Avoid speculative column names. If unsure, prefer columns present in the schema.\n")
	fmt.Fprintf(&b, "\nUser question:\n\"\"\"%s\"\"\"\n", question)

	return b.String()
}
