package prompt

import (
	_ "embed"
	"strings"

	"InventoryChat/internal/session"
)

// SchemaDDL is the SQL Server schema of the inventory database the backend reasons about
//
//go:embed schema.sql
var SchemaDDL string

// OutputContract is reproduced verbatim in every system message
const OutputContract = `Output must be a single JSON object, no markdown fences, with exactly:
{ "answer": "<string>", "sql_query": "<string, empty if not applicable>" }`

const systemTemplate = `You are an inventory analytics assistant. You answer questions about inventory, assets, customers, vendors, sites, locations, purchase orders, sales orders and bills.

Every reply carries two things:
1. A short natural-language answer to the question
2. The SQL Server query that retrieves the data behind that answer

DATABASE SCHEMA:
{{schema}}

RULES:
- Exclude disposed assets unless the user asks for them (WHERE Status <> 'Disposed')
- Use SQL Server syntax (GETDATE(), DATEADD, TOP)
- Give aggregates meaningful column aliases
- If the question is unclear or unrelated to the schema, say what you can help with and leave sql_query empty
- Keep answers concise and professional

{{contract}}
`

// SystemPrompt is the fixed system message sent ahead of every conversation
var SystemPrompt = strings.NewReplacer(
	"{{schema}}", strings.TrimSpace(SchemaDDL),
	"{{contract}}", OutputContract,
).Replace(systemTemplate)

// Assemble builds the message list for one backend call: the system
// message, the session history in its original order, then the new user
// message. history is read, never modified.
func Assemble(systemPrompt string, history []session.Turn, userMessage string) []session.Turn {
	messages := make([]session.Turn, 0, len(history)+2)
	messages = append(messages, session.Turn{Role: session.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, session.UserTurn(userMessage))
	return messages
}
