package question

import "fmt"

// Unknown is what the model returns for a field it cannot extract.
const Unknown = "UNKNOWN"

const systemPrompt = `You extract structured information from a question about a web application.

If the question does NOT name a specific web application or task, return "UNKNOWN" for app_name, app_url, task and optimized_description, and "unknown" for task_name.
Only extract real information if the question is clearly about a task in a web application.

Fields:
1. app_name: the web application name (Linear, Notion, GitHub, Asana, Jira).
2. app_url: the main URL of that application. It must start with https://.
3. task: what the user wants to do, without the application name. Keep every detail from the question.
4. task_name: a snake_case identifier of at most 5 words using lowercase letters, digits and underscores.
5. optimized_description: an imperative instruction for a browser automation agent with the specific values and field names. Add no extra context.
6. auth_required: true when the task creates, edits or deletes content or reads private data. false only for read-only public content. Default to true.

Questions such as "What's the weather today?" or "Tell me a joke" must return UNKNOWN.

Respond with a single JSON object and nothing else:
{"app_name": string, "app_url": string, "task": string, "task_name": string, "optimized_description": string, "auth_required": bool}`

// BuildPrompt renders the user prompt for question.
func BuildPrompt(question string) string {
	return fmt.Sprintf("Question: %q", question)
}
