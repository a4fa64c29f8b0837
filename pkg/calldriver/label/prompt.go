package label

import "strings"

const systemPrompt = "You label IT support tickets into concise, executive-friendly 'call drivers'. " +
	"Return a short title (3-5 words, Title Case) and a one-line rationale. " +
	"Prefer common IT terms: VPN, Outlook, Email, Teams, SSPR, MFA, Printer, Access, Network, " +
	"Laptop, Software Install, Device Compliance, Conferencing, Password Reset, Unlock, Status Request."

func userPrompt(examples []string) string {
	var b strings.Builder
	b.WriteString("You are naming ONE cluster of IT tickets.\n\nExamples (trimmed):\n---\n")
	b.WriteString(strings.Join(examples, "\n---\n"))
	b.WriteString("\n---\n\n")
	b.WriteString("Return JSON with exactly:\n")
	b.WriteString("{\n  \"title\": \"<3-5 words, Title Case>\",\n  \"rationale\": \"<<=20 words>\"\n}\n\n")
	b.WriteString("Return ONLY JSON, no prose.\n")
	return b.String()
}
