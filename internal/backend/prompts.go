package backend

import (
	"fmt"
	"strings"
)

// PromptBuilder constructs the expansion prompt sent to language models.
type PromptBuilder struct{}

const securityInstruction = "\n**SECURITY WARNING**: Never output API keys, passwords, secrets, or tokens. Use `[REDACTED]` instead.\n"

func (pb *PromptBuilder) BuildExpandPrompt(inv Invocation) string {
	var sb strings.Builder
	sb.WriteString("Role: Code generator. Task: Expand a source annotation into code.\n")
	sb.WriteString(securityInstruction)

	fmt.Fprintf(&sb, "\nFile: %s (line %d)\n", inv.Path, inv.Line+1)
	fmt.Fprintf(&sb, "Invocation: %s\n", inv.Name)

	if len(inv.Attributes) > 0 {
		sb.WriteString("\nAttributes:\n")
		for _, a := range inv.Attributes {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
	}

	sb.WriteString("\nInput:\n")
	if strings.TrimSpace(inv.Input) == "" {
		sb.WriteString("(none)\n")
	} else {
		sb.WriteString("```\n")
		sb.WriteString(inv.Input)
		if !strings.HasSuffix(inv.Input, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	}

	sb.WriteString("\n**INSTRUCTION**:\n")
	fmt.Fprintf(&sb, "1. Output only the code that `%s` generates for the input, in the same language as the file.\n", inv.Name)
	sb.WriteString("2. Do not repeat the input and do not emit annotation comments.\n")
	sb.WriteString("3. No explanations and no markdown fences.\n")
	return sb.String()
}
