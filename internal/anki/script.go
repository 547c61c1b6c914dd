// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package anki

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

var scriptTmpl = template.Must(template.New("script").Parse(`#!/usr/bin/env bash
set -euo pipefail

# OpenAI-compatible endpoint (e.g., llama.cpp server, vLLM, LM Studio)
LLM_API_BASE="${LLM_API_BASE:-http://localhost:8080/v1}"
LLM_MODEL="${LLM_MODEL:-llama-3.1-8b-instruct}"
LLM_API_KEY="${LLM_API_KEY:-no-key-required}"

CONTENT_FILE={{.ContentFile}}
CONTENT=$(cat "$CONTENT_FILE")

read -r -d '' PROMPT <<'EOF' || true
{{.Header}}

Content:
EOF

USER_INPUT="$PROMPT
$CONTENT"

DATA=$(jq -n --arg model "$LLM_MODEL" --arg sys {{.System}} --arg prompt "$USER_INPUT" '{model:$model, messages:[{"role":"system", "content":$sys},{"role":"user", "content":$prompt}], temperature:0.2, max_completion_tokens:2000}')

echo "Requesting LLM at $LLM_API_BASE with model $LLM_MODEL..." 1>&2
curl -sS -X POST "$LLM_API_BASE/chat/completions" \
  -H "Content-Type: application/json" \
  -H "Authorization: Bearer $LLM_API_KEY" \
  -d "$DATA" | jq -r '.choices[0].message.content'
`))

// PromptScript returns a bash script that sends the card prompt for the
// Markdown file at mdPath to an OpenAI-compatible endpoint with curl and
// jq, for running generation outside this tool.
func PromptScript(mdPath string, n int, nt types.NoteType, focus string) (string, error) {
	prompt, err := BuildPrompt(nt, n, focus, "")
	if err != nil {
		return "", err
	}
	header := strings.TrimRight(prompt, "\n")
	if i := strings.LastIndex(header, "Content:"); i >= 0 {
		header = header[:i]
	}
	header = strings.TrimRight(header, "\n ")

	var buf bytes.Buffer
	err = scriptTmpl.Execute(&buf, struct {
		ContentFile string
		Header      string
		System      string
	}{shellQuote(mdPath), header, shellQuote(SystemPrompt)})
	if err != nil {
		return "", fmt.Errorf("rendering script: %w", err)
	}
	return buf.String(), nil
}

// shellQuote wraps s in single quotes for bash.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
