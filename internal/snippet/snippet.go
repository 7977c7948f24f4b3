// Package snippet renders ready-to-run client code for a matched action.
package snippet

import (
	"strings"
	"text/template"
)

const invokeTemplate = `package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Invokes the {{.Action}} automation action through a running intentd server.
func main() {
	body, _ := json.Marshal(map[string]any{
		"prompt":     {{printf "%q" .Descriptor}},
		"session_id": "snippet",
	})
	resp, err := http.Post({{printf "%q" .BaseURL}}+"/v1/execute", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println("error executing action:", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		Function string ` + "`json:\"function\"`" + `
		Output   any    ` + "`json:\"output\"`" + `
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Println("error decoding response:", err)
		return
	}
	if result.Output != nil {
		fmt.Println(result.Output)
	} else {
		fmt.Println("{{.Action}} executed successfully.")
	}
}
`

// Generator renders invocation snippets for matched actions.
type Generator struct {
	baseURL string
	tmpl    *template.Template
}

// NewGenerator creates a Generator that targets the given server base URL.
func NewGenerator(baseURL string) *Generator {
	return &Generator{
		baseURL: baseURL,
		tmpl:    template.Must(template.New("invoke").Parse(invokeTemplate)),
	}
}

// Generate returns a Go program that executes the named action. The
// descriptor is used as the prompt so the snippet resolves back to the same
// action.
func (g *Generator) Generate(action, descriptor string) string {
	var sb strings.Builder
	err := g.tmpl.Execute(&sb, struct {
		Action     string
		Descriptor string
		BaseURL    string
	}{Action: action, Descriptor: descriptor, BaseURL: g.baseURL})
	if err != nil {
		return ""
	}
	return sb.String()
}
