package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/vitals/internal/output"
)

// TestServerCreation verifies the MCP server can be created without panicking.
func TestServerCreation(t *testing.T) {
	server := NewServer("1.0.0-test")
	if server == nil {
		t.Fatal("NewServer() returned nil")
	}
	if server.server == nil {
		t.Fatal("NewServer().server is nil")
	}
}

// TestServerCreationEmptyVersion verifies empty version defaults to "dev".
func TestServerCreationEmptyVersion(t *testing.T) {
	server := NewServer("")
	if server == nil {
		t.Fatal("NewServer(\"\") returned nil")
	}
}

// TestToolDescriptions verifies all description functions return non-empty strings.
func TestToolDescriptions(t *testing.T) {
	descriptions := map[string]func() string{
		"project":      describeProject,
		"complexity":   describeComplexity,
		"deadcode":     describeDeadcode,
		"duplicates":   describeDuplicates,
		"dependencies": describeDependencies,
		"globals":      describeGlobals,
		"graph":        describeGraph,
	}

	for name, fn := range descriptions {
		t.Run(name, func(t *testing.T) {
			desc := fn()
			if desc == "" {
				t.Errorf("%s description is empty", name)
			}
			if !strings.Contains(desc, "USE WHEN:") {
				t.Errorf("%s description missing USE WHEN section", name)
			}
			if !strings.Contains(desc, "INTERPRETING RESULTS:") {
				t.Errorf("%s description missing INTERPRETING RESULTS section", name)
			}
			if !strings.Contains(desc, "METRICS RETURNED:") {
				t.Errorf("%s description missing METRICS RETURNED section", name)
			}
		})
	}
}

// TestGetRoot verifies root defaulting.
func TestGetRoot(t *testing.T) {
	if got := getRoot(AnalyzeInput{}); got != "." {
		t.Errorf("getRoot(empty) = %q, want %q", got, ".")
	}
	if got := getRoot(AnalyzeInput{Path: "/foo/bar"}); got != "/foo/bar" {
		t.Errorf("getRoot(/foo/bar) = %q, want %q", got, "/foo/bar")
	}
}

// TestGetFormat verifies format parsing logic.
func TestGetFormat(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		expected output.Format
	}{
		{"empty defaults to toon", "", output.FormatTOON},
		{"json format", "json", output.FormatJSON},
		{"markdown format", "markdown", output.FormatMarkdown},
		{"md alias", "md", output.FormatMarkdown},
		{"toon explicit", "toon", output.FormatTOON},
		{"unknown defaults to toon", "xml", output.FormatTOON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getFormat(AnalyzeInput{Format: tt.format})
			if result != tt.expected {
				t.Errorf("getFormat(%q) = %v, want %v", tt.format, result, tt.expected)
			}
		})
	}
}

// TestToolError verifies error result formatting.
func TestToolError(t *testing.T) {
	result, _, err := toolError("test error message")
	if err != nil {
		t.Fatalf("toolError returned unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("toolError returned nil result")
	}
	if !result.IsError {
		t.Error("toolError result.IsError should be true")
	}
	if len(result.Content) == 0 {
		t.Fatal("toolError result has no content")
	}
	textContent, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("toolError content is not TextContent: %T", result.Content[0])
	}
	if textContent.Text != "Error: test error message" {
		t.Errorf("toolError text = %q, want %q", textContent.Text, "Error: test error message")
	}
}

// TestToolResult verifies successful result formatting.
func TestToolResult(t *testing.T) {
	data := map[string]any{
		"key": "value",
		"num": 42,
	}
	result, _, err := toolResult(data, getFormat(AnalyzeInput{}))
	if err != nil {
		t.Fatalf("toolResult returned error: %v", err)
	}
	if result == nil {
		t.Fatal("toolResult returned nil")
	}
	if result.IsError {
		t.Error("toolResult.IsError should be false")
	}
	if len(result.Content) == 0 {
		t.Fatal("toolResult has no content")
	}
	textContent, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("toolResult content is not TextContent: %T", result.Content[0])
	}
	if textContent.Text == "" {
		t.Error("toolResult text is empty")
	}
}

// TestFormatOutput verifies output formatting works for all formats.
func TestFormatOutput(t *testing.T) {
	data := map[string]any{
		"name":  "test",
		"value": 123,
	}

	formats := []string{"", "toon", "json", "markdown"}
	for _, format := range formats {
		t.Run(format, func(t *testing.T) {
			text, err := formatOutput(data, getFormat(AnalyzeInput{Format: format}))
			if err != nil {
				t.Errorf("formatOutput failed for format %q: %v", format, err)
			}
			if text == "" {
				t.Errorf("formatOutput returned empty string for format %q", format)
			}
		})
	}
}

// TestFormatOutputMarkdownFenced verifies markdown output is fenced.
func TestFormatOutputMarkdownFenced(t *testing.T) {
	text, err := formatOutput(map[string]any{"k": "v"}, output.FormatMarkdown)
	if err != nil {
		t.Fatalf("formatOutput returned error: %v", err)
	}
	if !strings.HasPrefix(text, "```\n") || !strings.HasSuffix(text, "\n```") {
		t.Errorf("markdown output not fenced: %q", text)
	}
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func noCacheInput(dir, format string) AnalyzeInput {
	return AnalyzeInput{Path: dir, Format: format, NoCache: true}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("nil result")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	textContent, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is not TextContent: %T", result.Content[0])
	}
	return textContent.Text
}

// TestHandleComplexity tests the complexity analyzer tool handler.
func TestHandleComplexity(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, tmpDir, "main.go", `package main

func branchy(n int) int {
	if n > 0 {
		if n > 1 {
			if n > 2 {
				return 3
			}
			return 2
		}
		return 1
	}
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			n++
		}
	}
	return 0
}
`)

	input := ComplexityInput{AnalyzeInput: noCacheInput(tmpDir, "json")}
	result, _, err := handleAnalyzeComplexity(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyzeComplexity returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleAnalyzeComplexity returned tool error: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "branchy") {
		t.Error("result should mention the analyzed function")
	}
}

// TestHandleDuplicates tests the duplicates analyzer tool handler.
func TestHandleDuplicates(t *testing.T) {
	tmpDir := t.TempDir()
	body := `package main

func transform(xs []int) []int {
	out := make([]int, 0, len(xs))
	for _, x := range xs {
		if x < 0 {
			continue
		}
		out = append(out, x*x)
	}
	return out
}
`
	writeTestFile(t, tmpDir, "a.go", body)
	writeTestFile(t, tmpDir, "b.go", body)

	input := DuplicatesInput{AnalyzeInput: noCacheInput(tmpDir, "json")}
	result, _, err := handleAnalyzeDuplicates(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyzeDuplicates returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleAnalyzeDuplicates returned tool error: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "groups") {
		t.Error("result should contain duplicate groups")
	}
}

// TestHandleDependencies tests the manifest analyzer tool handler.
func TestHandleDependencies(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, tmpDir, "svc-a/requirements.txt", "requests==2.1.0\n")
	writeTestFile(t, tmpDir, "svc-b/requirements.txt", "requests==2.2.0\n")

	input := DependenciesInput{AnalyzeInput: noCacheInput(tmpDir, "json")}
	result, _, err := handleAnalyzeDependencies(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyzeDependencies returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleAnalyzeDependencies returned tool error: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "requests") {
		t.Error("result should mention the conflicting package")
	}
}

// TestHandleDependenciesBadFeed verifies a broken feed file becomes a tool error.
func TestHandleDependenciesBadFeed(t *testing.T) {
	tmpDir := t.TempDir()
	feed := filepath.Join(tmpDir, "feed.json")
	if err := os.WriteFile(feed, []byte(`{"pkg": 1}`), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}

	input := DependenciesInput{AnalyzeInput: noCacheInput(tmpDir, "json"), Feed: feed}
	result, _, err := handleAnalyzeDependencies(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyzeDependencies returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for malformed feed")
	}
}

// TestHandleGraph tests the symbol graph tool handler.
func TestHandleGraph(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, tmpDir, "main.go", `package main

func main() {
	helper()
}
`)
	writeTestFile(t, tmpDir, "util.go", `package main

func helper() {
	println("helping")
}
`)

	input := GraphInput{AnalyzeInput: noCacheInput(tmpDir, "json"), Top: 5}
	result, _, err := handleAnalyzeGraph(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyzeGraph returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleAnalyzeGraph returned tool error: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "helper") {
		t.Error("result should rank the referenced symbol")
	}
}

// TestHandleProject tests the merged report tool handler.
func TestHandleProject(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, tmpDir, "main.go", `package main

func main() {
	println("hi")
}
`)

	input := ProjectInput{AnalyzeInput: noCacheInput(tmpDir, "json")}
	result, _, err := handleAnalyzeProject(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyzeProject returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleAnalyzeProject returned tool error: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "summary") {
		t.Error("result should contain the report summary")
	}
}

// TestHandleProjectUnknownAnalyzer verifies analyzer selection is validated.
func TestHandleProjectUnknownAnalyzer(t *testing.T) {
	input := ProjectInput{
		AnalyzeInput: noCacheInput(t.TempDir(), "json"),
		Analyzers:    []string{"phrenology"},
	}
	result, _, err := handleAnalyzeProject(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyzeProject returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for unknown analyzer")
	}
}

// TestHandleProjectInvalidRoot verifies an unusable root becomes a tool error.
func TestHandleProjectInvalidRoot(t *testing.T) {
	input := ProjectInput{
		AnalyzeInput: noCacheInput(filepath.Join(t.TempDir(), "missing"), "json"),
	}
	result, _, err := handleAnalyzeProject(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyzeProject returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for missing root")
	}
}

// TestParseFrontmatter verifies prompt frontmatter extraction.
func TestParseFrontmatter(t *testing.T) {
	desc, body := parseFrontmatter([]byte("---\ndescription: does things\n---\n\nthe body\n"))
	if desc != "does things" {
		t.Errorf("description = %q, want %q", desc, "does things")
	}
	if body != "the body\n" {
		t.Errorf("body = %q, want %q", body, "the body\n")
	}

	desc, body = parseFrontmatter([]byte("no frontmatter here\n"))
	if desc != "" {
		t.Errorf("description = %q, want empty", desc)
	}
	if body != "no frontmatter here\n" {
		t.Errorf("body = %q", body)
	}
}

// TestEmbeddedPrompts verifies every embedded prompt has frontmatter and a body.
func TestEmbeddedPrompts(t *testing.T) {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		t.Fatalf("reading embedded prompts: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded prompts found")
	}

	for _, entry := range entries {
		t.Run(entry.Name(), func(t *testing.T) {
			content, err := promptFiles.ReadFile(filepath.Join("prompts", entry.Name()))
			if err != nil {
				t.Fatalf("reading %s: %v", entry.Name(), err)
			}
			desc, body := parseFrontmatter(content)
			if desc == "" {
				t.Error("prompt has no description frontmatter")
			}
			if strings.TrimSpace(body) == "" {
				t.Error("prompt body is empty")
			}
		})
	}
}

// TestPromptHandler verifies prompt handlers return the body as a user message.
func TestPromptHandler(t *testing.T) {
	handler := makePromptHandler("a description", "the prompt body")

	result, err := handler(context.Background(), &mcp.GetPromptRequest{})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.Description != "a description" {
		t.Errorf("description = %q", result.Description)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(result.Messages))
	}
	msg := result.Messages[0]
	if msg.Role != "user" {
		t.Errorf("role = %q, want user", msg.Role)
	}
	textContent, ok := msg.Content.(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", msg.Content)
	}
	if textContent.Text != "the prompt body" {
		t.Errorf("text = %q", textContent.Text)
	}
}

// TestGenerateManifest verifies the server manifest serializes.
func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	if err != nil {
		t.Fatalf("GenerateManifest returned error: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "io.github.panbanda/vitals") {
		t.Error("manifest missing server name")
	}
	if !strings.Contains(out, "1.2.3") {
		t.Error("manifest missing version")
	}

	data, err = GenerateManifest("")
	if err != nil {
		t.Fatalf("GenerateManifest(\"\") returned error: %v", err)
	}
	if !strings.Contains(string(data), "0.0.0") {
		t.Error("empty version should default to 0.0.0")
	}
}
