package template

import (
	"errors"
	"strings"
	"testing"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(map[string]any{"appName": "Account Service", "clientURL": "https://app.example.com"})
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	return r
}

func TestRenderer_VerifyEmail(t *testing.T) {
	r := newTestRenderer(t)

	html, err := r.Render("verify-email-address", map[string]any{
		"emailValidationToken": "ab12cd",
		"name":                 "Ada Lovelace",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for _, want := range []string{"AB12CD", "Hi Ada Lovelace", "https://app.example.com/verify-email?token=ab12cd", "Account Service"} {
		if !strings.Contains(html, want) {
			t.Errorf("Expected rendered email to contain %q", want)
		}
	}
}

func TestRenderer_ResetPasswordEscapesData(t *testing.T) {
	r := newTestRenderer(t)

	html, err := r.Render("reset-password", map[string]any{
		"resetCode": "QWERTYUI",
		"name":      "<script>x</script>",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(html, "QWERTYUI") {
		t.Error("Expected reset code in body")
	}
	if strings.Contains(html, "<script>x</script>") {
		t.Error("Expected name to be HTML escaped")
	}
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r := newTestRenderer(t)

	if r.Has("welcome") {
		t.Error("Expected welcome to be unknown")
	}
	_, err := r.Render("welcome", nil)
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("Expected ErrUnknownTemplate, got %v", err)
	}
}

func TestRenderString(t *testing.T) {
	got, err := RenderString("Hello {{ .name | upper }}", map[string]any{"name": "ada"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "Hello ADA" {
		t.Errorf("Expected 'Hello ADA', got %q", got)
	}

	plain, _ := RenderString("Password Reset", nil)
	if plain != "Password Reset" {
		t.Errorf("Expected plain subject unchanged, got %q", plain)
	}
}

func TestRenderString_SubjectIsPlainText(t *testing.T) {
	got, err := RenderString("Welcome {{.name}} & friends", map[string]any{"name": "O'Brien <Ops>"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "Welcome O'Brien <Ops> & friends" {
		t.Errorf("Expected unescaped subject, got %q", got)
	}
}
