package markup

import "testing"

func TestSanitizeCSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no escape needed", "body { color: red; }", "body { color: red; }"},
		{"escapes style close", "</style>", `<\/style>`},
		{"multiple occurrences", "</a></b>", `<\/a><\/b>`},
		{"case variation", "</STYLE>", `<\/STYLE>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SanitizeCSS(tt.input); got != tt.expected {
				t.Errorf("SanitizeCSS(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInjectCSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		page     string
		css      string
		expected string
	}{
		{
			name:     "empty CSS returns page unchanged",
			page:     "<html><head></head><body>Hello</body></html>",
			css:      "",
			expected: "<html><head></head><body>Hello</body></html>",
		},
		{
			name:     "injects before </head>",
			page:     "<html><head></head><body>Hello</body></html>",
			css:      "body { color: red; }",
			expected: "<html><head><style>body { color: red; }</style></head><body>Hello</body></html>",
		},
		{
			name:     "injects before </HEAD> mixed case",
			page:     "<html><HEAD></HEAD><body>Hello</body></html>",
			css:      "p{}",
			expected: "<html><HEAD><style>p{}</style></HEAD><body>Hello</body></html>",
		},
		{
			name:     "injects after <body> with attributes",
			page:     `<html><body class="main">Hello</body></html>`,
			css:      "p{}",
			expected: `<html><body class="main"><style>p{}</style>Hello</body></html>`,
		},
		{
			name:     "prepends to bare fragment",
			page:     "<p>Hello</p>",
			css:      "p { color: blue; }",
			expected: "<style>p { color: blue; }</style><p>Hello</p>",
		},
		{
			name:     "sanitizes break-out attempt",
			page:     "<head></head>",
			css:      "</style><script>alert(1)</script>",
			expected: `<head><style><\/style><script>alert(1)<\/script></style></head>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := InjectCSS(tt.page, tt.css); got != tt.expected {
				t.Errorf("InjectCSS() = %q, want %q", got, tt.expected)
			}
		})
	}
}
