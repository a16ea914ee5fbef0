package generation

import (
	"strings"
	"testing"

	"content-forge-api/internal/domain/service"
	apperrors "content-forge-api/pkg/errors"
)

func TestExtractHTML(t *testing.T) {
	tests := []struct {
		name string
		raw  service.RawResponse
		want string
	}{
		{name: "plain text is wrapped", raw: service.TextResponse{Text: "Hello"}, want: "<div>Hello</div>"},
		{name: "code fences stripped", raw: service.TextResponse{Text: "```html\n<p>x</p>\n```"}, want: "<p>x</p>"},
		{name: "html payload used verbatim", raw: service.HTMLPayload{HTML: `<section class="a">ok</section>`}, want: `<section class="a">ok</section>`},
		{name: "function call html", raw: service.FunctionCallResponse{Name: "generate_content", Arguments: `{"html":"<article>fc</article>"}`}, want: "<article>fc</article>"},
		{name: "function call text falls back to markdown", raw: service.FunctionCallResponse{Arguments: `{"text":"plain"}`}, want: "<div>plain</div>"},
		{name: "json embedded in text", raw: service.TextResponse{Text: "```json\n{\"html\": \"<p>j</p>\"}\n```"}, want: "<p>j</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractHTML(tt.raw)
			if err != nil {
				t.Fatalf("ExtractHTML() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ExtractHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractHTML_Empty(t *testing.T) {
	for name, raw := range map[string]service.RawResponse{
		"nil":                nil,
		"blank text":         service.TextResponse{Text: "  \n"},
		"blank html":         service.HTMLPayload{},
		"function no fields": service.FunctionCallResponse{Arguments: `{"title":"x"}`},
		"function bad json":  service.FunctionCallResponse{Arguments: `{"html":`},
		"only a script":      service.HTMLPayload{HTML: "<script>alert(1)</script>"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractHTML(raw)
			if !apperrors.HasCode(err, apperrors.CodeEmptyResponse) {
				t.Fatalf("error = %v, want EmptyResponse", err)
			}
		})
	}
}

func TestExtractHTML_NeverReturnsScripts(t *testing.T) {
	inputs := []service.RawResponse{
		service.TextResponse{Text: "<script>alert(1)</script>hello"},
		service.TextResponse{Text: "# Title\n<div><p>a<script src=x></script></p></div>"},
		service.HTMLPayload{HTML: "<div><div><span><SCRIPT>steal()</SCRIPT></span></div></div>"},
		service.FunctionCallResponse{Arguments: `{"html":"<ul><li>x<script>1</script></li></ul>"}`},
		service.TextResponse{Text: "text <scr<script>ipt>alert(1)</script>"},
		service.HTMLPayload{HTML: "<xmp><script>alert(1)</script></xmp>"},
		service.HTMLPayload{HTML: "<noembed><script>alert(1)</script></noembed>"},
		service.HTMLPayload{HTML: "<noframes><script>alert(1)</script></noframes>"},
		service.HTMLPayload{HTML: "<div><plaintext><script>alert(1)</script></div>"},
		service.TextResponse{Text: "intro <xmp><script>alert(1)</script></xmp>"},
	}
	for _, in := range inputs {
		got, err := ExtractHTML(in)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(got), "<script") {
			t.Errorf("script survived extraction: %q", got)
		}
	}
}

func TestExtractHTML_RawTextElementsDropped(t *testing.T) {
	got, err := ExtractHTML(service.HTMLPayload{HTML: "<p>keep</p><xmp><img src=x onerror=alert(1)></xmp>"})
	if err != nil {
		t.Fatalf("ExtractHTML() error = %v", err)
	}
	lower := strings.ToLower(got)
	if strings.Contains(lower, "onerror") || strings.Contains(lower, "<xmp") {
		t.Fatalf("raw text element survived: %q", got)
	}
	if !strings.Contains(got, "<p>keep</p>") {
		t.Fatalf("safe content lost: %q", got)
	}
}

func TestMarkdownToHTML_InlineOrder(t *testing.T) {
	got, err := ExtractHTML(service.TextResponse{Text: "**bold** and *italic* and [link](http://x)"})
	if err != nil {
		t.Fatalf("ExtractHTML() error = %v", err)
	}
	strong := strings.Index(got, "<strong>bold</strong>")
	em := strings.Index(got, "<em>italic</em>")
	link := strings.Index(got, `<a href="http://x"`)
	if strong < 0 || em < 0 || link < 0 {
		t.Fatalf("missing converted elements: %q", got)
	}
	if !(strong < em && em < link) {
		t.Fatalf("elements out of order: %q", got)
	}
	if !strings.Contains(got, `target="_blank"`) {
		t.Fatalf("link missing target: %q", got)
	}
}

func TestMarkdownToHTML_Blocks(t *testing.T) {
	got := MarkdownToHTML("# Title\n## Sub\n### Small\n* one\n* two\nafter\n* three")

	for _, want := range []string{
		"<h1>Title</h1>",
		"<h2>Sub</h2>",
		"<h3>Small</h3>",
		"<ul><li>one</li><li>two</li></ul>",
		"<ul><li>three</li></ul>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("MarkdownToHTML() missing %q in %q", want, got)
		}
	}
	if strings.HasPrefix(got, "<div>") {
		t.Errorf("fragment starting with a tag should not be wrapped: %q", got)
	}
}

func TestClassifyText(t *testing.T) {
	if _, ok := ClassifyText(`{"html":"<p>x</p>"}`).(service.HTMLPayload); !ok {
		t.Error("json object with html key should classify as HTMLPayload")
	}
	if _, ok := ClassifyText(`{"title":"x"}`).(service.TextResponse); !ok {
		t.Error("json without html key should stay text")
	}
	if _, ok := ClassifyText("just words").(service.TextResponse); !ok {
		t.Error("plain words should stay text")
	}
}
