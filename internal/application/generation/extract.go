package generation

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"content-forge-api/internal/domain/service"
	apperrors "content-forge-api/pkg/errors"
)

var (
	fenceRe  = regexp.MustCompile("```(?:html|json)?")
	h3Re     = regexp.MustCompile(`^### (.*)$`)
	h2Re     = regexp.MustCompile(`^## (.*)$`)
	h1Re     = regexp.MustCompile(`^# (.*)$`)
	bulletRe = regexp.MustCompile(`^\* (.*)$`)
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.+?)\*`)
	linkRe   = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// ExtractHTML 把模型原始输出转为已净化的 HTML 片段
func ExtractHTML(raw service.RawResponse) (string, error) {
	fragment, err := rawFragment(raw)
	if err != nil {
		return "", err
	}
	out, err := Sanitize(fragment)
	if err != nil {
		return "", apperrors.ErrEmptyResponse.WithError(err)
	}
	if strings.TrimSpace(out) == "" {
		return "", apperrors.ErrEmptyResponse.WithDetail("no content left after sanitization")
	}
	return out, nil
}

func rawFragment(raw service.RawResponse) (string, error) {
	switch r := raw.(type) {
	case service.FunctionCallResponse:
		var args map[string]any
		if err := json.Unmarshal([]byte(r.Arguments), &args); err != nil {
			return "", apperrors.ErrEmptyResponse.WithDetail("malformed function call arguments").WithError(err)
		}
		if h, _ := args["html"].(string); strings.TrimSpace(h) != "" {
			return h, nil
		}
		for _, key := range []string{"text", "content"} {
			if t, _ := args[key].(string); strings.TrimSpace(t) != "" {
				return MarkdownToHTML(t), nil
			}
		}
		return "", apperrors.ErrEmptyResponse.WithDetail("function call carried no html or text")
	case service.HTMLPayload:
		if strings.TrimSpace(r.HTML) == "" {
			return "", apperrors.ErrEmptyResponse
		}
		return r.HTML, nil
	case service.TextResponse:
		if strings.TrimSpace(r.Text) == "" {
			return "", apperrors.ErrEmptyResponse
		}
		if p, ok := ClassifyText(r.Text).(service.HTMLPayload); ok {
			return rawFragment(p)
		}
		return MarkdownToHTML(r.Text), nil
	default:
		return "", apperrors.ErrEmptyResponse
	}
}

// ClassifyText 识别嵌在文本里的 JSON 载荷（{"html": "..."}），否则保持为文本
func ClassifyText(text string) service.RawResponse {
	trimmed := strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var payload struct {
			HTML *string `json:"html"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload.HTML != nil {
			return service.HTMLPayload{HTML: *payload.HTML}
		}
	}
	return service.TextResponse{Text: text}
}

// MarkdownToHTML 去掉代码围栏后做简化 markdown 转换：
// 标题、列表、粗体、斜体、链接依次处理；结果不以标签开头时包一层 div
func MarkdownToHTML(text string) string {
	text = strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	lines := strings.Split(text, "\n")

	out := make([]string, 0, len(lines))
	inList := false
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		block, isItem := convertBlock(line)
		block = convertInline(block)
		switch {
		case isItem && inList:
			out[len(out)-1] += block
		case isItem:
			out = append(out, "<ul>"+block)
			inList = true
		default:
			if inList {
				out[len(out)-1] += "</ul>"
				inList = false
			}
			out = append(out, block)
		}
	}
	if inList {
		out[len(out)-1] += "</ul>"
	}

	result := strings.Join(out, "\n")
	if !strings.HasPrefix(strings.TrimSpace(result), "<") {
		result = "<div>" + result + "</div>"
	}
	return result
}

func convertBlock(line string) (string, bool) {
	switch {
	case h3Re.MatchString(line):
		return h3Re.ReplaceAllString(line, "<h3>$1</h3>"), false
	case h2Re.MatchString(line):
		return h2Re.ReplaceAllString(line, "<h2>$1</h2>"), false
	case h1Re.MatchString(line):
		return h1Re.ReplaceAllString(line, "<h1>$1</h1>"), false
	case bulletRe.MatchString(line):
		return bulletRe.ReplaceAllString(line, "<li>$1</li>"), true
	}
	return line, false
}

func convertInline(s string) string {
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")
	return linkRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := linkRe.FindStringSubmatch(m)
		return `<a href="` + html.EscapeString(parts[2]) + `" target="_blank" rel="noopener noreferrer">` + parts[1] + `</a>`
	})
}
