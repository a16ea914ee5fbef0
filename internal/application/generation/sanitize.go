package generation

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockedElements 可执行脚本或加载外部活动内容的元素，连同子树一起移除
var blockedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Frame:    true,
	atom.Frameset: true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Applet:   true,
	atom.Base:     true,
	atom.Link:     true,
	atom.Meta:     true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Math:     true,
	atom.Form:     true,

	// 原始文本元素：渲染时子节点原样输出，不转义
	atom.Xmp:       true,
	atom.Noembed:   true,
	atom.Noframes:  true,
	atom.Plaintext: true,
}

var urlAttributes = map[string]bool{
	"href":       true,
	"src":        true,
	"action":     true,
	"formaction": true,
	"background": true,
	"poster":     true,
	"cite":       true,
	"data":       true,
	"xlink:href": true,
	"lowsrc":     true,
	"dynsrc":     true,
}

var blockedSchemes = []string{"javascript:", "vbscript:", "data:"}

// Sanitize 以 body 为上下文解析片段，移除脚本类元素与属性后重新序列化
func Sanitize(fragment string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if dropNode(n) {
			continue
		}
		cleanNode(n)
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func dropNode(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return true
	case html.ElementNode:
		if blockedElements[n.DataAtom] {
			return true
		}
		// 未识别为 atom 的元素按名称兜底，非法标签名（如 "scr<script"）整体丢弃
		switch strings.ToLower(n.Data) {
		case "script", "iframe", "object", "embed", "svg", "math", "xmp", "noembed", "noframes", "plaintext":
			return true
		}
		if n.DataAtom == 0 && !validTagName(n.Data) {
			return true
		}
	}
	return false
}

func cleanNode(n *html.Node) {
	if n.Type == html.ElementNode {
		n.Attr = cleanAttrs(n.Attr)
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if dropNode(c) {
			n.RemoveChild(c)
		} else {
			cleanNode(c)
		}
		c = next
	}
}

func cleanAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if a.Namespace != "" {
			key = strings.ToLower(a.Namespace) + ":" + key
		}
		switch {
		case strings.HasPrefix(key, "on"):
			continue
		case key == "srcdoc" || key == "srcset":
			continue
		case key == "style" && unsafeStyle(a.Val):
			continue
		case urlAttributes[key] && unsafeURL(a.Val):
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func unsafeURL(v string) bool {
	normalized := strings.ToLower(strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, v))
	for _, scheme := range blockedSchemes {
		if strings.HasPrefix(normalized, scheme) {
			return true
		}
	}
	return false
}

func unsafeStyle(v string) bool {
	s := strings.ToLower(v)
	return strings.Contains(s, "expression(") || strings.Contains(s, "javascript:") || strings.Contains(s, "url(")
}

func validTagName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
