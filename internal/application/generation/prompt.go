package generation

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"content-forge-api/internal/domain/entity"
)

//go:embed templates/*.txt
var templatesFS embed.FS

const notProvided = "Not provided"

// PromptBuilder 按内容类型渲染提示词，纯函数，无 I/O（模板在首次使用时从 embed 读取并缓存）
type PromptBuilder struct {
	mu    sync.RWMutex
	cache map[entity.ContentType]einoprompt.ChatTemplate
}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		cache: make(map[entity.ContentType]einoprompt.ChatTemplate),
	}
}

// Build 渲染提示词。form 须已按白名单清洗；未知内容类型回退为通用模板
func (b *PromptBuilder) Build(ctx context.Context, ct entity.ContentType, form Form, template string) string {
	vars, ok := promptVars(ct, form, template)
	if !ok {
		return genericPrompt(form)
	}
	tpl, err := b.chatTemplate(ct)
	if err != nil {
		return genericPrompt(form)
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil || len(msgs) == 0 {
		return genericPrompt(form)
	}
	return strings.TrimSpace(msgs[len(msgs)-1].Content)
}

func (b *PromptBuilder) chatTemplate(ct entity.ContentType) (einoprompt.ChatTemplate, error) {
	b.mu.RLock()
	if tpl, ok := b.cache[ct]; ok {
		b.mu.RUnlock()
		return tpl, nil
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if tpl, ok := b.cache[ct]; ok {
		return tpl, nil
	}

	text, err := readEmbeddedText(templateFile(ct))
	if err != nil {
		return nil, err
	}
	tpl := einoprompt.FromMessages(schema.FString, schema.UserMessage(text))
	b.cache[ct] = tpl
	return tpl, nil
}

func templateFile(ct entity.ContentType) string {
	if ct == entity.ContentBusinessProposal {
		ct = entity.ContentLandingPage
	}
	return fmt.Sprintf("templates/%s.txt", ct)
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func genericPrompt(form Form) string {
	b, err := json.Marshal(form.Values())
	if err != nil {
		b = []byte("{}")
	}
	return "Generate content based on: " + string(b)
}

// promptVars 每种内容类型的缺省字段渲染规则是固定的，不随请求变化
func promptVars(ct entity.ContentType, f Form, template string) (map[string]any, bool) {
	or := func(name, fallback string) string {
		if v := f.Text(name); v != "" {
			return v
		}
		return fallback
	}
	joinOr := func(name, sep, fallback string) string {
		if items := f.List(name); len(items) > 0 {
			return strings.Join(items, sep)
		}
		return fallback
	}
	wrapperOpen := fmt.Sprintf(`<div class="%s template-%s">`, ct, strings.ToLower(template))

	switch ct {
	case entity.ContentResume:
		return map[string]any{
			"template":       template,
			"fullName":       f.Text("fullName"),
			"email":          f.Text("email"),
			"phone":          or("phone", notProvided),
			"linkedin":       or("linkedin", notProvided),
			"github":         or("github", notProvided),
			"summary":        or("summary", notProvided),
			"workExperience": joinOr("workExperience", "; ", "No work experience listed."),
			"education":      joinOr("education", "; ", "No education listed."),
			"skills":         joinOr("skills", ", ", "No skills listed."),
		}, true
	case entity.ContentPoster:
		return map[string]any{
			"template":     template,
			"title":        f.Text("title"),
			"subtitle":     f.Text("subtitle"),
			"body":         f.Text("body"),
			"callToAction": f.Text("callToAction"),
			"contactInfo":  f.Text("contactInfo"),
		}, true
	case entity.ContentSocialPost:
		mentions := f.List("mentions")
		tagged := make([]string, 0, len(mentions))
		for _, m := range mentions {
			tagged = append(tagged, "@"+strings.TrimPrefix(m, "@"))
		}
		mentionText := "None"
		if len(tagged) > 0 {
			mentionText = strings.Join(tagged, " ")
		}
		return map[string]any{
			"platform": f.Text("platform"),
			"content":  f.Text("content"),
			"hashtags": joinOr("hashtags", " ", "None"),
			"mentions": mentionText,
			"tone":     or("tone", "Neutral"),
		}, true
	case entity.ContentSocialAdCopy:
		return map[string]any{
			"platform":       or("platform", "general"),
			"product":        f.Text("product"),
			"targetAudience": or("targetAudience", notProvided),
			"keyBenefit":     f.Text("keyBenefit"),
			"callToAction":   or("callToAction", notProvided),
		}, true
	case entity.ContentEmailMarketing:
		return map[string]any{
			"emailType":    f.Text("emailType"),
			"wrapperOpen":  wrapperOpen,
			"subjectLine":  f.Text("subjectLine"),
			"preheader":    or("preheader", notProvided),
			"body":         f.Text("body"),
			"callToAction": or("callToAction", notProvided),
		}, true
	case entity.ContentProductDescriptions:
		return map[string]any{
			"wrapperOpen":    wrapperOpen,
			"productName":    f.Text("productName"),
			"keyFeatures":    f.Text("keyFeatures"),
			"benefits":       f.Text("benefits"),
			"targetAudience": or("targetAudience", notProvided),
		}, true
	case entity.ContentLandingPage, entity.ContentBusinessProposal:
		kind := "landing page"
		if ct == entity.ContentBusinessProposal {
			kind = "business proposal"
		}
		return map[string]any{
			"pageKind":         kind,
			"template":         template,
			"headline":         f.Text("headline"),
			"subheadline":      or("subheadline", notProvided),
			"valueProposition": f.Text("valueProposition"),
			"features":         joinOr("features", ", ", notProvided),
			"targetAudience":   f.Text("targetAudience"),
			"primaryCTA":       f.Text("primaryCTA"),
			"secondaryCTA":     or("secondaryCTA", notProvided),
			"socialProof":      or("socialProof", notProvided),
		}, true
	case entity.ContentWebsiteCopy:
		return map[string]any{
			"template":       template,
			"pageType":       f.Text("pageType"),
			"targetAudience": f.Text("targetAudience"),
			"keyMessage":     f.Text("keyMessage"),
			"callToAction":   or("callToAction", notProvided),
		}, true
	case entity.ContentPressReleases:
		return map[string]any{
			"headline":     f.Text("headline"),
			"companyName":  f.Text("companyName"),
			"city":         f.Text("city"),
			"state":        f.Text("state"),
			"releaseDate":  or("releaseDate", "FOR IMMEDIATE RELEASE"),
			"body":         f.Text("body"),
			"contactName":  or("contactName", "Media Relations"),
			"contactEmail": f.Text("contactEmail"),
			"contactPhone": f.Text("contactPhone"),
		}, true
	default:
		return nil, false
	}
}
