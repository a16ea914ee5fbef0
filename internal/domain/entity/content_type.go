package entity

import "strings"

// ContentType 内容类型，封闭集合
type ContentType string

const (
	ContentResume              ContentType = "resume"
	ContentPoster              ContentType = "poster"
	ContentSocialPost          ContentType = "social-post"
	ContentSocialAdCopy        ContentType = "social-ad-copy"
	ContentEmailMarketing      ContentType = "email-marketing"
	ContentProductDescriptions ContentType = "product-descriptions"
	ContentLandingPage         ContentType = "landing-page"
	ContentBusinessProposal    ContentType = "business-proposal"
	ContentWebsiteCopy         ContentType = "website-copy"
	ContentPressReleases       ContentType = "press-releases"
)

// FieldSpec 表单字段定义
type FieldSpec struct {
	Name     string
	Required bool
	List     bool
}

// ContentSpec 内容类型的字段白名单
type ContentSpec struct {
	Type   ContentType
	Fields []FieldSpec
}

func req(name string) FieldSpec     { return FieldSpec{Name: name, Required: true} }
func opt(name string) FieldSpec     { return FieldSpec{Name: name} }
func optList(name string) FieldSpec { return FieldSpec{Name: name, List: true} }

var landingPageFields = []FieldSpec{
	req("headline"), req("valueProposition"), req("targetAudience"), req("primaryCTA"),
	opt("subheadline"), optList("features"), opt("secondaryCTA"), opt("socialProof"),
}

// contentCatalog 字段白名单，校验与提示词构建共用
var contentCatalog = map[ContentType][]FieldSpec{
	ContentResume: {
		req("fullName"), req("email"),
		opt("phone"), opt("linkedin"), opt("github"), opt("summary"),
		optList("workExperience"), optList("education"), optList("skills"),
	},
	ContentPoster: {
		req("title"), req("body"),
		opt("subtitle"), opt("callToAction"), opt("contactInfo"),
	},
	ContentSocialPost: {
		req("platform"), req("content"),
		optList("hashtags"), optList("mentions"), opt("tone"),
	},
	ContentSocialAdCopy: {
		req("product"), req("keyBenefit"),
		opt("targetAudience"), opt("callToAction"), opt("platform"),
	},
	ContentLandingPage:      landingPageFields,
	ContentBusinessProposal: landingPageFields,
	ContentWebsiteCopy: {
		req("pageType"), req("targetAudience"), req("keyMessage"),
		opt("callToAction"),
	},
	ContentEmailMarketing: {
		req("emailType"), req("subjectLine"), req("body"),
		opt("preheader"), opt("callToAction"),
	},
	ContentProductDescriptions: {
		req("productName"), req("keyFeatures"), req("benefits"),
		opt("targetAudience"),
	},
	ContentPressReleases: {
		req("headline"), req("companyName"), req("city"), req("state"), req("body"),
		opt("releaseDate"), opt("contactName"), opt("contactEmail"), opt("contactPhone"),
	},
}

// LookupContentType 查找内容类型定义
func LookupContentType(name string) (ContentSpec, bool) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(name)))
	fields, ok := contentCatalog[ct]
	if !ok {
		return ContentSpec{}, false
	}
	return ContentSpec{Type: ct, Fields: fields}, true
}

// ContentTypes 返回全部内容类型
func ContentTypes() []ContentType {
	return []ContentType{
		ContentResume, ContentPoster, ContentSocialPost, ContentSocialAdCopy,
		ContentEmailMarketing, ContentProductDescriptions, ContentLandingPage,
		ContentBusinessProposal, ContentWebsiteCopy, ContentPressReleases,
	}
}

// Field 按名称查找字段
func (s ContentSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}
