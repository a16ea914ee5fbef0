// Package generation 内容生成编排：校验、提示词、限流、模型调用、HTML 提取与用量记账
package generation

import (
	"fmt"
	"sort"
	"strings"

	"content-forge-api/internal/domain/entity"
	apperrors "content-forge-api/pkg/errors"
)

// Form 按字段白名单清洗后的表单，值已归一为文本或文本列表
type Form struct {
	texts map[string]string
	lists map[string][]string
}

// Text 返回文本字段；列表字段以 ", " 连接
func (f Form) Text(name string) string {
	if v, ok := f.texts[name]; ok {
		return v
	}
	if items, ok := f.lists[name]; ok {
		return strings.Join(items, ", ")
	}
	return ""
}

// List 返回列表字段；文本字段视为单元素列表
func (f Form) List(name string) []string {
	if items, ok := f.lists[name]; ok {
		return items
	}
	if v, ok := f.texts[name]; ok {
		return []string{v}
	}
	return nil
}

// Has 字段是否存在且非空
func (f Form) Has(name string) bool {
	if v, ok := f.texts[name]; ok {
		return v != ""
	}
	return len(f.lists[name]) > 0
}

// Names 返回已填写字段名（有序）
func (f Form) Names() []string {
	names := make([]string, 0, len(f.texts)+len(f.lists))
	for k := range f.texts {
		names = append(names, k)
	}
	for k := range f.lists {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values 导出为普通 map，用于通用模板序列化
func (f Form) Values() map[string]any {
	out := make(map[string]any, len(f.texts)+len(f.lists))
	for k, v := range f.texts {
		out[k] = v
	}
	for k, v := range f.lists {
		out[k] = v
	}
	return out
}

// Validate 校验模板与必填字段，并把表单限制到内容类型的字段白名单内
func Validate(req entity.GenerationRequest) (entity.ContentSpec, Form, error) {
	if strings.TrimSpace(req.Template) == "" {
		return entity.ContentSpec{}, Form{}, apperrors.ErrMissingTemplate
	}
	spec, ok := entity.LookupContentType(req.ContentType)
	if !ok {
		return entity.ContentSpec{}, Form{}, apperrors.ErrUnknownContentType.WithDetail(req.ContentType)
	}

	form := RestrictForm(spec, req.FormData)
	for _, field := range spec.Fields {
		if field.Required && !form.Has(field.Name) {
			return spec, Form{}, apperrors.ErrInvalidFormData.WithDetail("missing required field: " + field.Name)
		}
	}
	return spec, form, nil
}

// RestrictForm 丢弃白名单以外的字段，并归一字段值
func RestrictForm(spec entity.ContentSpec, data map[string]any) Form {
	form := Form{texts: map[string]string{}, lists: map[string][]string{}}
	for _, field := range spec.Fields {
		raw, ok := data[field.Name]
		if !ok || raw == nil {
			continue
		}
		if field.List {
			if items := toList(raw); len(items) > 0 {
				form.lists[field.Name] = items
			}
			continue
		}
		if s := toText(raw); s != "" {
			form.texts[field.Name] = s
		}
	}
	return form
}

func toList(v any) []string {
	switch t := v.(type) {
	case []string:
		return compact(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, toText(item))
		}
		return compact(items)
	default:
		if s := toText(v); s != "" {
			return []string{s}
		}
		return nil
	}
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []string, []any:
		return strings.Join(toList(t), ", ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := toText(t[k]); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
