package entity

import "fmt"

// MaxCategoryScore 单项评分上限，三项平均后乘 5 得到 0-5 分
const MaxCategoryScore = 1.0

// Rating 一次模型评分
type Rating struct {
	ContentAccuracy float64 `json:"content_accuracy"`
	Formatting      float64 `json:"formatting"`
	OverallQuality  float64 `json:"overall_quality"`
}

// Validate 校验各项评分范围
func (r Rating) Validate() error {
	scores := map[string]float64{
		"content_accuracy": r.ContentAccuracy,
		"formatting":       r.Formatting,
		"overall_quality":  r.OverallQuality,
	}
	for _, name := range []string{"content_accuracy", "formatting", "overall_quality"} {
		if v := scores[name]; v < 0 || v > MaxCategoryScore {
			return fmt.Errorf("%s must be between 0 and %g, got %g", name, MaxCategoryScore, v)
		}
	}
	return nil
}
