package service

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrUnknownChallenge 在挑战 slug 不存在时返回
var ErrUnknownChallenge = errors.New("unknown challenge")

var (
	focusAreaMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	focusAreaSanitizer = bluemonday.UGCPolicy()
)

// FocusArea 描述挑战中一周的主题
// DefaultWeek 为默认顺序下对应的周数（1-4），用户可自行重排
// Description 为 Markdown 文本，对外输出前渲染并消毒
type FocusArea struct {
	Slug           string
	Title          string
	DefaultWeek    int
	Description    string
	Evidence       string
	SurveyQuestion string
}

// ChallengeDefinition 描述一期固定 4 周的引导式挑战，运行期只读
type ChallengeDefinition struct {
	Slug       string
	Title      string
	FocusAreas []FocusArea
}

// challengeDefinitions 是内置挑战的规范列表。
// slug 会被客户端与排期行持久化引用，保持稳定。
func challengeDefinitions() []ChallengeDefinition {
	return []ChallengeDefinition{
		{
			Slug:  "foundations-4week",
			Title: "健康基石 4 周挑战",
			FocusAreas: []FocusArea{
				{
					Slug:           "sleep",
					Title:          "睡眠",
					DefaultWeek:    1,
					Description:    "固定就寝时间，睡前一小时**远离屏幕**，让身体建立稳定的入睡信号。",
					Evidence:       "规律的睡眠时间与更好的代谢和情绪调节相关。",
					SurveyQuestion: "过去一周你的睡眠质量如何？",
				},
				{
					Slug:           "movement",
					Title:          "运动",
					DefaultWeek:    2,
					Description:    "每天累计 **10 分钟以上** 的中等强度活动，散步、拉伸都算数。",
					Evidence:       "碎片化的轻量运动同样能显著降低久坐带来的健康风险。",
					SurveyQuestion: "过去一周你有几天进行了主动运动？",
				},
				{
					Slug:           "nutrition",
					Title:          "饮食",
					DefaultWeek:    3,
					Description:    "每餐加一份蔬菜或水果，用*替换*而不是*禁止*来改善饮食结构。",
					Evidence:       "增加蔬果摄入是依从性最高的饮食干预方式之一。",
					SurveyQuestion: "过去一周你的饮食均衡程度如何？",
				},
				{
					Slug:           "stress",
					Title:          "压力",
					DefaultWeek:    4,
					Description:    "每天留出 5 分钟做深呼吸或正念练习，给情绪一个缓冲带。",
					Evidence:       "短时呼吸练习可以快速降低皮质醇水平。",
					SurveyQuestion: "过去一周你感到压力过大的频率是？",
				},
			},
		},
	}
}

// ChallengeBySlug 按 slug 查找挑战定义
func ChallengeBySlug(slug string) (ChallengeDefinition, error) {
	for _, def := range challengeDefinitions() {
		if def.Slug == slug {
			return def, nil
		}
	}
	return ChallengeDefinition{}, fmt.Errorf("%w: %s", ErrUnknownChallenge, slug)
}

// FocusAreaSlugs 返回定义中主题 slug 的默认顺序
func (d ChallengeDefinition) FocusAreaSlugs() []string {
	slugs := make([]string, 0, len(d.FocusAreas))
	for _, area := range d.FocusAreas {
		slugs = append(slugs, area.Slug)
	}
	return slugs
}

// FocusAreaBySlug 在定义内查找主题
func (d ChallengeDefinition) FocusAreaBySlug(slug string) (FocusArea, bool) {
	for _, area := range d.FocusAreas {
		if area.Slug == slug {
			return area, true
		}
	}
	return FocusArea{}, false
}

// RenderFocusAreaHTML 将主题描述的 Markdown 渲染为已消毒的 HTML
func RenderFocusAreaHTML(area FocusArea) (string, error) {
	var buf bytes.Buffer
	if err := focusAreaMarkdown.Convert([]byte(area.Description), &buf); err != nil {
		return "", fmt.Errorf("render focus area %s: %w", area.Slug, err)
	}
	return focusAreaSanitizer.Sanitize(buf.String()), nil
}
