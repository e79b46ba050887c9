package service

import (
	"strings"

	"astro-union/internal/model"
)

// ── 期望事件构建器 ──────────────────────────────────────────
//
// 职责：从台账记录 + 展示目录推导外部日历事件的规范形态。
// 对账的 diff 以此为基准，因此必须严格确定：相同输入恒产生
// 逐字节相同的输出。任何格式改动都会让既有镜像在下一轮对账中
// 被全量"修复"，属于对账契约的破坏性变更。
// ─────────────────────────────────────────────────────────────

const ungroupedLabel = "未分组"

// ExpectedEvent 外部日历事件的规范形态
type ExpectedEvent struct {
	Summary     string
	Description string
	ColorCode   string
}

// BuildExpectedEvent 构建期望事件
//
//	summary     = 记录名
//	description = 自由描述 / 标签段 / 链接段，非空段之间以空行分隔
//	colorCode   = 颜色预设查找结果；无颜色名或查不到时为空
func BuildExpectedEvent(record *model.EventRecord, groups []model.TagGroup, preset *model.ColorPreset) ExpectedEvent {
	var sections []string

	if text := strings.TrimSpace(record.Description); text != "" {
		sections = append(sections, text)
	}
	if tagSection := buildTagSection(record.Tags, groups); tagSection != "" {
		sections = append(sections, tagSection)
	}
	if linkSection := buildLinkSection(record.Links); linkSection != "" {
		sections = append(sections, linkSection)
	}

	expected := ExpectedEvent{
		Summary:     record.Name,
		Description: strings.Join(sections, "\n\n"),
	}
	if record.ColorName != "" && preset != nil {
		expected.ColorCode = preset.ColorCode
	}
	return expected
}

// buildTagSection 按分组归并记录标签；未分组标签单独列出；无标签时返回空串
func buildTagSection(tags model.StringArray, groups []model.TagGroup) string {
	if len(tags) == 0 {
		return ""
	}

	// 标签名 → 分组名（按传入分组顺序，重名标签以先出现的分组为准）
	tagToGroup := make(map[string]string)
	for _, g := range groups {
		for _, t := range g.Tags {
			if _, ok := tagToGroup[t.Name]; !ok {
				tagToGroup[t.Name] = g.Name
			}
		}
	}

	// 保持记录内标签的原始顺序归并
	grouped := make(map[string][]string)
	var groupOrder []string
	for _, tag := range tags {
		groupName, ok := tagToGroup[tag]
		if !ok {
			groupName = ungroupedLabel
		}
		if _, seen := grouped[groupName]; !seen {
			groupOrder = append(groupOrder, groupName)
		}
		grouped[groupName] = append(grouped[groupName], tag)
	}

	// 分组顺序：目录顺序优先，未分组恒在最后
	lines := []string{"【标签】"}
	appended := make(map[string]bool)
	for _, g := range groups {
		if names, ok := grouped[g.Name]; ok && !appended[g.Name] {
			lines = append(lines, g.Name+": "+strings.Join(names, "、"))
			appended[g.Name] = true
		}
	}
	for _, groupName := range groupOrder {
		if !appended[groupName] && groupName != ungroupedLabel {
			lines = append(lines, groupName+": "+strings.Join(grouped[groupName], "、"))
			appended[groupName] = true
		}
	}
	if names, ok := grouped[ungroupedLabel]; ok {
		lines = append(lines, ungroupedLabel+": "+strings.Join(names, "、"))
	}

	return strings.Join(lines, "\n")
}

// buildLinkSection 列出非空链接；全空时返回空串
func buildLinkSection(links model.LinkFields) string {
	lines := []string{"【链接】"}
	for _, link := range links {
		url := strings.TrimSpace(link.URL)
		if url == "" {
			continue
		}
		if label := strings.TrimSpace(link.Label); label != "" {
			lines = append(lines, label+": "+url)
		} else {
			lines = append(lines, url)
		}
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}
