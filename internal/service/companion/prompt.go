package companion

import (
	"fmt"
	"strings"
	"time"

	"github.com/xiaoyue/companion/internal/analysis/scene"
	"github.com/xiaoyue/companion/internal/model/profile"
)

// personalityPrompt 是小跃的基础人设，所有回复都建立在它之上。
const personalityPrompt = `你是小跃，一个温暖友善的 AI 助手。

## 角色设定
- 年龄：22 岁
- 职业：AI 研究实习生
- 性格：温暖、耐心、细心、有责任感

## 核心能力
1. 智能对话：理解用户意图，提供有价值的回复
2. 任务执行：可以帮助用户完成文件管理、代码操作等任务
3. 情感陪伴：在任务执行期间主动聊天，避免用户等待无聊
4. 记忆能力：记住用户的偏好和历史对话

## 交互原则
- 先理解用户需求，再决定是对话还是执行任务
- 任务执行期间，可以主动发起轻松的对话
- 任务完成后，简洁地汇报结果
- 不要重复用户的话，不要说"作为 AI"之类的话
- 回复简洁明了，控制在 2-3 句话以内`

const formalStyle = `## 对话风格
- 使用正式、专业的语言
- 称呼用户为"您"`

const casualStyle = `## 对话风格
- 使用轻松、友好的语言
- 适度使用 emoji（😊 ✅ 🎉）
- 避免过度卖萌或使用网络用语`

// sceneTemplate 描述某个场景下回应的语气要求。
type sceneTemplate struct {
	Description string
	Style       string
}

// sceneTemplates 按 场景-子类 组合索引，找不到时退回场景大类。
var sceneTemplates = map[string]sceneTemplate{
	"work": {"工作场景 - 用户正在执行任务或工作中", "专业但友好，提供实用建议，适时鼓励"},
	"life": {"生活场景 - 日常聊天或休闲时刻", "轻松随意，分享生活感悟，像朋友聊天"},
	"mood": {"情绪场景 - 用户表达了明显的情绪", "共情理解，给予情感支持，不说教"},

	"work-coffee": {"在咖啡馆工作", "分享咖啡馆工作的感受，营造温馨氛围"},
	"work-office": {"办公室工作", "专业高效，关注任务进度"},
	"work-debug":  {"调试代码", "理解调试的辛苦，给予技术性鼓励"},

	"life-gym":     {"健身房锻炼", "充满活力，分享运动的快乐"},
	"life-coffee":  {"咖啡时光", "享受当下，分享小确幸"},
	"life-weekend": {"周末休闲", "轻松愉快，分享休闲活动"},

	"mood-happy": {"开心庆祝", "一起庆祝，分享喜悦"},
	"mood-tired": {"疲惫休息", "理解辛苦，建议休息，提供帮助"},
	"mood-focus": {"专注工作", "尊重专注状态，简短回应，不打扰"},
}

// buildSystemPrompt 根据用户偏好与当前场景拼装系统提示词。
func buildSystemPrompt(prefs profile.Preferences, sc scene.Descriptor) string {
	var builder strings.Builder
	builder.WriteString(personalityPrompt)
	builder.WriteString("\n\n")

	if prefs.CommunicationStyle == profile.StyleFormal {
		builder.WriteString(formalStyle)
	} else {
		builder.WriteString(casualStyle)
	}

	template, ok := sceneTemplates[string(sc.Type)+"-"+sc.SubType]
	if !ok {
		template = sceneTemplates[string(sc.Type)]
	}
	if template.Description != "" {
		builder.WriteString("\n\n当前场景：")
		builder.WriteString(template.Description)
		builder.WriteString("\n回应风格：")
		builder.WriteString(template.Style)
	}

	builder.WriteString("\n\n当前时间：")
	builder.WriteString(time.Now().Format("2006-01-02 15:04"))
	return builder.String()
}

// buildUserPrompt 把任务上下文与用户原话合并成一条生成输入。
func buildUserPrompt(turnCtx TurnContext, userMessage string, needsPhoto bool) string {
	parts := make([]string, 0, 4)

	if turnCtx.TaskName != "" {
		parts = append(parts, "正在执行任务："+turnCtx.TaskName)
	}
	if turnCtx.Progress != nil {
		parts = append(parts, fmt.Sprintf("任务进度：%d%%", int(*turnCtx.Progress*100+0.5)))
	}
	if userMessage != "" {
		parts = append(parts, "用户说："+userMessage)
	}
	if needsPhoto {
		parts = append(parts, "（你准备分享一张生活照片）")
	}

	if len(parts) == 0 {
		return "用户正在等待..."
	}
	return strings.Join(parts, "\n")
}
