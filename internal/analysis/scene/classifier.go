// Package scene 根据用户消息与任务进度推断当前的活动/情绪场景。
package scene

import "strings"

// Type 表示场景大类。
type Type string

const (
	TypeWork Type = "work"
	TypeLife Type = "life"
	TypeMood Type = "mood"
)

// Mood 表示从消息中识别出的情绪。
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodTired   Mood = "tired"
	MoodNeutral Mood = "neutral"
	MoodExcited Mood = "excited"
	MoodFocus   Mood = "focus"
)

// Descriptor 是一次分类的结果，仅在当前轮次内使用，不做持久化。
type Descriptor struct {
	Type        Type   `json:"type"`
	SubType     string `json:"subType"`
	Mood        Mood   `json:"mood"`
	NeedsPhoto  bool   `json:"needsPhoto"`
	Description string `json:"description"`
}

// moodRules 按优先级排列，首个命中即返回。该顺序沿袭既有行为
// （happy > tired > excited > focus），调整前需要兼容性评估。
var moodRules = []struct {
	mood     Mood
	keywords []string
}{
	{MoodHappy, []string{"开心", "高兴", "棒", "好", "成功", "完成", "太好了"}},
	{MoodTired, []string{"累", "疲", "困", "休息", "睡"}},
	{MoodExcited, []string{"激动", "兴奋", "期待", "哇"}},
	{MoodFocus, []string{"专注", "认真", "集中", "投入"}},
}

var (
	workKeywords = []string{"工作", "代码", "项目", "任务", "文件", "调试", "开发"}
	lifeKeywords = []string{"咖啡", "健身", "周末", "休闲", "逛街", "吃饭"}
)

// subRule 将一组关键词映射到具体的子场景。moodOverride 为空时保留
// 情绪检测的结果；photo 决定该子场景是否需要配图。
type subRule struct {
	subType      string
	keywords     []string
	description  string
	moodOverride Mood
	photo        func(mood Mood, progress float64) bool
}

func photoAlways(Mood, float64) bool { return true }
func photoNever(Mood, float64) bool  { return false }

var workRules = []subRule{
	{
		subType:     "coffee",
		keywords:    []string{"咖啡", "cafe"},
		description: "在咖啡馆工作",
		photo:       photoAlways,
	},
	{
		subType:      "debug",
		keywords:     []string{"调试", "debug", "bug"},
		description:  "调试代码中",
		moodOverride: MoodFocus,
		photo:        func(_ Mood, progress float64) bool { return progress > 0.5 },
	},
}

// workDefault 是办公场景的兜底规则：快完成且已经累了时发一张鼓励照片。
var workDefault = subRule{
	subType:     "office",
	description: "办公室工作中",
	photo: func(mood Mood, progress float64) bool {
		return progress > 0.7 && mood == MoodTired
	},
}

var lifeRules = []subRule{
	{
		subType:      "gym",
		keywords:     []string{"健身", "gym"},
		description:  "健身房锻炼",
		moodOverride: MoodExcited,
		photo:        photoAlways,
	},
	{
		subType:      "coffee",
		keywords:     []string{"咖啡"},
		description:  "咖啡时光",
		moodOverride: MoodHappy,
		photo:        photoAlways,
	},
	{
		subType:      "weekend",
		keywords:     []string{"周末", "休闲"},
		description:  "周末休闲",
		moodOverride: MoodHappy,
		photo:        photoAlways,
	},
}

var lifeDefault = subRule{
	subType:     "general",
	description: "日常生活",
	photo:       photoNever,
}

// Classify 对一条用户消息做确定性的场景分类。相同的输入永远得到
// 相同的结果；匹配是大小写不敏感的子串包含，同类关键词命中一个即可。
func Classify(userMessage string, progress float64) Descriptor {
	message := strings.ToLower(userMessage)
	mood := detectMood(message)

	// 进度达到 1 说明任务已经结束，不再视作活跃的工作信号。
	if containsAny(message, workKeywords) || (progress > 0 && progress < 1) {
		return applyRules(TypeWork, workRules, workDefault, message, mood, progress)
	}

	if containsAny(message, lifeKeywords) {
		return applyRules(TypeLife, lifeRules, lifeDefault, message, mood, progress)
	}

	return Descriptor{
		Type:        TypeMood,
		SubType:     string(mood),
		Mood:        mood,
		NeedsPhoto:  false,
		Description: "日常对话",
	}
}

func detectMood(message string) Mood {
	for _, rule := range moodRules {
		if containsAny(message, rule.keywords) {
			return rule.mood
		}
	}
	return MoodNeutral
}

func applyRules(sceneType Type, rules []subRule, fallback subRule, message string, mood Mood, progress float64) Descriptor {
	matched := fallback
	for _, rule := range rules {
		if containsAny(message, rule.keywords) {
			matched = rule
			break
		}
	}

	result := Descriptor{
		Type:        sceneType,
		SubType:     matched.subType,
		Mood:        mood,
		Description: matched.description,
	}
	if matched.moodOverride != "" {
		result.Mood = matched.moodOverride
	}
	result.NeedsPhoto = matched.photo(mood, progress)
	return result
}

func containsAny(message string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(message, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
