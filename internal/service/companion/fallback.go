package companion

import "strings"

// 固定降级回应：生成服务不可用时以确定性的方式挑选一条。
const (
	fallbackEarly     = "任务刚开始，我会陪着你的～"
	fallbackMid       = "进行得很顺利！再等一会儿就好～"
	fallbackNearDone  = "快完成了！马上就好～"
	fallbackRest      = "辛苦啦！要不要休息一下？"
	fallbackEncourage = "太好了！继续加油～"
	fallbackCompanion = "我在这里陪着你～有什么需要帮忙的吗？"
	fallbackApology   = "抱歉，我遇到了一些问题。请稍后再试。"
)

// FallbackReply picks the canned reply substituted when text generation
// fails. Evaluated top to bottom, first match wins, independent of the
// scene classification.
func FallbackReply(turnCtx TurnContext, userMessage string) string {
	if turnCtx.Progress != nil {
		switch progress := *turnCtx.Progress; {
		case progress < 0.3:
			return fallbackEarly
		case progress < 0.7:
			return fallbackMid
		default:
			return fallbackNearDone
		}
	}

	if strings.Contains(userMessage, "累") || strings.Contains(userMessage, "疲") {
		return fallbackRest
	}
	if strings.Contains(userMessage, "好") || strings.Contains(userMessage, "顺利") {
		return fallbackEncourage
	}

	return fallbackCompanion
}
