package werewolf

import (
	"fmt"
	"strings"
)

// Prompt templates. Kept in Chinese: role names, directives, and the
// players' output formats are all part of the game's wire conventions.

const baseRoleTemplate = `%s
你是%s, 正在参与狼人杀游戏。
你的身份是【%s】
你的能力是【%s】
你的目标是【%s】
讲话风格：%s
发言要求：简短明了，条理清晰，不带任何前缀`

const werewolfTemplate = `%s
你是%s, 正在参与狼人杀游戏。
你的身份是【%s】
你的能力是【%s】
你的目标是【%s】
你的狼人队友是：【%s】(所有队友被淘汰时，请独自决定)
讲话风格：%s
发言要求：简短明了，条理清晰，不带任何前缀`

const voteTemplate = `本轮发言已结束。
根据上述聊天记录进行投票。
候选人：%s
要求：
1. 仔细分析每个玩家的发言
2. 给出投票理由
3. 在确定人选后输出格式：|VOTETO:NAME|`

// LastWordsPrompt asks an exiled player for their final statement.
const LastWordsPrompt = `你已被投票驱逐出局。
请发表你的遗言，可以：
1. 揭示自己的真实身份
2. 表达对其他玩家的看法
3. 给出你认为的凶手提示
要求：言简意赅，不超过100字`

const wolfNightTemplate = `夜晚降临，现在是狼人内部讨论时间。
你的队友：%s
可选目标：%s
要求：
1. 与队友商议要袭击的目标
2. 分析每个玩家的可能身份
3. 确定目标后输出格式：|VOTETO:NAME|`

const prophetVerifyTemplate = `你作为预言家，现在可以验证一名玩家的身份。
可验证的玩家：%s
已验证的玩家：%s(重要！！！)
要求：
1. 分析验证的必要性
2. 选择最有价值的目标
3. 确定后输出格式：|VERIFY:全名|`

const witchSaveTemplate = `你作为女巫，今晚可以使用药水。
今晚死亡的玩家是：%s
你的药水状态：
- 解药：%s
- 毒药：%s
存活玩家：%s
要求：
1. 分析使用药水的价值
2. 做出选择：
   - 使用解药：输出 "SAVE"
   - 使用毒药：输出 "|KILL:NAME|"
   - 放弃使用：输出 "GIVEUP"
注意：每晚只能使用一种药水`

// BasePrompt builds the persona prompt for a regular role.
func BasePrompt(name string, role Role, ability, goal, style string) string {
	return fmt.Sprintf(baseRoleTemplate, GameRule, name, role, ability, goal, style)
}

// WerewolfPrompt builds the persona prompt for a wolf, naming its teammates.
func WerewolfPrompt(name string, role Role, ability, goal, style, teammates string) string {
	return fmt.Sprintf(werewolfTemplate, GameRule, name, role, ability, goal, teammates, style)
}

// VotePrompt asks a player to pick an exile target from candidates.
func VotePrompt(candidates []string) string {
	return fmt.Sprintf(voteTemplate, strings.Join(candidates, ","))
}

// WolfNightPrompt opens the wolves' private discussion.
func WolfNightPrompt(aliveWolves, alivePlayers []string) string {
	return fmt.Sprintf(wolfNightTemplate, strings.Join(aliveWolves, ","), strings.Join(alivePlayers, ","))
}

// ProphetVerifyPrompt asks the prophet to pick a verification target,
// reminding them of past results.
func ProphetVerifyPrompt(candidates []string, verified []VerifyResult) string {
	info := make([]string, 0, len(verified))
	for _, v := range verified {
		info = append(info, fmt.Sprintf("%s是%s", v.Name, v.Role))
	}
	known := "无"
	if len(info) > 0 {
		known = strings.Join(info, ",")
	}
	return fmt.Sprintf(prophetVerifyTemplate, strings.Join(candidates, ","), known)
}

// WitchSavePrompt asks the witch to spend, or hold, her potions.
func WitchSavePrompt(deadVillager string, hasSave, hasKill bool, aliveVillagers []string) string {
	return fmt.Sprintf(witchSaveTemplate,
		deadVillager, potionState(hasSave), potionState(hasKill), strings.Join(aliveVillagers, ","))
}

func potionState(available bool) string {
	if available {
		return "可用"
	}
	return "已用完"
}
