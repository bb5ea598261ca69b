package interactions

import "github.com/bwmarrin/discordgo"

// Commands returns the slash commands to register with the guild.
func Commands() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageServer)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     CommandSetChannel,
			Description:              "設定每日投票發佈頻道",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "目標頻道",
				Required:     true,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			}},
		},
		{
			Name:        CommandPollNow,
			Description: "立即隨機出一題 2選1 投票",
		},
		{
			Name:        CommandReloadQuestions,
			Description: "重新載入題庫（Sheets 啟用時從雲端讀取）",
		},
		{
			Name:        CommandAddQuestion,
			Description: "加入新題目（A/B）",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "a", Description: "選項 A", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "b", Description: "選項 B", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "tag", Description: "分類 tag"},
			},
		},
		{
			Name:        CommandMyStats,
			Description: "查看你個人投票統計",
		},
	}
}
