package channels

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/midorin-Linux/discord-parrot/pkg/dictionary"
	"github.com/midorin-Linux/discord-parrot/pkg/voicevox"
)

var slashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "join",
		Description: "あなたのいるボイスチャンネルに接続し、このチャンネルの読み上げを開始します",
	},
	{
		Name:        "leave",
		Description: "ボイスチャンネルから切断し、読み上げを停止します",
	},
	{
		Name:        "dictionary",
		Description: "読み上げ辞書を操作します",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "辞書に単語を追加します",
				Options: []*discordgo.ApplicationCommandOption{
					wordOption("surface", "登録する単語", true),
					wordOption("pronunciation", "読み方（カタカナ）", true),
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "accent_type",
						Description: "アクセント核の位置",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "edit",
				Description: "辞書の単語を編集します",
				Options: []*discordgo.ApplicationCommandOption{
					wordOption("surface", "編集する単語", true),
					wordOption("pronunciation", "新しい読み方（カタカナ）", true),
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "accent_type",
						Description: "アクセント核の位置",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "辞書から単語を削除します",
				Options: []*discordgo.ApplicationCommandOption{
					wordOption("surface", "削除する単語", true),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "辞書の単語一覧を表示します",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "reset",
				Description: "辞書を空にします",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "restore",
				Description: "保存済みのスナップショットから辞書を復元します",
			},
		},
	},
}

func wordOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

// decodeDictionaryCommand turns a /dictionary interaction into exactly
// one dictionary command variant. Decoding happens once, here; the
// synchronizer never sees raw interaction data.
func decodeDictionaryCommand(data discordgo.ApplicationCommandInteractionData) (dictionary.Command, error) {
	if len(data.Options) == 0 {
		return nil, fmt.Errorf("サブコマンドが指定されていません")
	}

	sub := data.Options[0]
	switch sub.Name {
	case "add":
		entry, err := decodeEntry(sub.Options)
		if err != nil {
			return nil, err
		}
		return dictionary.AddCommand{Entry: entry}, nil
	case "edit":
		entry, err := decodeEntry(sub.Options)
		if err != nil {
			return nil, err
		}
		return dictionary.EditCommand{Entry: entry}, nil
	case "remove":
		surface, ok := stringOption(sub.Options, "surface")
		if !ok {
			return nil, fmt.Errorf("単語が指定されていません")
		}
		return dictionary.RemoveCommand{Surface: surface}, nil
	case "list":
		return dictionary.ListCommand{}, nil
	case "reset":
		return dictionary.ResetCommand{}, nil
	case "restore":
		return dictionary.RestoreCommand{}, nil
	default:
		return nil, fmt.Errorf("不明なサブコマンドです: %s", sub.Name)
	}
}

func decodeEntry(options []*discordgo.ApplicationCommandInteractionDataOption) (voicevox.Entry, error) {
	surface, ok := stringOption(options, "surface")
	if !ok {
		return voicevox.Entry{}, fmt.Errorf("単語が指定されていません")
	}
	pronunciation, ok := stringOption(options, "pronunciation")
	if !ok {
		return voicevox.Entry{}, fmt.Errorf("読み方が指定されていません")
	}
	accentType, ok := intOption(options, "accent_type")
	if !ok {
		return voicevox.Entry{}, fmt.Errorf("アクセントが指定されていません")
	}

	return voicevox.Entry{
		Surface:       surface,
		Pronunciation: pronunciation,
		AccentType:    accentType,
		WordType:      voicevox.ProperNoun,
	}, nil
}

func stringOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	for _, opt := range options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue(), true
		}
	}
	return "", false
}

func intOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (int, bool) {
	for _, opt := range options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionInteger {
			return int(opt.IntValue()), true
		}
	}
	return 0, false
}

// dictionaryErrorMessage maps the dictionary error taxonomy to the
// message shown in chat.
func dictionaryErrorMessage(err error) string {
	switch {
	case errors.Is(err, dictionary.ErrAlreadyExists):
		return "既に同じ単語が辞書に登録されています"
	case errors.Is(err, dictionary.ErrNotFound):
		return "その単語は辞書に登録されていません"
	case errors.Is(err, voicevox.ErrEngineUnavailable):
		return "読み上げエンジンに接続できませんでした"
	case errors.Is(err, voicevox.ErrEngineRejected):
		return "読み上げエンジンがリクエストを受け付けませんでした"
	default:
		return fmt.Sprintf("辞書の操作に失敗しました: %v", err)
	}
}
