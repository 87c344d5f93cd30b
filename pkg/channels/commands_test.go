package channels

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midorin-Linux/discord-parrot/pkg/dictionary"
	"github.com/midorin-Linux/discord-parrot/pkg/voicevox"
)

func subCommand(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) discordgo.ApplicationCommandInteractionData {
	return discordgo.ApplicationCommandInteractionData{
		Name: "dictionary",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{
				Name:    name,
				Type:    discordgo.ApplicationCommandOptionSubCommand,
				Options: options,
			},
		},
	}
}

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOpt(name string, value float64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: value,
	}
}

func TestDecodeDictionaryCommandAdd(t *testing.T) {
	data := subCommand("add",
		stringOpt("surface", "Discord"),
		stringOpt("pronunciation", "ディスコード"),
		intOpt("accent_type", 3),
	)

	cmd, err := decodeDictionaryCommand(data)
	require.NoError(t, err)

	add, ok := cmd.(dictionary.AddCommand)
	require.True(t, ok)
	assert.Equal(t, voicevox.Entry{
		Surface:       "Discord",
		Pronunciation: "ディスコード",
		AccentType:    3,
		WordType:      voicevox.ProperNoun,
	}, add.Entry)
}

func TestDecodeDictionaryCommandEdit(t *testing.T) {
	data := subCommand("edit",
		stringOpt("surface", "Go"),
		stringOpt("pronunciation", "ゴー"),
		intOpt("accent_type", 1),
	)

	cmd, err := decodeDictionaryCommand(data)
	require.NoError(t, err)

	edit, ok := cmd.(dictionary.EditCommand)
	require.True(t, ok)
	assert.Equal(t, "Go", edit.Entry.Surface)
	assert.Equal(t, "ゴー", edit.Entry.Pronunciation)
}

func TestDecodeDictionaryCommandRemove(t *testing.T) {
	cmd, err := decodeDictionaryCommand(subCommand("remove", stringOpt("surface", "Go")))
	require.NoError(t, err)
	assert.Equal(t, dictionary.RemoveCommand{Surface: "Go"}, cmd)
}

func TestDecodeDictionaryCommandBareVariants(t *testing.T) {
	tests := []struct {
		name string
		want dictionary.Command
	}{
		{"list", dictionary.ListCommand{}},
		{"reset", dictionary.ResetCommand{}},
		{"restore", dictionary.RestoreCommand{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := decodeDictionaryCommand(subCommand(tt.name))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestDecodeDictionaryCommandMissingOptions(t *testing.T) {
	tests := []struct {
		name string
		data discordgo.ApplicationCommandInteractionData
	}{
		{"no subcommand", discordgo.ApplicationCommandInteractionData{Name: "dictionary"}},
		{"add without pronunciation", subCommand("add", stringOpt("surface", "Go"), intOpt("accent_type", 1))},
		{"add without accent", subCommand("add", stringOpt("surface", "Go"), stringOpt("pronunciation", "ゴー"))},
		{"remove without surface", subCommand("remove")},
		{"unknown subcommand", subCommand("export")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeDictionaryCommand(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestDictionaryErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{dictionary.ErrAlreadyExists, "既に同じ単語が辞書に登録されています"},
		{fmt.Errorf("edit: %w", dictionary.ErrNotFound), "その単語は辞書に登録されていません"},
		{fmt.Errorf("fetch: %w", voicevox.ErrEngineUnavailable), "読み上げエンジンに接続できませんでした"},
		{fmt.Errorf("add: %w", voicevox.ErrEngineRejected), "読み上げエンジンがリクエストを受け付けませんでした"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, dictionaryErrorMessage(tt.err))
	}

	assert.Contains(t, dictionaryErrorMessage(errors.New("boom")), "boom")
}

func TestSlashCommandShape(t *testing.T) {
	names := make(map[string]bool, len(slashCommands))
	for _, cmd := range slashCommands {
		names[cmd.Name] = true
	}
	assert.True(t, names["join"])
	assert.True(t, names["leave"])
	assert.True(t, names["dictionary"])

	for _, cmd := range slashCommands {
		if cmd.Name != "dictionary" {
			continue
		}
		subs := make(map[string]bool, len(cmd.Options))
		for _, opt := range cmd.Options {
			assert.Equal(t, discordgo.ApplicationCommandOptionSubCommand, opt.Type)
			subs[opt.Name] = true
		}
		for _, want := range []string{"add", "edit", "remove", "list", "reset", "restore"} {
			assert.True(t, subs[want], "missing subcommand %s", want)
		}
	}
}
