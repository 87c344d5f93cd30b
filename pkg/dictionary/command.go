package dictionary

import (
	"context"
	"fmt"
	"strings"

	"github.com/midorin-Linux/discord-parrot/pkg/voicevox"
)

// Command is the decoded form of a dictionary subcommand. The chat
// boundary decodes an interaction into exactly one variant; Dispatch
// handles every variant exhaustively.
type Command interface {
	isCommand()
}

type AddCommand struct {
	Entry voicevox.Entry
}

type EditCommand struct {
	Entry voicevox.Entry
}

type RemoveCommand struct {
	Surface string
}

type ListCommand struct{}

type ResetCommand struct{}

type RestoreCommand struct{}

func (AddCommand) isCommand()     {}
func (EditCommand) isCommand()    {}
func (RemoveCommand) isCommand()  {}
func (ListCommand) isCommand()    {}
func (ResetCommand) isCommand()   {}
func (RestoreCommand) isCommand() {}

// Result is the user-facing outcome of a dictionary command.
type Result struct {
	Title  string
	Detail string
}

const maxListedEntries = 20

// Dispatch executes a decoded dictionary command and returns the
// human-readable report to show the user. Errors keep their taxonomy
// (ErrNotFound, ErrAlreadyExists, engine errors) for the boundary to
// render.
func (s *Synchronizer) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case AddCommand:
		if err := s.Add(ctx, c.Entry); err != nil {
			return Result{}, err
		}
		return Result{
			Title:  "辞書に追加しました",
			Detail: describeEntry(c.Entry),
		}, nil

	case EditCommand:
		if err := s.Edit(ctx, c.Entry); err != nil {
			return Result{}, err
		}
		return Result{
			Title:  "単語を編集しました",
			Detail: describeEntry(c.Entry),
		}, nil

	case RemoveCommand:
		if err := s.Remove(ctx, c.Surface); err != nil {
			return Result{}, err
		}
		return Result{
			Title:  "単語を削除しました",
			Detail: fmt.Sprintf("**削除した単語:** %s", c.Surface),
		}, nil

	case ListCommand:
		words, err := s.List(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Title:  "辞書データ一覧",
			Detail: describeList(words),
		}, nil

	case ResetCommand:
		if err := s.Reset(ctx); err != nil {
			return Result{}, err
		}
		return Result{
			Title:  "辞書をリセットしました",
			Detail: "すべての単語が削除されました",
		}, nil

	case RestoreCommand:
		if err := s.Restore(ctx); err != nil {
			return Result{}, err
		}
		return Result{
			Title:  "辞書の復元に成功しました",
			Detail: "最後に保存されたデータから復元されました",
		}, nil

	default:
		return Result{}, fmt.Errorf("unknown dictionary command: %T", cmd)
	}
}

func describeEntry(entry voicevox.Entry) string {
	return fmt.Sprintf("**単語:** %s\n**読み方:** %s\n**アクセント:** %d",
		entry.Surface, entry.Pronunciation, entry.AccentType)
}

func describeList(words []Word) string {
	if len(words) == 0 {
		return "辞書に登録されている単語はありません"
	}

	lines := make([]string, 0, maxListedEntries+1)
	for i, word := range words {
		if i == maxListedEntries {
			lines = append(lines, fmt.Sprintf("... 他%d件", len(words)-maxListedEntries))
			break
		}
		lines = append(lines, fmt.Sprintf("**%s** → %s (アクセント: %d)",
			word.Surface, word.Pronunciation, word.AccentType))
	}

	return fmt.Sprintf("**登録単語数:** %d件\n\n%s", len(words), strings.Join(lines, "\n"))
}
