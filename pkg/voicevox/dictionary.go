package voicevox

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/midorin-Linux/discord-parrot/pkg/logger"
)

// WordType is the engine-side part-of-speech class of a dictionary entry.
type WordType int

const (
	ProperNoun WordType = iota
	CommonNoun
	Verb
	Adjective
	Suffix
)

func (w WordType) String() string {
	switch w {
	case CommonNoun:
		return "COMMON_NOUN"
	case Verb:
		return "VERB"
	case Adjective:
		return "ADJECTIVE"
	case Suffix:
		return "SUFFIX"
	default:
		return "PROPER_NOUN"
	}
}

// Entry is one pronunciation override. The engine assigns the remote id;
// callers only supply the user-facing fields.
type Entry struct {
	Surface       string
	Pronunciation string
	AccentType    int
	WordType      WordType
}

func (e Entry) values() url.Values {
	query := url.Values{}
	query.Set("surface", e.Surface)
	query.Set("pronunciation", e.Pronunciation)
	query.Set("accent_type", strconv.Itoa(e.AccentType))
	query.Set("word_type", e.WordType.String())
	query.Set("priority", "10")
	return query
}

// FetchDictionary returns the full remote dictionary as an opaque JSON
// document (a map from remote id to entry fields).
func (c *Client) FetchDictionary(ctx context.Context) ([]byte, error) {
	logger.DebugC("voicevox", "Fetching user dictionary")
	return c.do(ctx, http.MethodGet, c.endpoint("/user_dict", nil), nil, "dictionary fetch")
}

// AddWord registers a new pronunciation override with the engine.
func (c *Client) AddWord(ctx context.Context, entry Entry) error {
	logger.DebugCF("voicevox", "Adding dictionary word", map[string]any{
		"surface": entry.Surface,
	})
	_, err := c.do(ctx, http.MethodPost, c.endpoint("/user_dict_word", entry.values()), nil, "dictionary add")
	return err
}

// RewriteWord replaces the fields of an existing override in place.
func (c *Client) RewriteWord(ctx context.Context, entry Entry) error {
	logger.DebugCF("voicevox", "Rewriting dictionary word", map[string]any{
		"surface": entry.Surface,
	})
	_, err := c.do(ctx, http.MethodPut, c.endpoint("/user_dict_word", entry.values()), nil, "dictionary rewrite")
	return err
}

// DeleteWord removes an override by its remote id. The engine has no
// delete-by-surface primitive; resolving a surface to an id is the
// dictionary synchronizer's job.
func (c *Client) DeleteWord(ctx context.Context, remoteID string) error {
	logger.DebugCF("voicevox", "Deleting dictionary word", map[string]any{
		"remote_id": remoteID,
	})
	_, err := c.do(ctx, http.MethodDelete, c.endpoint("/user_dict_word/"+remoteID, nil), nil, "dictionary delete")
	return err
}

// ImportDictionary uploads a full dictionary document, overriding any
// entries the engine already has.
func (c *Client) ImportDictionary(ctx context.Context, doc []byte) error {
	logger.DebugC("voicevox", "Importing user dictionary")
	query := url.Values{}
	query.Set("override", "true")
	_, err := c.do(ctx, http.MethodPost, c.endpoint("/import_user_dict", query), bytes.NewReader(doc), "dictionary import")
	return err
}
