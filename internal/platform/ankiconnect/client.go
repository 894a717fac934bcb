package ankiconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/lexiconlabs/ankibridge/internal/domain"
)

const (
	// apiVersion is the AnkiConnect protocol version this client speaks.
	apiVersion = 6

	// noteModel is the two-sided note type every card is delivered as.
	noteModel = "Basic"

	defaultTimeout = 10 * time.Second
)

// duplicateSignal is the substring AnkiConnect uses to reject a note that
// already exists in the target deck.
const duplicateSignal = "duplicate"

// Config holds the settings for reaching AnkiConnect.
type Config struct {
	// URL is the AnkiConnect endpoint, typically http://localhost:8765.
	URL string

	// DeckPrefix is the parent deck every delivered note is filed under.
	DeckPrefix string

	// Timeout bounds each delivery attempt.
	Timeout time.Duration
}

// Client delivers cards to a local Anki instance over AnkiConnect.
type Client struct {
	httpClient *http.Client
	url        string
	deckPrefix string
	logger     *slog.Logger
}

// NewClient creates a new AnkiConnect client. If logger is nil, a default
// logger will be used.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		deckPrefix: cfg.DeckPrefix,
		logger:     logger.With(slog.String("component", "ankiconnect_client")),
	}
}

// rpcRequest is the AnkiConnect wire request.
type rpcRequest struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is the AnkiConnect wire response. Error is null on success.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// noteParams is the params payload for the addNote action.
type noteParams struct {
	Note note `json:"note"`
}

type note struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags,omitempty"`
	Options   noteOptions       `json:"options"`
}

type noteOptions struct {
	AllowDuplicate bool   `json:"allowDuplicate"`
	DuplicateScope string `json:"duplicateScope"`
}

// Deliver pushes one card to Anki as a note. A nil return means the note
// exists in Anki after the call, whether this attempt created it or a
// previous one did; errors are *TransientError or *PermanentError.
//
// Delivery is idempotent: duplicates are refused by Anki itself
// (allowDuplicate=false, deck scope) and the refusal is mapped to success,
// so re-attempting a card after a transient failure is always safe.
func (c *Client) Deliver(ctx context.Context, card *domain.Card) error {
	deck := c.deckName(card)

	// createDeck is a no-op when the deck already exists.
	if _, err := c.invoke(ctx, "createDeck", map[string]string{"deck": deck}); err != nil {
		return err
	}

	params := noteParams{
		Note: note{
			DeckName:  deck,
			ModelName: noteModel,
			Fields: map[string]string{
				"Front": card.Front,
				"Back":  c.renderBack(card),
			},
			Tags: card.Tags,
			Options: noteOptions{
				AllowDuplicate: false,
				DuplicateScope: "deck",
			},
		},
	}

	_, err := c.invoke(ctx, "addNote", params)
	if err != nil {
		if isDuplicate(err) {
			c.logger.Debug("note already exists, treating as delivered",
				slog.String("card_id", card.ID.String()),
				slog.String("deck", deck))
			return nil
		}
		return err
	}

	c.logger.Debug("note created",
		slog.String("card_id", card.ID.String()),
		slog.String("deck", deck))
	return nil
}

// invoke performs one AnkiConnect RPC round trip with a bounded timeout
// and classifies every failure mode.
func (c *Client) invoke(ctx context.Context, action string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{Action: action, Version: apiVersion, Params: params})
	if err != nil {
		return nil, &PermanentError{Reason: fmt.Sprintf("failed to encode %s request: %v", action, err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &PermanentError{Reason: fmt.Sprintf("failed to build %s request: %v", action, err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: Anki is not running or
		// not answering. All of these resolve by retrying later.
		return nil, &TransientError{Reason: "anki unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransientError{
			Reason: fmt.Sprintf("unexpected status %d from anki", resp.StatusCode),
		}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, &TransientError{Reason: "malformed response from anki", Err: err}
	}

	if rpcResp.Error != nil {
		return nil, &PermanentError{Reason: *rpcResp.Error}
	}

	return rpcResp.Result, nil
}

// isDuplicate reports whether err is Anki's duplicate-note rejection.
func isDuplicate(err error) bool {
	var permanent *PermanentError
	if !errors.As(err, &permanent) {
		return false
	}
	return strings.Contains(strings.ToLower(permanent.Reason), duplicateSignal)
}

// deckName derives the target deck from the card's tags, falling back to
// the card type when no tag is usable. The first tag is assumed to name
// the language being studied.
func (c *Client) deckName(card *domain.Card) string {
	leaf := string(card.Type)
	if len(card.Tags) > 0 && card.Tags[0] != "" {
		leaf = card.Tags[0]
	}
	return c.deckPrefix + "::" + titleize(leaf)
}

// renderBack folds the optional card fields into the note's back side.
func (c *Client) renderBack(card *domain.Card) string {
	var b strings.Builder
	b.WriteString(card.Back)

	if card.Context != "" {
		b.WriteString("<br><br><i>")
		b.WriteString(card.Context)
		b.WriteString("</i>")
		if card.ContextTranslation != "" {
			b.WriteString("<br>")
			b.WriteString(card.ContextTranslation)
		}
	}

	if card.Notes != "" {
		b.WriteString("<br><br>")
		b.WriteString(card.Notes)
	}

	return b.String()
}

// titleize upper-cases the first rune of s.
func titleize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
