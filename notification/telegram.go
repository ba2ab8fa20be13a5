// Package notification delivers decision and error events to humans.
package notification

import (
	"fmt"
	"time"

	"swingline/core"

	tb "gopkg.in/tucnak/telebot.v2"
)

const pollingTimeout = 10 * time.Second

// Telegram pushes decision and error notifications to a fixed list of
// authorized users. It implements core.NotifierWithStart.
type Telegram struct {
	client *tb.Bot
	users  []int
	log    core.Logger
}

// NewTelegram creates the notifier. Updates from users outside the
// configured list are dropped before any handler runs.
func NewTelegram(settings core.TelegramSettings, log core.Logger) (*Telegram, error) {
	poller := &tb.LongPoller{Timeout: pollingTimeout}
	middleware := tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			return false
		}
		for _, user := range settings.Users {
			if int64(user) == u.Message.Sender.ID {
				return true
			}
		}
		log.Error("unauthorized telegram user ", u.Message.Sender.ID)
		return false
	})

	client, err := tb.NewBot(tb.Settings{
		Token:     settings.Token,
		ParseMode: tb.ModeMarkdown,
		Poller:    middleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	notifier := &Telegram{client: client, users: settings.Users, log: log}
	client.Handle("/status", notifier.statusHandle)
	return notifier, nil
}

// Start runs the receive loop. Blocks, so call it from a goroutine.
func (t *Telegram) Start() {
	t.log.Info("telegram notifier started")
	t.client.Start()
}

// Notify broadcasts a plain message to all users.
func (t *Telegram) Notify(message string) {
	for _, user := range t.users {
		if _, err := t.client.Send(&tb.User{ID: int64(user)}, message); err != nil {
			t.log.WithError(err).Error("failed to send telegram message")
		}
	}
}

// OnDecision formats and broadcasts a trade decision.
func (t *Telegram) OnDecision(decision core.Decision) {
	t.Notify(fmt.Sprintf(
		"*%s* %s (%s)\nquantity: %.2f\nprice: %.2f\nreason: %s",
		decision.Side, decision.Symbol, decision.Tier,
		decision.Quantity, decision.Price, decision.Reason,
	))
}

// OnError broadcasts an engine error, e.g. a failed exit that needs a
// manual close.
func (t *Telegram) OnError(err error) {
	t.Notify(fmt.Sprintf("*ERROR*\n%s", err))
}

func (t *Telegram) statusHandle(m *tb.Message) {
	if _, err := t.client.Send(m.Sender, "running"); err != nil {
		t.log.WithError(err).Error("failed to reply to status command")
	}
}
