// Package telegram is the Telegram client for one tenant's bot: it
// long-polls updates into the dispatcher and delivers replies with
// reply-keyboard buttons.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"estatenexy/channel"
	"estatenexy/models"
)

const updateTimeoutSeconds = 30

// Client implements channel.Sender and channel.UpdateSource for one bot
// token.
type Client struct {
	bot      *tgbotapi.BotAPI
	tenantID uint
	events   chan channel.InboundEvent
	logger   *logrus.Entry
}

// New authenticates the bot token. An invalid token fails here, which
// is how the Bot Manager reports per-tenant auth errors without
// crashing the fleet.
func New(token string, tenantID uint, logger *logrus.Entry) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticate bot: %w", err)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		bot:      bot,
		tenantID: tenantID,
		events:   make(chan channel.InboundEvent, 64),
		logger:   logger.WithField("bot", bot.Self.UserName),
	}, nil
}

func (c *Client) Events() <-chan channel.InboundEvent {
	return c.events
}

// Run pumps Telegram updates into the event channel until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeoutSeconds
	updates := c.bot.GetUpdatesChan(u)
	defer close(c.events)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := c.translate(update)
			if !ok {
				continue
			}
			select {
			case c.events <- ev:
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return nil
			}
		}
	}
}

func (c *Client) translate(update tgbotapi.Update) (channel.InboundEvent, bool) {
	ev := channel.InboundEvent{
		TenantID:  c.tenantID,
		Channel:   models.ChannelTelegram,
		Timestamp: time.Now(),
	}

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.Message == nil {
			return ev, false
		}
		ev.ChannelIdentity = strconv.FormatInt(cq.Message.Chat.ID, 10)
		ev.Kind = channel.KindButton
		ev.Payload = cq.Data
		if cq.From != nil {
			ev.SenderName = cq.From.FirstName
		}
		return ev, true

	case update.Message != nil:
		m := update.Message
		ev.ChannelIdentity = strconv.FormatInt(m.Chat.ID, 10)
		if m.From != nil {
			ev.SenderName = m.From.FirstName
		}
		switch {
		case m.Contact != nil:
			// Shared contact cards carry the phone directly.
			ev.Kind = channel.KindText
			ev.Payload = m.Contact.PhoneNumber
		case m.Text != "":
			ev.Kind = channel.KindText
			ev.Payload = m.Text
		case m.Caption != "":
			ev.Kind = channel.KindImageDescription
			ev.Payload = m.Caption
		default:
			return ev, false
		}
		return ev, true
	}

	return ev, false
}

// Send delivers a reply, attaching a one-time reply keyboard when the
// turn offers buttons.
func (c *Client) Send(ctx context.Context, reply channel.Reply) error {
	chatID, err := strconv.ParseInt(reply.ChannelIdentity, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", reply.ChannelIdentity, err)
	}

	msg := tgbotapi.NewMessage(chatID, reply.Text)
	switch {
	case len(reply.Buttons) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Buttons))
		for _, label := range reply.Buttons {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.OneTimeKeyboard = true
		msg.ReplyMarkup = kb
	case reply.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", chatID, err)
	}
	return nil
}

var (
	_ channel.Sender       = (*Client)(nil)
	_ channel.UpdateSource = (*Client)(nil)
)
