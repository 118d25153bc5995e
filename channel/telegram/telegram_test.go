package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatenexy/channel"
)

func testClient() *Client {
	return &Client{tenantID: 1, events: make(chan channel.InboundEvent, 1)}
}

func TestTranslateTextMessage(t *testing.T) {
	c := testClient()

	ev, ok := c.translate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 12345},
		From: &tgbotapi.User{FirstName: "Sara"},
		Text: "hi",
	}})

	require.True(t, ok)
	assert.Equal(t, channel.KindText, ev.Kind)
	assert.Equal(t, "12345", ev.ChannelIdentity)
	assert.Equal(t, "hi", ev.Payload)
	assert.Equal(t, "Sara", ev.SenderName)
	assert.Equal(t, uint(1), ev.TenantID)
}

func TestTranslateContactCardBecomesText(t *testing.T) {
	c := testClient()

	ev, ok := c.translate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 12345},
		Contact: &tgbotapi.Contact{PhoneNumber: "+971501234567"},
	}})

	require.True(t, ok)
	assert.Equal(t, channel.KindText, ev.Kind)
	assert.Equal(t, "+971501234567", ev.Payload)
}

func TestTranslateCaptionBecomesImageDescription(t *testing.T) {
	c := testClient()

	ev, ok := c.translate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 12345},
		Caption: "screenshot of a listing I liked",
	}})

	require.True(t, ok)
	assert.Equal(t, channel.KindImageDescription, ev.Kind)
	assert.Equal(t, "screenshot of a listing I liked", ev.Payload)
}

func TestTranslateCallbackQuery(t *testing.T) {
	c := testClient()

	ev, ok := c.translate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 12345}},
		From:    &tgbotapi.User{FirstName: "Sara"},
		Data:    "Investment",
	}})

	require.True(t, ok)
	assert.Equal(t, channel.KindButton, ev.Kind)
	assert.Equal(t, "Investment", ev.Payload)
}

func TestTranslateDropsUnsupportedUpdates(t *testing.T) {
	c := testClient()

	_, ok := c.translate(tgbotapi.Update{})
	assert.False(t, ok)

	// Sticker-only message: no text, no caption, no contact.
	_, ok = c.translate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 12345},
	}})
	assert.False(t, ok)
}
