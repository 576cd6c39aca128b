package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"prayer-reminder/internal/app"
)

// Bot is the part of tgbotapi.BotAPI the handlers use.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Handler struct {
	Bot         Bot
	App         *app.App
	OwnerChatID int64
}

func NewHandler(bot Bot, a *app.App, owner int64) *Handler {
	return &Handler{Bot: bot, App: a, OwnerChatID: owner}
}

// Listen dispatches updates until ctx ends or the channel closes.
func (h *Handler) Listen(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		if upd.Message.Chat == nil {
			return
		}
		if upd.Message.Chat.ID != h.OwnerChatID {
			log.Debug().Int64("chat", upd.Message.Chat.ID).Msg("ignoring message from foreign chat")
			return
		}
		if upd.Message.IsCommand() {
			h.HandleCommand(ctx, upd.Message)
		}

	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		if cq.Message == nil || cq.Message.Chat == nil || cq.Message.Chat.ID != h.OwnerChatID {
			_, _ = h.Bot.Request(tgbotapi.NewCallback(cq.ID, ""))
			return
		}
		h.HandleCallback(ctx, cq)
	}
}

func (h *Handler) reply(text string, markup any) {
	msg := tgbotapi.NewMessage(h.OwnerChatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := h.Bot.Send(msg); err != nil {
		log.Error().Err(err).Msg("telegram send")
	}
}
