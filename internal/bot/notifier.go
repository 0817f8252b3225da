package bot

import (
	"context"

	tele "gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier delivers alert messages to Telegram users. User IDs double as
// private chat IDs.
type Notifier struct {
	sender messageSender
}

func NewNotifier(sender messageSender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) SendAlert(ctx context.Context, userID int64, text string) error {
	_ = ctx
	if n == nil || n.sender == nil {
		return nil
	}
	_, err := n.sender.Send(&tele.Chat{ID: userID}, text)
	return err
}
