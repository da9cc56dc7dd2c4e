package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/features/ledger"
)

const (
	queueSize   = 64
	sendTimeout = 10 * time.Second
	// backlogPreview — сколько заявок перечислить в напоминании
	backlogPreview = 5
)

// TelegramNotifier пишет в админский чат. Сообщения складываются в очередь
// и отправляются отдельной горутиной, запущенной через Start.
type TelegramNotifier struct {
	bot    *telego.Bot
	chatID int64
	queue  chan string
}

// NewTelegramNotifier создаёт бота по токену.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram бота: %w", err)
	}
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		queue:  make(chan string, queueSize),
	}, nil
}

// Start запускает отправку сообщений до отмены ctx.
func (n *TelegramNotifier) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case text := <-n.queue:
				n.send(ctx, text)
			}
		}
	}()
	log.WithField("chat_id", n.chatID).Info("Уведомления в Telegram включены")
}

func (n *TelegramNotifier) send(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(n.chatID), text)); err != nil {
		log.WithError(err).Warn("Не удалось отправить уведомление в Telegram")
	}
}

func (n *TelegramNotifier) enqueue(text string) {
	select {
	case n.queue <- text:
	default:
		log.Warn("Очередь уведомлений переполнена, сообщение пропущено")
	}
}

func (n *TelegramNotifier) NotifyPending(ctx context.Context, entry *ledger.ModerationEntry, l *ledger.AnimalLog) {
	n.enqueue(pendingText(entry, l))
}

func (n *TelegramNotifier) NotifyApproved(ctx context.Context, entry *ledger.ModerationEntry, badges []string) {
	n.enqueue(approvedText(entry, badges))
}

func (n *TelegramNotifier) NotifyBacklog(ctx context.Context, pending []*ledger.ModerationEntry, total int) {
	if total == 0 {
		return
	}
	n.enqueue(backlogText(pending, total))
}

func pendingText(entry *ledger.ModerationEntry, l *ledger.AnimalLog) string {
	return fmt.Sprintf("🐾 New animal-welfare log awaiting review\nUser: %s\nActions: %s\nCoins on approval: %d\nModeration ID: %s",
		entry.UserID, strings.Join(l.Actions, ", "), entry.CoinsToAward, entry.ID)
}

func approvedText(entry *ledger.ModerationEntry, badges []string) string {
	text := fmt.Sprintf("✅ %s approved %s: +%d HealCoins to %s",
		entry.ApprovedBy, entry.ID, entry.CoinsToAward, entry.UserID)
	if len(badges) > 0 {
		text += "\nBadges: " + strings.Join(badges, ", ")
	}
	return text
}

func backlogText(pending []*ledger.ModerationEntry, total int) string {
	if total < len(pending) {
		total = len(pending)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏳ %d animal-welfare logs are waiting for review", total)
	for i, e := range pending {
		if i == backlogPreview {
			break
		}
		fmt.Fprintf(&sb, "\n• %s (user %s, %d coins, since %s)",
			e.ID, e.UserID, e.CoinsToAward, e.CreatedAt.Format("02 Jan 15:04"))
	}
	if shown := min(len(pending), backlogPreview); total > shown {
		fmt.Fprintf(&sb, "\n…and %d more", total-shown)
	}
	return sb.String()
}
