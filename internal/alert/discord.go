package alert

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/your-org/bot-dashboard/internal/config"
)

// Discord rejects messages longer than this.
const discordMessageLimit = 2000

// discordSession is the part of *discordgo.Session the notifier uses.
type discordSession interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// DiscordNotifier buffers alerts and sends them as one direct message per
// buffer interval. Close sends whatever is still buffered.
type DiscordNotifier struct {
	session        discordSession
	userID         string
	bufferInterval time.Duration
	logger         *zap.Logger

	mu     sync.Mutex
	buffer []string
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewDiscordNotifier creates a DiscordNotifier from cfg.
func NewDiscordNotifier(cfg config.DiscordConf, logger *zap.Logger) (*DiscordNotifier, error) {
	if !cfg.Enabled() {
		return nil, errors.New("discord bot token and user ID must be configured")
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return newDiscordNotifier(session, cfg.UserID, cfg.BufferInterval.Duration(), logger), nil
}

func newDiscordNotifier(session discordSession, userID string, interval time.Duration, logger *zap.Logger) *DiscordNotifier {
	if interval <= 0 {
		interval = time.Minute
	}
	n := &DiscordNotifier{
		session:        session,
		userID:         userID,
		bufferInterval: interval,
		logger:         logger,
		done:           make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Send queues message for the next report.
func (n *DiscordNotifier) Send(message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New("notifier is closed")
	}
	n.buffer = append(n.buffer, message)
	return nil
}

func (n *DiscordNotifier) run() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.bufferInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.flush()
		case <-n.done:
			n.flush()
			return
		}
	}
}

func (n *DiscordNotifier) flush() {
	n.mu.Lock()
	messages := n.buffer
	n.buffer = nil
	n.mu.Unlock()
	if len(messages) == 0 {
		return
	}

	ch, err := n.session.UserChannelCreate(n.userID)
	if err != nil {
		n.logger.Warn("Failed to open Discord DM channel", zap.Error(err), zap.Int("dropped", len(messages)))
		return
	}
	if _, err := n.session.ChannelMessageSend(ch.ID, formatReport(messages)); err != nil {
		n.logger.Warn("Failed to send Discord alert", zap.Error(err), zap.Int("dropped", len(messages)))
	}
}

func formatReport(messages []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- **Dashboard Alerts (%d)** ---\n", len(messages))
	for _, m := range messages {
		b.WriteString("- ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	s := b.String()
	if len(s) > discordMessageLimit {
		s = s[:discordMessageLimit-4] + "\n..."
	}
	return s
}

// Close stops the buffer loop, sends the remaining alerts and closes the
// session. Repeated calls are no-ops.
func (n *DiscordNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
	return n.session.Close()
}
