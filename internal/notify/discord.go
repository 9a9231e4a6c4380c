package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordSession is the part of *discordgo.Session the channel uses
type DiscordSession interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// Discord posts notifications to a channel through the bot API
type Discord struct {
	session   DiscordSession
	channelID string
}

// NewDiscord creates a bot session. Sending messages goes through the REST
// API, so the gateway connection is never opened.
func NewDiscord(token, channelID string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return NewDiscordWithSession(session, channelID), nil
}

func NewDiscordWithSession(session DiscordSession, channelID string) *Discord {
	return &Discord{session: session, channelID: channelID}
}

func (d *Discord) Dispatch(ctx context.Context, n Notification) error {
	if _, err := d.session.ChannelMessageSend(d.channelID, FormatMarkdown(n), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func (d *Discord) Close() error {
	return d.session.Close()
}

// FormatMarkdown renders a notification as a chat message
func FormatMarkdown(n Notification) string {
	prefix := ""
	if n.Kind == KindBudgetWarning {
		prefix = ":warning: "
	}
	return fmt.Sprintf("%s**%s**\n%s", prefix, n.Title, n.Body)
}
