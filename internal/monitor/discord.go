package monitor

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ChannelMessenger sends monitor messages to one Discord channel
type ChannelMessenger struct {
	session   *discordgo.Session
	channelID string
}

// NewChannelMessenger creates a messenger bound to a channel
func NewChannelMessenger(session *discordgo.Session, channelID string) *ChannelMessenger {
	return &ChannelMessenger{session: session, channelID: channelID}
}

// Send posts a new message and returns its id
func (c *ChannelMessenger) Send(ctx context.Context, msg *Message) (string, error) {
	sent, err := c.session.ChannelMessageSendComplex(c.channelID, Render(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return sent.ID, nil
}

// Edit replaces the content of an existing message
func (c *ChannelMessenger) Edit(ctx context.Context, messageID string, msg *Message) error {
	rendered := Render(msg)
	edit := &discordgo.MessageEdit{
		ID:         messageID,
		Channel:    c.channelID,
		Content:    &rendered.Content,
		Embeds:     &rendered.Embeds,
		Components: &rendered.Components,
	}
	if rendered.Embeds == nil {
		empty := []*discordgo.MessageEmbed{}
		edit.Embeds = &empty
	}
	if rendered.Components == nil {
		empty := []discordgo.MessageComponent{}
		edit.Components = &empty
	}

	if _, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit message %s: %w", messageID, err)
	}
	return nil
}

// Delete removes a message
func (c *ChannelMessenger) Delete(ctx context.Context, messageID string) error {
	if err := c.session.ChannelMessageDelete(c.channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}
