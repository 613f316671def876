package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ClaimButtonPrefix prefixes the custom id of claim buttons
const ClaimButtonPrefix = "claim_"

const (
	colorInWindow  = 0xE67E22
	colorAvailable = 0x2ECC71
	colorHeader    = 0x34495E
)

// ProfileURL links to a player's profile page
func ProfileURL(id int64) string {
	return fmt.Sprintf("https://www.torn.com/profiles.php?XID=%d", id)
}

// AttackURL links to the attack page for a player
func AttackURL(id int64) string {
	return fmt.Sprintf("https://www.torn.com/loader.php?sid=attack&user2ID=%d", id)
}

// Render converts a monitor message into a Discord message
func Render(msg *Message) *discordgo.MessageSend {
	switch msg.Kind {
	case KindHeader:
		return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{renderHeader(msg)}}
	case KindFooter:
		return &discordgo.MessageSend{
			Content: fmt.Sprintf("-# Last updated <t:%d:R>", msg.UpdatedAt.Unix()),
		}
	default:
		return &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{renderAlert(msg.Entry)},
			Components: alertComponents(msg.Entry),
		}
	}
}

func renderHeader(msg *Message) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("%d target(s) out of hospital within %s", msg.Count, formatDuration(msg.Policy.Horizon))
	if msg.Policy.ShowAvailable {
		desc = fmt.Sprintf("%d target(s) available now or out of hospital within %s", msg.Count, formatDuration(msg.Policy.Horizon))
	}
	if msg.Policy.MaxLevel > 0 {
		desc += fmt.Sprintf("\nAvailable targets capped at level %d", msg.Policy.MaxLevel)
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Targets: faction %d", msg.FactionID),
		URL:         fmt.Sprintf("https://www.torn.com/factions.php?step=profile&ID=%d", msg.FactionID),
		Description: desc,
		Color:       colorHeader,
	}
}

func renderAlert(e Entry) *discordgo.MessageEmbed {
	t := e.Target

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s [%d]", t.Name, t.ID),
		URL:   ProfileURL(t.ID),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Level",
				Value:  fmt.Sprintf("%d", t.Level),
				Inline: true,
			},
		},
	}

	switch e.Class {
	case ClassInWindow:
		embed.Color = colorInWindow
		embed.Description = fmt.Sprintf("In hospital, out in **%s** (<t:%d:R>)", formatDuration(e.Remaining), t.Until.Unix())
	default:
		embed.Color = colorAvailable
		embed.Description = "**Available now**"
	}

	if t.LifeRatio >= 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Life",
			Value:  fmt.Sprintf("%.0f%%", t.LifeRatio*100),
			Inline: true,
		})
	}

	if e.Claim != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Claimed",
			Value:  fmt.Sprintf("by <@%s> <t:%d:R>", e.Claim.UserID, e.Claim.ClaimedAt.Unix()),
			Inline: false,
		})
	}

	return embed
}

func alertComponents(e Entry) []discordgo.MessageComponent {
	claimLabel := "Claim"
	claimStyle := discordgo.SecondaryButton
	if e.Claim != nil {
		claimLabel = "Claimed: " + e.Claim.UserName
		claimStyle = discordgo.DangerButton
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label: "Attack",
					Style: discordgo.LinkButton,
					URL:   AttackURL(e.Target.ID),
				},
				discordgo.Button{
					Label:    claimLabel,
					Style:    claimStyle,
					CustomID: fmt.Sprintf("%s%d", ClaimButtonPrefix, e.Target.ID),
				},
			},
		},
	}
}

// formatDuration renders a countdown like "3m 05s"
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	var sb strings.Builder
	if h > 0 {
		fmt.Fprintf(&sb, "%dh ", h)
	}
	if h > 0 || m > 0 {
		fmt.Fprintf(&sb, "%dm ", m)
	}
	fmt.Fprintf(&sb, "%02ds", s)
	return sb.String()
}
