package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/flor3z/faction-bot/internal/config"
	"github.com/flor3z/faction-bot/internal/funds"
	"github.com/flor3z/faction-bot/internal/monitor"
	"github.com/flor3z/faction-bot/internal/payout"
	"github.com/flor3z/faction-bot/internal/report"
	"github.com/flor3z/faction-bot/internal/settings"
	"github.com/flor3z/faction-bot/internal/storage"
	"github.com/flor3z/faction-bot/internal/torn"
)

// API is the part of the game API the bot calls
type API interface {
	FactionID() int64
	FactionMembers(ctx context.Context, factionID int64) ([]torn.Member, error)
	RankedWars(ctx context.Context, factionID int64) ([]torn.RankedWar, error)
	RankedWar(ctx context.Context, factionID, warID int64) (*torn.RankedWar, error)
	Attacks(ctx context.Context, from, to time.Time) ([]torn.Attack, error)
	News(ctx context.Context, category string, from, to time.Time) ([]torn.NewsEntry, error)
	Balance(ctx context.Context) (*torn.Balance, error)
}

// Bot represents the Discord bot instance
type Bot struct {
	config   *config.Config
	session  *discordgo.Session
	repo     *storage.Repository
	api      API
	settings *settings.Manager
	reports  *report.Service
	payouts  *payout.Service
	funds    *funds.Service

	httpClient   *http.Client
	newMessenger func(channelID string) monitor.Messenger
	now          func() time.Time

	// ctx outlives single commands; the monitor loop runs on it
	ctx context.Context

	mu      sync.Mutex
	monitor *monitor.Monitor
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.UpsertBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	api := torn.NewClient(cfg.TornAPIKey, cfg.FactionID, torn.WithRequestsPerMinute(cfg.APIRequestsPerMinute))

	b := newBot(cfg, session, repo, api)
	b.newMessenger = func(channelID string) monitor.Messenger {
		return monitor.NewChannelMessenger(session, channelID)
	}

	// Register event handlers
	b.registerHandlers()

	return b, nil
}

func newBot(cfg *config.Config, session *discordgo.Session, repo *storage.Repository, api API) *Bot {
	return &Bot{
		config:     cfg,
		session:    session,
		repo:       repo,
		api:        api,
		settings:   settings.NewManager(repo),
		reports:    report.NewService(api, repo),
		payouts:    payout.NewService(repo),
		funds:      funds.NewService(api, repo),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		ctx:        context.Background(),
	}
}

// Start opens the Discord connection
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx

	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username, "prefix", b.config.CommandPrefix)
	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop the monitor so its messages are cleaned up while the session is open
	b.mu.Lock()
	m := b.monitor
	b.monitor = nil
	b.mu.Unlock()
	if m != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		m.Stop(ctx)
		cancel()
	}

	// Close storage
	if b.repo != nil {
		b.repo.Close()
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleMessage)
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleMessage runs prefixed chat commands
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	args, ok := parseCommandLine(b.config.CommandPrefix, m.Content)
	if !ok {
		return
	}

	slog.Debug("Received command", "args", args, "user", m.Author.Username, "channel", m.ChannelID)

	c := &call{
		userID:      m.Author.ID,
		userName:    displayName(m.Author, m.Member),
		channelID:   m.ChannelID,
		attachments: m.Attachments,
		admin:       b.isAdmin(m.Author.ID, m.ChannelID),
	}

	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Minute)
	defer cancel()

	b.execute(ctx, c, args)

	send := c.messageSend()
	send.Reference = m.Reference()
	if _, err := s.ChannelMessageSendComplex(m.ChannelID, send); err != nil {
		slog.Error("Failed to send command reply", "channel", m.ChannelID, "error", err)
	}
}

// handleInteraction routes button clicks by custom id prefix
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	customID := i.MessageComponentData().CustomID
	user := interactionUser(i)
	if user == nil {
		return
	}
	slog.Debug("Received button", "customID", customID, "user", user.Username)

	action, id, ok := parseCustomID(customID)
	if !ok {
		slog.Warn("Unknown button", "customID", customID)
		return
	}

	if action == actionClaim {
		respondEphemeral(s, i, b.toggleClaim(id, user.ID, displayName(user, i.Member)))
		return
	}

	// Respond immediately to avoid timeout
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		slog.Error("Failed to defer interaction", "error", err)
		return
	}

	c := &call{
		userID:    user.ID,
		userName:  displayName(user, i.Member),
		channelID: i.ChannelID,
		admin:     b.isAdmin(user.ID, i.ChannelID),
	}

	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Minute)
	defer cancel()

	switch action {
	case actionPayoutVerify:
		b.execute(ctx, c, []string{"payout", "verify", fmt.Sprint(id)})
	case actionPayoutCSV:
		b.execute(ctx, c, []string{"payout", "csv", fmt.Sprint(id)})
	}

	b.editResponse(s, i, c)
}

// isAdmin reports whether the user may run commands that change money state
func (b *Bot) isAdmin(userID, channelID string) bool {
	perms, err := b.session.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = b.session.UserChannelPermissions(userID, channelID)
		if err != nil {
			slog.Warn("Failed to resolve permissions", "user", userID, "error", err)
			return false
		}
	}
	return perms&discordgo.PermissionManageServer != 0
}

// Helper functions

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Error("Failed to respond to interaction", "error", err)
	}
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, c *call) {
	send := c.messageSend()
	edit := &discordgo.WebhookEdit{
		Content: &send.Content,
		Files:   send.Files,
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		slog.Error("Failed to edit interaction response", "error", err)
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func displayName(u *discordgo.User, m *discordgo.Member) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// parseCommandLine splits a prefixed message into arguments
func parseCommandLine(prefix, content string) ([]string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return nil, false
	}
	args := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(args) == 0 {
		return nil, false
	}
	args[0] = strings.ToLower(args[0])
	return args, true
}
