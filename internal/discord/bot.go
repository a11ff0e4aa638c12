package discord

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/reedfamily/gamewatch/internal/command"
)

// Bot owns the Discord session and maps slash commands onto the gate.
type Bot struct {
	session *discordgo.Session
	gate    *command.Gate
	guildID string

	registered []*discordgo.ApplicationCommand
}

func New(token, guildID string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	return &Bot{session: session, guildID: guildID}, nil
}

// Session exposes the underlying session for the chat sender.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Start connects to the gateway and registers the slash commands, routing
// them through gate.
func (b *Bot) Start(gate *command.Gate) error {
	b.gate = gate
	b.session.AddHandler(b.handleInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}

	appID := b.session.State.User.ID
	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, commands)
	if err != nil {
		b.session.Close()
		return fmt.Errorf("register commands: %w", err)
	}
	b.registered = registered

	log.Printf("discord: logged in as %s, %d commands registered", b.session.State.User.Username, len(registered))
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "set-owner",
		Description: "Claim bot ownership (only works once)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Owner user", Required: true},
		},
	},
	{
		Name:        "get-owner",
		Description: "Show the current owner",
	},
	{
		Name:        "set-admin-role",
		Description: "Set the admin role (owner only)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Admin role", Required: true},
		},
	},
	{
		Name:        "set-battlemetrics",
		Description: "Set BattleMetrics API credentials (owner only)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "api_token", Description: "API token", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "server_id", Description: "Server ID", Required: true},
		},
	},
	{
		Name:        "clear-bans",
		Description: "Clear the list of posted bans (owner only)",
	},
	{
		Name:        "set-service",
		Description: "Set the service name to restart (admin only)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "service_name", Description: "Service name", Required: true},
		},
	},
	{
		Name:        "restart",
		Description: "Restart the game server service (admin only)",
	},
	{
		Name:        "status",
		Description: "Show the game server service state",
	},
	{
		Name:        "set-bans-channel",
		Description: "Send ban notifications to this channel (admin only)",
	},
	{
		Name:        "fps-channel",
		Description: "Send performance updates to this channel",
	},
	{
		Name:        "ping",
		Description: "Check if the bot is online",
	},
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	caller := callerFrom(i)
	data := i.ApplicationCommandData()

	switch data.Name {
	case "ping":
		respond(s, i, "Pong!")
		return
	case "restart", "status":
		// These shell out to the service controller and can exceed the
		// three-second interaction window; acknowledge first.
		b.handleDeferred(s, i, caller, data.Name)
		return
	}

	msg, err := b.dispatch(i, caller, data)
	if err != nil {
		respond(s, i, rejectionText(err))
		return
	}
	respond(s, i, msg)
}

func (b *Bot) dispatch(i *discordgo.InteractionCreate, caller command.Caller, data discordgo.ApplicationCommandInteractionData) (string, error) {
	switch data.Name {
	case "set-owner":
		return b.gate.SetOwner(caller, optionUserID(data, "user"))
	case "get-owner":
		return b.gate.GetOwner(caller)
	case "set-admin-role":
		return b.gate.SetAdminRole(caller, optionRoleID(data, "role"))
	case "set-battlemetrics":
		return b.gate.SetBattleMetrics(caller, optionString(data, "api_token"), optionString(data, "server_id"))
	case "clear-bans":
		return b.gate.ClearBans(caller)
	case "set-service":
		return b.gate.SetService(caller, optionString(data, "service_name"))
	case "set-bans-channel":
		return b.gate.SetBansChannel(caller, i.ChannelID)
	case "fps-channel":
		return b.gate.SetFPSChannel(caller, i.ChannelID)
	default:
		return "", fmt.Errorf("unknown command %q", data.Name)
	}
}

func (b *Bot) handleDeferred(s *discordgo.Session, i *discordgo.InteractionCreate, caller command.Caller, name string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Printf("discord: defer %s: %v", name, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var msg string
	switch name {
	case "restart":
		msg, err = b.gate.Restart(ctx, caller)
	case "status":
		msg, err = b.gate.Status(ctx, caller)
	}
	if err != nil {
		msg = rejectionText(err)
	}

	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: msg,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		log.Printf("discord: followup %s: %v", name, err)
	}
}

func callerFrom(i *discordgo.InteractionCreate) command.Caller {
	if i.Member != nil && i.Member.User != nil {
		return command.Caller{UserID: i.Member.User.ID, RoleIDs: i.Member.Roles}
	}
	if i.User != nil {
		return command.Caller{UserID: i.User.ID}
	}
	return command.Caller{}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("discord: respond: %v", err)
	}
}

func rejectionText(err error) string {
	return "❌ " + err.Error()
}

func optionString(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

func optionUserID(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name {
			// UserValue(nil) skips the state lookup and still carries the ID.
			if u := opt.UserValue(nil); u != nil {
				return u.ID
			}
		}
	}
	return ""
}

func optionRoleID(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name {
			if r := opt.RoleValue(nil, ""); r != nil {
				return r.ID
			}
		}
	}
	return ""
}
