// File: internal/bot/bot.go

// Package bot exposes the fleet over a Telegram chat: runs are triggered
// with /code, and the roster is managed with admin-gated commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/avelaine/kzfleet/internal/accounts"
	"github.com/avelaine/kzfleet/internal/fleet"
	"github.com/avelaine/kzfleet/internal/schemas"
)

// FleetRunner triggers one full fleet run. fleet.Service implements it.
type FleetRunner interface {
	RunFleet(ctx context.Context, cmd schemas.CodeCommand, onResult func(schemas.AccountResult)) (schemas.RunReport, error)
	Store() accounts.Store
}

// sender is the slice of the Telegram API the bot uses, mockable in tests.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot dispatches chat commands to the fleet service.
type Bot struct {
	api       *tgbotapi.BotAPI
	send      sender
	runner    FleetRunner
	adminCode string
	logger    *zap.Logger
}

// New connects to the Telegram API with the given token.
func New(token, adminCode string, debug bool, runner FleetRunner, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	api.Debug = debug

	logger = logger.Named("bot")
	logger.Info("Telegram bot authorized.", zap.String("username", api.Self.UserName))

	return &Bot{
		api:       api,
		send:      api,
		runner:    runner,
		adminCode: adminCode,
		logger:    logger,
	}, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
	case "code":
		b.handleCode(ctx, chatID, args)
	case "add":
		b.handleAdd(ctx, chatID, args)
	case "remove":
		b.handleRemove(ctx, chatID, args)
	case "show":
		b.handleShow(ctx, chatID, args)
	default:
		b.reply(chatID, "Commande inconnue. /help pour la liste.")
	}
}

const helpText = `Commandes disponibles:
/code <N>f <code> — soumettre le code N fois sur tous les comptes
/add <code admin> e:<email> m:<mot de passe> — ajouter un compte
/remove <code admin> <email> — retirer un compte
/show <code admin> — lister les comptes`

// handleCode parses "<N>f <code>" and launches a run, streaming per-account
// outcomes back to the chat as they land.
func (b *Bot) handleCode(ctx context.Context, chatID int64, args string) {
	cmd, err := schemas.ParseCodeCommand(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Format invalide: %v\nExemple: /code 2f j2f4ffjb", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("🚀 Lancement: code %q, %d soumission(s) par compte.", cmd.Code, cmd.Clicks))

	report, err := b.runner.RunFleet(ctx, cmd, func(result schemas.AccountResult) {
		b.reply(chatID, formatAccountResult(result))
	})
	if err != nil {
		if errors.Is(err, fleet.ErrRunInProgress) {
			b.reply(chatID, "⏳ Un run est déjà en cours. Réessayez plus tard.")
			return
		}
		b.logger.Error("Fleet run failed.", zap.Error(err))
		b.reply(chatID, fmt.Sprintf("Le run a échoué: %v", err))
		return
	}

	b.reply(chatID, formatRunReport(report))
}

// handleAdd expects "<admin> e:<email> m:<password>".
func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	rest, ok := b.checkAdmin(chatID, args)
	if !ok {
		return
	}

	email, password, err := parseCredentialArgs(rest)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Format invalide: %v\nExemple: /add <code> e:user@site.com m:motdepasse", err))
		return
	}

	account, err := schemas.NewAccount(email, password)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Compte invalide: %v", err))
		return
	}

	if err := b.runner.Store().Add(ctx, account); err != nil {
		if errors.Is(err, accounts.ErrDuplicate) {
			b.reply(chatID, fmt.Sprintf("Le compte %s existe déjà.", account.Email))
			return
		}
		b.logger.Error("Failed to add account.", zap.Error(err))
		b.reply(chatID, "Erreur lors de l'ajout du compte.")
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ Compte %s ajouté.", account.Email))
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	email, ok := b.checkAdmin(chatID, args)
	if !ok {
		return
	}
	email = strings.TrimSpace(email)
	if email == "" {
		b.reply(chatID, "Usage: /remove <code admin> <email>")
		return
	}

	if err := b.runner.Store().Remove(ctx, email); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			b.reply(chatID, fmt.Sprintf("Compte %s introuvable.", email))
			return
		}
		b.logger.Error("Failed to remove account.", zap.Error(err))
		b.reply(chatID, "Erreur lors de la suppression du compte.")
		return
	}
	b.reply(chatID, fmt.Sprintf("🗑 Compte %s retiré.", email))
}

func (b *Bot) handleShow(ctx context.Context, chatID int64, args string) {
	if _, ok := b.checkAdmin(chatID, args); !ok {
		return
	}

	roster, err := b.runner.Store().List(ctx)
	if err != nil {
		b.logger.Error("Failed to list accounts.", zap.Error(err))
		b.reply(chatID, "Erreur lors de la lecture des comptes.")
		return
	}
	if len(roster) == 0 {
		b.reply(chatID, "Aucun compte enregistré.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 %d compte(s):\n", len(roster))
	for _, acc := range roster {
		sb.WriteString("• " + acc.Email + "\n")
	}
	b.reply(chatID, strings.TrimRight(sb.String(), "\n"))
}

// checkAdmin verifies the leading admin code and returns the remaining
// arguments. An unset admin code disables the gated commands entirely.
func (b *Bot) checkAdmin(chatID int64, args string) (string, bool) {
	if b.adminCode == "" {
		b.reply(chatID, "Les commandes d'administration sont désactivées.")
		return "", false
	}
	code, rest, _ := strings.Cut(args, " ")
	if code != b.adminCode {
		b.reply(chatID, "Code administrateur invalide.")
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// parseCredentialArgs parses the "e:<email> m:<password>" roster syntax.
func parseCredentialArgs(args string) (email, password string, err error) {
	for _, field := range strings.Fields(args) {
		switch {
		case strings.HasPrefix(field, "e:"):
			email = strings.TrimPrefix(field, "e:")
		case strings.HasPrefix(field, "m:"):
			password = strings.TrimPrefix(field, "m:")
		}
	}
	if email == "" || password == "" {
		return "", "", fmt.Errorf("attendu \"e:<email> m:<mot de passe>\"")
	}
	return email, password, nil
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.send.Send(msg); err != nil {
		b.logger.Warn("Failed to send chat message.", zap.Error(err))
	}
}
