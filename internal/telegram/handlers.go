package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	exclusiondomain "github.com/hivelabs/hivetally/internal/exclusion/domain"
	"go.uber.org/zap"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.handleStart(msg)
	case "hive":
		b.handleTotal(ctx, msg)
	case "top":
		b.handleTop(ctx, msg)
	case "freeze":
		b.handlePropose(ctx, msg, exclusiondomain.ActionFreeze)
	case "unfreeze":
		b.handlePropose(ctx, msg, exclusiondomain.ActionUnfreeze)
	case "confirm":
		b.handleConfirm(ctx, msg)
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	symbol := b.policy.Get().Symbol
	var sb strings.Builder
	sb.WriteString("I count every " + symbol + " posted in this chat.\n\n")
	sb.WriteString("/hive shows the chat total\n")
	sb.WriteString("/top shows the leaderboard\n")
	sb.WriteString("/freeze and /unfreeze stage admin changes\n")
	sb.WriteString("/confirm <proposal id> applies a staged change")
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) handleTotal(ctx context.Context, msg *tgbotapi.Message) {
	total, err := b.querySvc.GetTotal(ctx, msg.Chat.ID)
	if err != nil {
		b.log.Warn("total query failed", zap.Error(err))
		b.reply(msg.Chat.ID, "Something went wrong, try again later.")
		return
	}
	symbol := b.policy.Get().Symbol
	b.reply(msg.Chat.ID, fmt.Sprintf("This chat has collected %d %s", total, symbol))
}

func (b *Bot) handleTop(ctx context.Context, msg *tgbotapi.Message) {
	rows, err := b.querySvc.GetTop(ctx, msg.Chat.ID, 0)
	if err != nil {
		b.log.Warn("top query failed", zap.Error(err))
		b.reply(msg.Chat.ID, "Something went wrong, try again later.")
		return
	}
	if len(rows) == 0 {
		b.reply(msg.Chat.ID, "Nothing counted here yet.")
		return
	}

	symbol := b.policy.Get().Symbol
	var sb strings.Builder
	sb.WriteString("Top collectors of " + symbol + ":\n")
	for i, row := range rows {
		name := row.DisplayName
		if name == "" {
			name = strconv.FormatInt(row.UserID, 10)
		}
		sb.WriteString(fmt.Sprintf("%d. %s: %d\n", i+1, name, row.Total))
	}
	b.reply(msg.Chat.ID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) handlePropose(ctx context.Context, msg *tgbotapi.Message, action string) {
	if msg.From == nil {
		return
	}

	targetID, targetName, ok := commandTarget(msg)
	if !ok {
		b.reply(msg.Chat.ID, "Reply to the user's message or pass their numeric id.")
		return
	}

	var (
		proposal *exclusiondomain.Proposal
		err      error
	)
	if action == exclusiondomain.ActionFreeze {
		proposal, err = b.exclusionSvc.ProposeFreeze(ctx, msg.From.ID, targetID, targetName)
	} else {
		proposal, err = b.exclusionSvc.ProposeUnfreeze(ctx, msg.From.ID, targetID, targetName)
	}
	if err != nil {
		b.replyWorkflowError(msg.Chat.ID, err)
		return
	}

	b.reply(msg.Chat.ID, fmt.Sprintf("Staged %s of %s. Apply with /confirm %d", action, labelFor(targetID, targetName), int64(proposal.ID)))
}

func (b *Bot) handleConfirm(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	arg := strings.TrimSpace(msg.CommandArguments())
	proposalID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: /confirm <proposal id>")
		return
	}

	proposal, err := b.exclusionSvc.Confirm(ctx, msg.From.ID, proposalID)
	if err != nil {
		b.replyWorkflowError(msg.Chat.ID, err)
		return
	}

	b.reply(msg.Chat.ID, fmt.Sprintf("Applied %s of %s.", proposal.Action, labelFor(proposal.TargetUserID, proposal.DisplayName)))
}

func (b *Bot) replyWorkflowError(chatID int64, err error) {
	switch {
	case errors.Is(err, exclusiondomain.ErrNotAdmin):
		b.reply(chatID, "Only the admin can do that.")
	case errors.Is(err, exclusiondomain.ErrInvalidTarget):
		b.reply(chatID, "That target does not look like a user.")
	case errors.Is(err, exclusiondomain.ErrProposalNotFound):
		b.reply(chatID, "No such proposal.")
	case errors.Is(err, exclusiondomain.ErrProposalClosed):
		b.reply(chatID, "That proposal is already closed.")
	default:
		b.log.Warn("workflow command failed", zap.Error(err))
		b.reply(chatID, "Something went wrong, try again later.")
	}
}

// commandTarget resolves the target of /freeze and /unfreeze from either the
// replied-to message or a numeric argument.
func commandTarget(msg *tgbotapi.Message) (int64, string, bool) {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target := msg.ReplyToMessage.From
		return target.ID, displayName(target), true
	}

	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		return 0, "", false
	}
	fields := strings.Fields(arg)
	targetID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	name := strings.Join(fields[1:], " ")
	return targetID, name, true
}

func labelFor(userID int64, name string) string {
	if name != "" {
		return name
	}
	return strconv.FormatInt(userID, 10)
}
