package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"userpinger/app/reddit"
)

// A cases.Caser is stateful, so a fresh one is used per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Messenger is the outbound half of the platform client. Satisfied by
// *reddit.Client.
type Messenger interface {
	Reply(ctx context.Context, parentID, text string) (string, error)
	EditReply(ctx context.Context, commentID, text string) error
	SendMessage(ctx context.Context, user, subject, body string) error
}

// Notifier delivers a ping: acknowledgment reply first, then one direct
// message per member, then the final roster edit. All side effects are
// external; the ordering guarantees a visible acknowledgment even if the
// process dies mid-batch.
type Notifier struct {
	messenger Messenger
}

func NewNotifier(messenger Messenger) *Notifier {
	return &Notifier{messenger: messenger}
}

// Run notifies every member of the group about the triggering comment. The
// author is skipped for the direct messages but still listed in the final
// roster edit. A single recipient's delivery failure is logged and skipped;
// it never aborts the batch.
func (n *Notifier) Run(ctx context.Context, group string, members []string, comment *reddit.Comment) error {
	text := fmt.Sprintf("^(Pinging members of %s group...)", group)

	replyID, err := n.messenger.Reply(ctx, comment.Fingerprint, text)
	if err != nil {
		return fmt.Errorf("failed to post acknowledgment: %w", err)
	}

	slog.Debug("Posted acknowledgment", "group", group, "reply", replyID)

	author := fold(comment.Author)
	subject := fmt.Sprintf("You've been pinged by /u/%s in group %s", comment.Author, group)

	for _, member := range members {
		if fold(member) == author {
			continue
		}

		if err := n.messenger.SendMessage(ctx, member, subject, comment.Permalink); err != nil {
			slog.Debug("Could not message member, skipping", "member", member, "error", err)
		}
	}

	if err := n.messenger.EditReply(ctx, replyID, rosterBody(group, members)); err != nil {
		return fmt.Errorf("failed to edit acknowledgment: %w", err)
	}

	slog.Info("Pinged group", "group", group, "members", len(members), "author", comment.Author)

	return nil
}

// SendError reports a user-input error (unknown group, unauthorized) back to
// the requesting author by direct message.
func (n *Notifier) SendError(ctx context.Context, author string, errors []string) error {
	slog.Debug("Sending error PM", "author", author)

	lines := append(errors, "If you believe this is a mistake, please contact the moderators")

	return n.messenger.SendMessage(ctx, author, "Ping Error", strings.Join(lines, "\n\n"))
}

func rosterBody(group string, members []string) string {
	mentions := make([]string, 0, len(members))
	for _, member := range members {
		mentions = append(mentions, "/u/"+member)
	}

	return strings.Join([]string{
		fmt.Sprintf("^(Pinged members of %s group.)", group),
		fmt.Sprintf("^(%s)", strings.Join(mentions, ", ")),
		"^(Contact the moderators to join this group.)",
	}, "\n\n")
}
