package keyboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/stepbot/internal/admin"
	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/paramcodec"
	"github.com/Proton-105/stepbot/internal/platform"
)

var ErrNoTarget = errors.New("keyboard: target or message id must be set")

// Sender is the subset of messenger.Messenger used to show pages.
type Sender interface {
	Send(ctx context.Context, to platform.Target, msg platform.NewMessage) (*platform.SentMessage, error)
	Edit(ctx context.Context, mid string, msg platform.NewMessage) error
}

// Pager shows paged button lists and serves their navigation presses.
type Pager struct {
	sender  Sender
	cache   *Cache
	alerter admin.Alerter
	bot     func() string
	log     *slog.Logger
}

// NewPager wires a pager. bot returns the current bot username used in payloads.
func NewPager(sender Sender, cache *Cache, alerter admin.Alerter, bot func() string, log *slog.Logger) *Pager {
	if log == nil {
		log = slog.Default()
	}
	return &Pager{sender: sender, cache: cache, alerter: alerter, bot: bot, log: log}
}

// View describes a list to show.
type View struct {
	Title string
	Items platform.Keyboard
	// To addresses a new message. EditMID replaces an existing one instead.
	To         platform.Target
	EditMID    string
	Link       *platform.ReplyLink
	Options    PageOptions
	Translator i18n.Translator
}

// Show renders the page and sends or edits it. The full list is cached when navigation was rendered.
func (p *Pager) Show(ctx context.Context, v View) (*platform.SentMessage, error) {
	if v.To.IsZero() && v.EditMID == "" {
		return nil, ErrNoTarget
	}

	page := Render(p.bot(), v.Translator, v.Items, v.Options)

	msg := platform.NewMessage{Text: v.Title, Link: v.Link}
	if page.Empty {
		msg.Text = translated(v.Translator, "paging.empty", "No available items found.")
	} else {
		msg.Keyboard = page.Keyboard()
	}

	mid := v.EditMID
	var sent *platform.SentMessage
	if mid != "" {
		if err := p.sender.Edit(ctx, mid, msg); err != nil {
			return nil, fmt.Errorf("edit paged list: %w", err)
		}
	} else {
		res, err := p.sender.Send(ctx, v.To, msg)
		if err != nil {
			return nil, fmt.Errorf("send paged list: %w", err)
		}
		sent = res
		if res != nil {
			mid = res.MID
		}
	}

	if page.Limited && mid != "" {
		if err := p.cache.Set(mid, v.Items); err != nil {
			p.log.Warn("cache paged buttons failed", slog.String("mid", mid), slog.Any("error", err))
		}
	}
	return sent, nil
}

// Limit caps a list before it is shown.
type Limit struct {
	Items int
	// Notice is appended to the title when the list is cut.
	Notice string
	// AdminNotice is sent to the admins when the list is cut on the first call.
	AdminNotice string
	FirstCall   bool
}

// ShowLimited truncates the list to lim.Items, then shows it like Show.
func (p *Pager) ShowLimited(ctx context.Context, v View, lim Limit) (*platform.SentMessage, error) {
	items, cut := Truncate(v.Items, lim.Items)
	if cut {
		if lim.Notice != "" {
			v.Title = v.Title + "\n\n" + lim.Notice
		}
		if lim.AdminNotice != "" && lim.FirstCall && p.alerter != nil {
			p.alerter.Alert(ctx, admin.Alert{Text: lim.AdminNotice})
		}
	}
	v.Items = items
	return p.Show(ctx, v)
}

type NavResult int

const (
	// NavShown means the message was edited in place to the requested page.
	NavShown NavResult = iota
	// NavClosed means the list was dismissed.
	NavClosed
	// NavLost means the full list is gone, e.g. after a restart.
	NavLost
)

// Navigate serves a press on a navigation button of message mid.
func (p *Pager) Navigate(ctx context.Context, mid string, args paramcodec.Args, t i18n.Translator) (NavResult, error) {
	direction, opts := ParseNavigation(args)
	if direction == DirectionClose {
		if err := p.cache.Delete(mid); err != nil {
			p.log.Warn("drop paged buttons failed", slog.String("mid", mid), slog.Any("error", err))
		}
		return NavClosed, nil
	}

	items, ok, err := p.cache.Get(mid)
	if err != nil {
		p.log.Warn("load paged buttons failed", slog.String("mid", mid), slog.Any("error", err))
	}
	if !ok || len(items) == 0 || mid == "" {
		return NavLost, nil
	}

	if _, err := p.Show(ctx, View{Items: items, EditMID: mid, Options: opts, Translator: t}); err != nil {
		return NavShown, err
	}
	return NavShown, nil
}
