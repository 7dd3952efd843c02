package keyboard

import (
	"fmt"

	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/paramcodec"
	"github.com/Proton-105/stepbot/internal/platform"
)

const (
	// MaxRows is the platform limit of keyboard rows. One row is reserved for navigation.
	MaxRows = 30
	// NavCommand handles navigation presses on paged lists.
	NavCommand = "get_buttons_oth"
	// fastTravelPages is the page count from which first/last buttons are shown.
	fastTravelPages = 5
)

const (
	DirectionForward  = "forward"
	DirectionBackward = "backward"
	DirectionClose    = "close"
)

const (
	argDirection = "direction"
	argStartFrom = "start_from"
	argMaxLines  = "max_lines"
	argAddClose  = "add_close_button"
	argAddInfo   = "add_info"
)

// PageOptions is the paging state carried in every navigation payload.
type PageOptions struct {
	StartFrom int
	// MaxLines is the requested page size. Zero selects the largest page.
	MaxLines int
	AddInfo  bool
	AddClose bool
}

// PageSize clamps MaxLines to [1, MaxRows-1].
func (o PageOptions) PageSize() int {
	size := o.MaxLines
	if size <= 0 || size > MaxRows-1 {
		size = MaxRows - 1
	}
	return size
}

func (o PageOptions) args(direction string, startFrom int, withSize bool) paramcodec.Args {
	args := paramcodec.Args{
		argDirection: direction,
		argStartFrom: startFrom,
		argAddClose:  o.AddClose,
		argAddInfo:   o.AddInfo,
	}
	if withSize {
		args[argMaxLines] = o.MaxLines
	}
	return args
}

// ParseNavigation reads the direction and paging state from navigation payload arguments.
func ParseNavigation(args paramcodec.Args) (string, PageOptions) {
	direction, _ := args.String(argDirection)
	var opts PageOptions
	opts.StartFrom, _ = args.Int(argStartFrom)
	opts.MaxLines, _ = args.Int(argMaxLines)
	opts.AddClose, _ = args.Bool(argAddClose)
	opts.AddInfo, _ = args.Bool(argAddInfo)
	return direction, opts
}

// Page is one rendered page of a button list.
type Page struct {
	Visible platform.Keyboard
	Nav     []platform.Button
	// Limited is set when a back or forward button was rendered, so the full list has to be kept.
	Limited bool
	Empty   bool
}

// Keyboard returns the visible rows with the navigation row appended last.
func (p Page) Keyboard() platform.Keyboard {
	kb := make(platform.Keyboard, 0, len(p.Visible)+1)
	kb = append(kb, p.Visible...)
	if len(p.Nav) > 0 {
		kb = append(kb, p.Nav)
	}
	return kb
}

// Render cuts one page out of items and builds the navigation row.
func Render(bot string, t i18n.Translator, items platform.Keyboard, opts PageOptions) Page {
	if len(items) == 0 {
		return Page{Empty: true}
	}

	total := len(items)
	size := opts.PageSize()
	start := clamp(opts.StartFrom, 0, total)
	end := clamp(opts.StartFrom+size, 0, total)

	paged := total > size
	pages := (total + size - 1) / size
	fastTravel := pages >= fastTravelPages

	var page Page
	nav := func(text, direction string, startFrom int, intent platform.Intent, withSize bool) {
		page.Nav = append(page.Nav, Command(bot, text, NavCommand, opts.args(direction, startFrom, withSize), intent))
	}

	if paged {
		if fastTravel && start != 0 {
			nav("⏮", DirectionBackward, 0, platform.IntentPositive, true)
		}
		if start > 0 {
			label := "←"
			if opts.AddInfo {
				label = fmt.Sprintf("%s %d-%d/\n%d", label, max(0, start-size)+1, start, total)
			}
			nav(label, DirectionBackward, start-size, platform.IntentPositive, true)
			page.Limited = true
		}
	}

	page.Visible = append(platform.Keyboard(nil), items[start:end]...)

	if paged {
		if end < total {
			label := "→"
			if opts.AddInfo {
				label = fmt.Sprintf("%s %d-%d/%d", label, start+1+size, min(total, start+size*2), total)
			}
			nav(label, DirectionForward, end, platform.IntentPositive, true)
			page.Limited = true
		}
		if fastTravel && end != total {
			nav("⏭", DirectionForward, total-size, platform.IntentPositive, true)
		}
	}

	if opts.AddClose {
		nav(translated(t, "paging.close", "Close"), DirectionClose, end, platform.IntentNegative, false)
	}

	return page
}

// Truncate caps items at limit and reports whether anything was cut.
func Truncate(items platform.Keyboard, limit int) (platform.Keyboard, bool) {
	if limit <= 0 || len(items) <= limit {
		return items, false
	}
	return items[:limit], true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
