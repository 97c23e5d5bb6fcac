// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neontrader/neon-tui/internal/appdata"
	"github.com/neontrader/neon-tui/internal/ui/styles"
	"github.com/neontrader/neon-tui/internal/util"
)

// =============================================================================
// TABS
// =============================================================================

// Tab is a dashboard page.
type Tab int

const (
	TabPortfolio Tab = iota
	TabTrades
	TabPlatforms
	TabMarket
	tabCount
)

var tabNames = [tabCount]string{"Portfolio", "Trades", "Platforms", "Market"}

func (t Tab) String() string {
	if t < 0 || t >= tabCount {
		return fmt.Sprintf("Tab(%d)", int(t))
	}
	return tabNames[t]
}

// =============================================================================
// DASHBOARD
// =============================================================================

// TradeSubmitMsg carries an order typed into the trade prompt.
type TradeSubmitMsg struct {
	Request appdata.TradeRequest
}

// Dashboard renders the signed-in pages. It only holds what the app hands
// it; fetching is done by the caller.
type Dashboard struct {
	theme *styles.Theme

	tab       Tab
	portfolio *appdata.Portfolio
	trades    []appdata.Trade
	platforms []appdata.Platform
	quotes    []appdata.Quote
	updatedAt time.Time
	loading   bool
	err       string

	// cursor selects a row on the Trades and Platforms pages.
	cursor int

	prompt   textinput.Model
	entering bool

	width  int
	height int
}

// NewDashboard creates an empty dashboard.
func NewDashboard(theme *styles.Theme) Dashboard {
	p := newInput("buy BTC 0.1   or   sell ETH 2 @ 2700", false)
	p.Prompt = "> "
	p.Width = 40
	return Dashboard{theme: theme, prompt: p}
}

// SetSize sets the dashboard dimensions.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// Tab returns the active page.
func (d Dashboard) Tab() Tab {
	return d.tab
}

// NextTab moves to the following page, wrapping around.
func (d *Dashboard) NextTab() {
	d.tab = (d.tab + 1) % tabCount
	d.cursor = 0
}

// PrevTab moves to the previous page, wrapping around.
func (d *Dashboard) PrevTab() {
	d.tab = (d.tab + tabCount - 1) % tabCount
	d.cursor = 0
}

// rows is the number of selectable rows on the active page.
func (d Dashboard) rows() int {
	switch d.tab {
	case TabTrades:
		return len(d.trades)
	case TabPlatforms:
		return len(d.platforms)
	}
	return 0
}

// MoveCursor moves the selection by delta rows, stopping at either end.
func (d *Dashboard) MoveCursor(delta int) {
	d.cursor = clamp(d.cursor+delta, 0, max(d.rows()-1, 0))
}

// Cursor returns the selected row on the active page.
func (d Dashboard) Cursor() int {
	return d.cursor
}

// SelectedTrade returns the highlighted trade while the Trades page is
// showing.
func (d Dashboard) SelectedTrade() (appdata.Trade, bool) {
	if d.tab != TabTrades || d.cursor >= len(d.trades) {
		return appdata.Trade{}, false
	}
	return d.trades[d.cursor], true
}

// SelectedPlatform returns the highlighted platform while the Platforms
// page is showing.
func (d Dashboard) SelectedPlatform() (appdata.Platform, bool) {
	if d.tab != TabPlatforms || d.cursor >= len(d.platforms) {
		return appdata.Platform{}, false
	}
	return d.platforms[d.cursor], true
}

// SetLoading marks a refresh in flight.
func (d *Dashboard) SetLoading(loading bool) {
	d.loading = loading
}

// Loading reports whether a refresh is in flight.
func (d Dashboard) Loading() bool {
	return d.loading
}

// SetData replaces everything shown. A nil portfolio keeps the old one.
func (d *Dashboard) SetData(p *appdata.Portfolio, trades []appdata.Trade, platforms []appdata.Platform, quotes []appdata.Quote, at time.Time) {
	if p != nil {
		d.portfolio = p
	}
	d.trades = trades
	d.platforms = platforms
	d.quotes = quotes
	d.updatedAt = at
	d.loading = false
	d.err = ""
	d.MoveCursor(0)
}

// SetError shows a load error and ends the loading state.
func (d *Dashboard) SetError(msg string) {
	d.err = msg
	d.loading = false
}

// Err returns the error shown on the dashboard.
func (d Dashboard) Err() string {
	return d.err
}

// Clear drops all account data, used when the session ends.
func (d *Dashboard) Clear() {
	d.portfolio = nil
	d.trades = nil
	d.platforms = nil
	d.quotes = nil
	d.updatedAt = time.Time{}
	d.err = ""
	d.loading = false
	d.tab = TabPortfolio
	d.cursor = 0
	d.CancelTrade()
}

// Portfolio returns the portfolio on display, if any.
func (d Dashboard) Portfolio() (appdata.Portfolio, bool) {
	if d.portfolio == nil {
		return appdata.Portfolio{}, false
	}
	return *d.portfolio, true
}

// Entering reports whether the trade prompt has focus.
func (d Dashboard) Entering() bool {
	return d.entering
}

// StartTrade opens the trade prompt.
func (d *Dashboard) StartTrade() tea.Cmd {
	d.entering = true
	d.err = ""
	d.prompt.Reset()
	return d.prompt.Focus()
}

// CancelTrade closes the trade prompt.
func (d *Dashboard) CancelTrade() {
	d.entering = false
	d.prompt.Blur()
	d.prompt.Reset()
}

// Update handles keys while the trade prompt is open. Other keys are the
// caller's to interpret.
func (d Dashboard) Update(msg tea.Msg) (Dashboard, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		d.SetSize(ws.Width, ws.Height)
		return d, nil
	}
	if !d.entering {
		return d, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			d.CancelTrade()
			return d, nil
		case "enter":
			req, err := ParseTradeCommand(d.prompt.Value())
			if err != nil {
				d.err = err.Error()
				return d, nil
			}
			d.err = ""
			d.CancelTrade()
			return d, func() tea.Msg { return TradeSubmitMsg{Request: req} }
		}
	}
	var cmd tea.Cmd
	d.prompt, cmd = d.prompt.Update(msg)
	return d, cmd
}

// ParseTradeCommand reads "buy|sell SYMBOL QTY [@ PRICE]". Without a price
// the order fills at the current quote.
func ParseTradeCommand(s string) (appdata.TradeRequest, error) {
	fields := strings.Fields(strings.ReplaceAll(s, "@", " @ "))
	if len(fields) != 3 && !(len(fields) == 5 && fields[3] == "@") {
		return appdata.TradeRequest{}, fmt.Errorf("%w: expected: buy|sell SYMBOL QTY [@ PRICE]", appdata.ErrInvalidTrade)
	}
	qty, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return appdata.TradeRequest{}, fmt.Errorf("%w: quantity %q is not a number", appdata.ErrInvalidTrade, fields[2])
	}
	req := appdata.TradeRequest{Side: fields[0], Symbol: fields[1], Quantity: qty}
	if len(fields) == 5 {
		price, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return appdata.TradeRequest{}, fmt.Errorf("%w: price %q is not a number", appdata.ErrInvalidTrade, fields[4])
		}
		req.Price = price
	}
	return req.Normalize()
}

// =============================================================================
// RENDERING
// =============================================================================

// View renders the tab bar and the active page.
func (d Dashboard) View() string {
	t := d.theme
	width, _ := sizeOr(d.width, d.height)
	inner := clamp(width-4, 40, 120)

	tabs := make([]string, 0, tabCount)
	for i := Tab(0); i < tabCount; i++ {
		if i == d.tab {
			tabs = append(tabs, t.TabActive.Render(i.String()))
		} else {
			tabs = append(tabs, t.Tab.Render(i.String()))
		}
	}

	var body string
	switch {
	case d.portfolio == nil && d.loading:
		body = t.RenderInfo("Loading...")
	default:
		switch d.tab {
		case TabPortfolio:
			body = d.viewPortfolio(inner)
		case TabTrades:
			body = d.viewTrades(inner)
		case TabPlatforms:
			body = d.viewPlatforms(inner)
		case TabMarket:
			body = d.viewMarket(inner)
		}
	}

	footer := ""
	switch {
	case d.entering:
		footer = t.InputFocused.Render(d.prompt.View())
	case d.err != "":
		footer = t.RenderError(d.err)
	case d.loading:
		footer = t.Muted.Render("Refreshing...")
	case !d.updatedAt.IsZero():
		footer = t.Muted.Render("Updated " + d.updatedAt.Local().Format("15:04:05"))
	}
	if d.entering && d.err != "" {
		footer = lipgloss.JoinVertical(lipgloss.Left, footer, t.RenderError(d.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
		t.Panel.Width(inner).Render(body),
		footer,
	)
}

func (d Dashboard) viewPortfolio(width int) string {
	t := d.theme
	if d.portfolio == nil {
		return t.Muted.Render("No portfolio data.")
	}
	p := d.portfolio
	rows := []string{
		t.Label.Render("Total value  ") + t.Value.Render(util.FormatMoney(p.TotalValue)),
		t.Label.Render("Cash         ") + t.Value.Render(util.FormatMoney(p.Cash)),
		"",
	}
	if len(p.Holdings) == 0 {
		return strings.Join(append(rows, t.Muted.Render("No holdings yet. Press t to trade.")), "\n")
	}
	rows = append(rows, t.Label.Render(row(width, "SYMBOL", "QTY", "AVG PRICE", "VALUE")))
	for _, h := range p.Holdings {
		rows = append(rows, row(width, h.Symbol, util.FormatQuantity(h.Quantity),
			util.FormatMoney(h.AvgPrice), util.FormatMoney(h.Value)))
	}
	return strings.Join(rows, "\n")
}

func (d Dashboard) viewTrades(width int) string {
	t := d.theme
	if len(d.trades) == 0 {
		return t.Muted.Render("No trades yet. Press t to trade.")
	}
	width -= len(cursorMark)
	cw := colWidth(width, 7)
	rows := []string{t.Label.Render(cursorBlank + row(width, "TIME", "SIDE", "SYMBOL", "QTY", "PRICE", "TOTAL", "P&L"))}
	for i, tr := range d.trades {
		side := t.Gain.Render(util.PadRight(strings.ToUpper(tr.Side), cw))
		if tr.Side == appdata.SideSell {
			side = t.Loss.Render(util.PadRight(strings.ToUpper(tr.Side), cw))
		}
		pnl := t.Muted.Render("open")
		if tr.Status == appdata.StatusClosed {
			pnl = t.Change(fmt.Sprintf("%+.2f", tr.PnL), tr.PnL)
		}
		rows = append(rows, d.mark(i)+util.PadRight(tr.ExecutedAt.Local().Format("01-02 15:04"), cw)+side+
			util.PadRight(tr.Symbol, cw)+util.PadRight(util.FormatQuantity(tr.Quantity), cw)+
			util.PadRight(util.FormatMoney(tr.Price), cw)+util.PadRight(util.FormatMoney(tr.Total), cw)+pnl)
	}
	return strings.Join(rows, "\n")
}

func (d Dashboard) viewPlatforms(width int) string {
	t := d.theme
	if len(d.platforms) == 0 {
		return t.Muted.Render("No platforms connected.")
	}
	width -= len(cursorMark)
	rows := []string{t.Label.Render(cursorBlank + row(width, "NAME", "STATUS", "API KEY"))}
	for i, p := range d.platforms {
		status := styles.StatusIndicators.Error + " untested"
		if p.Connected {
			status = styles.StatusIndicators.Success + " connected"
		}
		rows = append(rows, d.mark(i)+row(width, p.Name, status, p.APIKeyHint))
	}
	return strings.Join(rows, "\n")
}

func (d Dashboard) viewMarket(width int) string {
	t := d.theme
	if len(d.quotes) == 0 {
		return t.Muted.Render("No market data.")
	}
	rows := []string{t.Label.Render(row(width, "SYMBOL", "PRICE", "24H", "SOURCE"))}
	for _, q := range d.quotes {
		change := fmt.Sprintf("%+.1f%%", q.Change24h)
		cw := colWidth(width, 4)
		rows = append(rows, util.PadRight(q.Symbol, cw)+util.PadRight(util.FormatMoney(q.Price), cw)+
			t.Change(util.PadRight(change, cw), q.Change24h)+t.Muted.Render(util.PadRight(q.Source, cw)))
	}
	return strings.Join(rows, "\n")
}

const (
	cursorMark  = "> "
	cursorBlank = "  "
)

func (d Dashboard) mark(i int) string {
	if i == d.cursor {
		return d.theme.TabActive.Render(cursorMark)
	}
	return cursorBlank
}

// row lays cells out in equal-width columns.
func row(width int, cells ...string) string {
	cw := colWidth(width, len(cells))
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(util.PadRight(c, cw))
	}
	return strings.TrimRight(b.String(), " ")
}

func colWidth(width, cols int) int {
	if cols <= 0 {
		return width
	}
	w := (width - 2) / cols
	if w < 6 {
		w = 6
	}
	return w
}
