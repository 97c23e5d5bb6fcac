// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neontrader/neon-tui/internal/auth"
	"github.com/neontrader/neon-tui/internal/ui/styles"
)

// =============================================================================
// LOGIN FORM
// =============================================================================

// FormMode selects between signing in and creating an account.
type FormMode int

const (
	ModeLogin FormMode = iota
	ModeRegister
)

func (m FormMode) String() string {
	if m == ModeRegister {
		return "register"
	}
	return "login"
}

// Field indexes. Login uses email, password and, when the account asks for
// it, totp. Register uses email, username, password and confirm.
const (
	fieldEmail = iota
	fieldUsername
	fieldPassword
	fieldConfirm
	fieldTOTP
	fieldCount
)

var fieldLabels = [fieldCount]string{"Email", "Username", "Password", "Confirm password", "Two-factor code"}

// LoginSubmitMsg carries credentials from the form.
type LoginSubmitMsg struct {
	Credentials auth.Credentials
}

// RegisterSubmitMsg carries a registration from the form.
type RegisterSubmitMsg struct {
	Registration auth.Registration
}

// LoginForm is the signed-out screen.
type LoginForm struct {
	theme *styles.Theme

	mode     FormMode
	inputs   [fieldCount]textinput.Model
	focus    int
	showTOTP bool

	notice string
	err    string
	busy   bool

	width  int
	height int
}

// NewLoginForm creates the form in login mode.
func NewLoginForm(theme *styles.Theme) LoginForm {
	f := LoginForm{theme: theme}
	f.inputs[fieldEmail] = newInput("you@example.com", false)
	f.inputs[fieldUsername] = newInput("display name", false)
	f.inputs[fieldPassword] = newInput("at least 8 characters", true)
	f.inputs[fieldConfirm] = newInput("repeat password", true)
	f.inputs[fieldTOTP] = newInput("6-digit code", false)
	f.inputs[fieldEmail].Focus()
	return f
}

// SetSize sets the screen dimensions.
func (f *LoginForm) SetSize(width, height int) {
	f.width = width
	f.height = height
}

// Mode returns the current mode.
func (f LoginForm) Mode() FormMode {
	return f.mode
}

// Busy reports whether a submission is in flight.
func (f LoginForm) Busy() bool {
	return f.busy
}

// Err returns the error shown on the form.
func (f LoginForm) Err() string {
	return f.err
}

// Notice returns the informational line shown above the form.
func (f LoginForm) Notice() string {
	return f.notice
}

// Value returns the text of a field by label, for tests and prefill.
func (f LoginForm) Value(label string) string {
	for i, l := range fieldLabels {
		if strings.EqualFold(l, label) {
			return f.inputs[i].Value()
		}
	}
	return ""
}

// SetNotice shows an informational line, such as why the last session
// ended.
func (f *LoginForm) SetNotice(msg string) {
	f.notice = msg
}

// SetError shows msg and re-enables input.
func (f *LoginForm) SetError(msg string) {
	f.err = msg
	f.busy = false
}

// Prefill sets the email field.
func (f *LoginForm) Prefill(email string) {
	f.inputs[fieldEmail].SetValue(email)
}

// RequireTOTP reveals the second-factor field and focuses it.
func (f *LoginForm) RequireTOTP() tea.Cmd {
	f.showTOTP = true
	f.busy = false
	return f.focusField(fieldTOTP)
}

// Reset clears secrets and errors and returns to the first field. The
// email is kept so a re-login after expiry needs only the password.
func (f *LoginForm) Reset() tea.Cmd {
	for i := range f.inputs {
		if i != fieldEmail {
			f.inputs[i].Reset()
		}
	}
	f.err = ""
	f.busy = false
	f.showTOTP = false
	if f.inputs[fieldEmail].Value() != "" {
		return f.focusField(fieldPassword)
	}
	return f.focusField(fieldEmail)
}

// fields lists the visible fields in tab order.
func (f LoginForm) fields() []int {
	if f.mode == ModeRegister {
		return []int{fieldEmail, fieldUsername, fieldPassword, fieldConfirm}
	}
	if f.showTOTP {
		return []int{fieldEmail, fieldPassword, fieldTOTP}
	}
	return []int{fieldEmail, fieldPassword}
}

func (f *LoginForm) focusField(idx int) tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	f.focus = idx
	return f.inputs[idx].Focus()
}

func (f *LoginForm) move(delta int) tea.Cmd {
	order := f.fields()
	pos := 0
	for i, idx := range order {
		if idx == f.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(order)) % len(order)
	return f.focusField(order[pos])
}

func (f *LoginForm) toggleMode() tea.Cmd {
	if f.mode == ModeLogin {
		f.mode = ModeRegister
	} else {
		f.mode = ModeLogin
	}
	f.err = ""
	f.showTOTP = false
	return f.focusField(fieldEmail)
}

// Update handles messages for the form.
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		f.SetSize(msg.Width, msg.Height)
		return f, nil

	case tea.KeyMsg:
		if f.busy {
			return f, nil
		}
		switch msg.String() {
		case "tab", "down":
			return f, f.move(1)
		case "shift+tab", "up":
			return f, f.move(-1)
		case "ctrl+r":
			return f, f.toggleMode()
		case "enter":
			order := f.fields()
			if f.focus != order[len(order)-1] {
				return f, f.move(1)
			}
			return f, f.submit()
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

// submit checks that required fields are filled and emits the request.
// Format rules are left to the controller so there is one source of truth.
func (f *LoginForm) submit() tea.Cmd {
	for _, idx := range f.fields() {
		if idx == fieldTOTP {
			continue
		}
		if strings.TrimSpace(f.inputs[idx].Value()) == "" {
			f.err = fieldLabels[idx] + " is required"
			return f.focusField(idx)
		}
	}

	f.err = ""
	f.busy = true
	email := strings.TrimSpace(f.inputs[fieldEmail].Value())
	password := f.inputs[fieldPassword].Value()

	if f.mode == ModeRegister {
		reg := auth.Registration{
			Email:           email,
			Username:        strings.TrimSpace(f.inputs[fieldUsername].Value()),
			Password:        password,
			ConfirmPassword: f.inputs[fieldConfirm].Value(),
		}
		return func() tea.Msg { return RegisterSubmitMsg{Registration: reg} }
	}

	creds := auth.Credentials{
		Email:    email,
		Password: password,
		TOTPCode: strings.TrimSpace(f.inputs[fieldTOTP].Value()),
	}
	return func() tea.Msg { return LoginSubmitMsg{Credentials: creds} }
}

// View renders the form.
func (f LoginForm) View() string {
	t := f.theme
	width, height := sizeOr(f.width, f.height)
	boxWidth := clamp(width-8, 44, 64)

	title := "Sign in to Neon Trader"
	toggle := "ctrl+r create an account"
	if f.mode == ModeRegister {
		title = "Create your Neon Trader account"
		toggle = "ctrl+r back to sign in"
	}

	lines := []string{t.FormTitle.Render(title)}
	if f.notice != "" {
		lines = append(lines, t.RenderWarning(f.notice), "")
	}
	for _, idx := range f.fields() {
		lines = append(lines, fieldView(t, fieldLabels[idx], f.inputs[idx], idx == f.focus))
	}

	status := ""
	switch {
	case f.busy:
		status = t.RenderInfo("Contacting server...")
	case f.err != "":
		status = t.RenderError(f.err)
	}
	lines = append(lines, "", joinNonEmpty(status, t.Hint.Render("tab next  enter submit  "+toggle+"  ctrl+c quit")))

	box := t.FormBox.Width(boxWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	return center(width, height, box)
}
