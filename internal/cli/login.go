// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/neontrader/neon-tui/internal/auth"
	"github.com/neontrader/neon-tui/internal/config"
)

// stdin is where prompts read from. Tests swap it.
var stdin io.Reader = os.Stdin

// newGateway builds the auth client from the [backend] section.
func newGateway(cfg *config.Config, logger *slog.Logger) *auth.Client {
	return auth.NewClient(cfg.Backend.URL,
		auth.WithTimeout(cfg.BackendTimeout()),
		auth.WithMaxRetries(cfg.Backend.MaxRetries),
		auth.WithRateLimit(cfg.Backend.RatePerSec, 3),
		auth.WithLogger(logger),
	)
}

// HandleLogin handles "neon login": it signs in once against the backend
// and prints the account. Nothing is stored locally.
//
//	--email EMAIL        account email (prompted when missing)
//	--totp CODE          second-factor code
//	--password-stdin     read the password from stdin instead of the terminal
//	--enroll-totp        enroll a second factor after signing in
func HandleLogin(args Args) error {
	p := args.Parser("json", "password-stdin", "enroll-totp")
	jsonMode := args.JSON || p.BoolFlag("json")

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	in := bufio.NewReader(stdin)
	creds, err := readCredentials(p, in)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.BackendTimeout())
	defer cancel()

	gw := newGateway(cfg, slog.Default())
	grant, err := gw.Login(ctx, creds)
	if errors.Is(err, auth.ErrTOTPRequired) && creds.TOTPCode == "" && !jsonMode {
		if creds.TOTPCode, err = promptLine(in, "Two-factor code: "); err != nil {
			return err
		}
		grant, err = gw.Login(ctx, creds)
	}
	if err != nil {
		return err
	}

	var enrollment *auth.TOTPEnrollment
	if p.BoolFlag("enroll-totp") {
		e, err := gw.EnrollTOTP(ctx, grant.Token)
		if err != nil {
			return &CommandError{Command: "login", Action: "enroll-totp", Reason: "enrollment failed", Err: err}
		}
		enrollment = &e
	}

	id := grant.Identity
	data := IdentityData{ID: id.UserID, Email: id.Email, Username: id.Username, Server: gw.BaseURL()}
	if jsonMode {
		out := map[string]interface{}{"user": data}
		if enrollment != nil {
			out["totp"] = enrollment
		}
		return NewJSONResponse("login", out).Print()
	}

	fmt.Fprintf(stdout, "%s signed in\n", RenderStatus("ok"))
	printField("user id", id.UserID)
	printField("email", id.Email)
	printField("username", id.Username)
	printField("server", gw.BaseURL())
	if enrollment != nil {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, TitleStyle.Render("Two-factor enrollment"))
		printField("secret", enrollment.Secret)
		printField("otpauth url", enrollment.URL)
		fmt.Fprintln(stdout, WarningStyle.Render("Add the secret to your authenticator app now; it is not shown again."))
	}
	return nil
}

func readCredentials(p *ArgParser, in *bufio.Reader) (auth.Credentials, error) {
	creds := auth.Credentials{
		Email:    auth.NormalizeEmail(p.Flag("email")),
		TOTPCode: p.Flag("totp"),
	}

	var err error
	if creds.Email == "" {
		line, err := promptLine(in, "Email: ")
		if err != nil {
			return creds, err
		}
		creds.Email = auth.NormalizeEmail(line)
	}
	if creds.Email == "" {
		return creds, ErrMissingArgument("email", "neon login --email you@example.com")
	}

	if p.BoolFlag("password-stdin") {
		creds.Password, err = promptLine(in, "")
	} else {
		creds.Password, err = ReadPassword("Password: ")
	}
	if err != nil {
		return creds, err
	}
	if creds.Password == "" {
		return creds, ErrMissingArgument("password", "neon login --email you@example.com")
	}
	return creds, nil
}
