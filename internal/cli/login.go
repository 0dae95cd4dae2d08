package cli

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tgpull/internal/auth"
	"tgpull/internal/telegram"
)

var loginQR bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to your Telegram account",
	Long: `Interactive sign-in: phone number, then the one-time code
Telegram delivers, then the two-factor password when the account has
one. With --qr a login QR code is written to the data directory for
scanning from another signed-in device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if authorized, err := a.svc.Authorized(ctx); err == nil && authorized {
			fmt.Println("Already signed in.")
			return nil
		}

		if loginQR {
			return qrLogin(cmd, a)
		}
		return interactiveLogin(cmd, a)
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginQR, "qr", false, "Log in by scanning a QR code instead of a phone code")
}

func interactiveLogin(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	flow := auth.NewFlow(a.svc, a.store)
	reader := bufio.NewReader(os.Stdin)

	phone, err := prompt(reader, "Phone number (e.g. +15551234567): ")
	if err != nil {
		return err
	}
	if err := flow.SubmitPhone(ctx, phone); err != nil {
		return err
	}
	fmt.Println("Code sent. Check your Telegram app (or SMS).")

	code, err := prompt(reader, "Login code: ")
	if err != nil {
		return err
	}
	outcome, err := flow.SubmitCode(ctx, code)
	if err != nil {
		return err
	}

	if outcome.PasswordRequired {
		password, err := promptHidden("Two-factor password: ")
		if err != nil {
			return err
		}
		if _, err := flow.SubmitPassword(ctx, password); err != nil {
			return err
		}
	}

	fmt.Println("Signed in.")
	return nil
}

func qrLogin(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	qrPath := filepath.Join(a.cfg.DataDir, "qr-login.png")

	_, err := a.svc.QRLogin(ctx, func(token telegram.QRToken) error {
		if token.PasswordNeeded {
			password, promptErr := promptHidden("Two-factor password: ")
			if promptErr != nil {
				return promptErr
			}
			a.svc.SubmitQRPassword(password)
			return nil
		}

		png, decodeErr := decodeDataURI(token.DataURI)
		if decodeErr != nil {
			return decodeErr
		}
		if writeErr := os.WriteFile(qrPath, png, 0o600); writeErr != nil {
			return writeErr
		}
		fmt.Printf("Scan %s with a signed-in Telegram app (Settings → Devices → Link Device).\n", qrPath)
		return nil
	})
	if err != nil {
		return err
	}

	os.Remove(qrPath)
	fmt.Println("Signed in.")
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptHidden(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func decodeDataURI(uri string) ([]byte, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		return nil, fmt.Errorf("unexpected QR token format")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
}
