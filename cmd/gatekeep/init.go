package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// tokenEnv is written in place of the token when the wizard leaves it empty.
const tokenEnv = "${TELEGRAM_BOT_TOKEN}"

// answers collects the wizard input.
type answers struct {
	Token       string
	Mode        string
	WebhookURL  string
	OwnerID     string
	AuditChatID string
	SQLite      bool
	Gateway     bool
	GatewayBind string
}

// The file layout written by "init". Only the keys the wizard asks for
// are emitted; everything else keeps its default.
type initFile struct {
	Version string         `yaml:"version"`
	Bot     initBot        `yaml:"bot"`
	Modules map[string]any `yaml:"modules"`
}

type initBot struct {
	OwnerID     int64  `yaml:"owner_id"`
	AuditChatID int64  `yaml:"audit_chat_id,omitempty"`
	AuditLog    string `yaml:"audit_log"`
}

type initTelegram struct {
	Token         string `yaml:"token"`
	Mode          string `yaml:"mode"`
	WebhookURL    string `yaml:"webhook_url,omitempty"`
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = defaultInitPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			a := answers{Mode: "polling", GatewayBind: "127.0.0.1:8080", SQLite: true}
			if err := wizard(&a).Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}

			data, err := renderConfig(a)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func defaultInitPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "gatekeep", "gatekeep.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "gatekeep", "gatekeep.yaml")
	}
	return "gatekeep.yaml"
}

func wizard(a *answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot token").
				Description("From @BotFather. Leave empty to read " + tokenEnv + " at startup.").
				EchoMode(huh.EchoModePassword).
				Validate(validateToken).
				Value(&a.Token),
			huh.NewInput().
				Title("Owner user id").
				Description("Your numeric Telegram id. The owner outranks every other role.").
				Validate(validateUserID).
				Value(&a.OwnerID),
			huh.NewInput().
				Title("Audit chat id").
				Description("Optional group that receives #NEW_GROUP notices.").
				Validate(validateOptionalChatID).
				Value(&a.AuditChatID),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How should updates arrive?").
				Options(
					huh.NewOption("Long polling", "polling"),
					huh.NewOption("Webhook (needs a public HTTPS URL)", "webhook"),
				).
				Value(&a.Mode),
			huh.NewConfirm().
				Title("Keep settings in SQLite?").
				Description("Without it welcome texts and notes are lost on restart.").
				Value(&a.SQLite),
			huh.NewConfirm().
				Title("Enable the HTTP gateway?").
				Description("Health, metrics and admin API. Required for webhooks.").
				Value(&a.Gateway),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Public webhook URL").
				Placeholder("https://bot.example.org/webhooks/telegram").
				Validate(validateWebhookURL).
				Value(&a.WebhookURL),
		).WithHideFunc(func() bool { return a.Mode != "webhook" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway listen address").
				Value(&a.GatewayBind),
		).WithHideFunc(func() bool { return !a.Gateway && a.Mode != "webhook" }),
	)
}

func validateToken(s string) error {
	if s == "" {
		return nil
	}
	id, hash, ok := strings.Cut(s, ":")
	if !ok || hash == "" {
		return errors.New("expected <bot_id>:<hash>")
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return errors.New("expected <bot_id>:<hash>")
	}
	return nil
}

func validateUserID(s string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return errors.New("enter a positive numeric user id")
	}
	return nil
}

func validateOptionalChatID(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
		return errors.New("enter a numeric chat id")
	}
	return nil
}

func validateWebhookURL(s string) error {
	if !strings.HasPrefix(s, "https://") {
		return errors.New("webhooks need an https URL")
	}
	return nil
}

// renderConfig turns the answers into a configuration file.
func renderConfig(a answers) ([]byte, error) {
	owner, err := strconv.ParseInt(strings.TrimSpace(a.OwnerID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("owner id: %w", err)
	}
	var auditChat int64
	if s := strings.TrimSpace(a.AuditChatID); s != "" {
		if auditChat, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, fmt.Errorf("audit chat id: %w", err)
		}
	}

	token := a.Token
	if token == "" {
		token = tokenEnv
	}
	tg := initTelegram{Token: token, Mode: a.Mode}
	if a.Mode == "webhook" {
		tg.WebhookURL = a.WebhookURL
		tg.WebhookSecret = "${TELEGRAM_WEBHOOK_SECRET}"
	}

	modules := map[string]any{"channel.telegram": tg}
	if a.SQLite {
		modules["store.sqlite"] = map[string]any{}
	}
	if a.Gateway || a.Mode == "webhook" {
		modules["gateway.http"] = map[string]any{
			"bind": a.GatewayBind,
			"auth": map[string]string{"bearer_token": "${GATEKEEP_ADMIN_TOKEN}"},
		}
	}

	return yaml.Marshal(initFile{
		Version: "1",
		Bot:     initBot{OwnerID: owner, AuditChatID: auditChat, AuditLog: "audit.jsonl"},
		Modules: modules,
	})
}
