package welcome

import (
	"context"
	"fmt"
	"strings"

	"github.com/flemzord/gatekeep/internal/guard"
	"github.com/flemzord/gatekeep/internal/markup"
	"github.com/flemzord/gatekeep/internal/router"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/settings"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

func (p *Pipeline) registerCommands(d *router.Dispatcher, checks *guard.Checks) error {
	admin := guard.New(checks.GroupOnly(), checks.UserAdmin())
	anywhereAdmin := guard.New(checks.UserAdmin())

	cmds := []router.Command{
		{Names: []string{"welcome"}, Guards: admin, Handle: p.cmdWelcome},
		{Names: []string{"goodbye"}, Guards: admin, Handle: p.cmdGoodbye},
		{Names: []string{"setwelcome"}, Guards: admin, Handle: p.cmdSetWelcome},
		{Names: []string{"resetwelcome"}, Guards: admin, Handle: p.cmdResetWelcome},
		{Names: []string{"setgoodbye"}, Guards: admin, Handle: p.cmdSetGoodbye},
		{Names: []string{"resetgoodbye"}, Guards: admin, Handle: p.cmdResetGoodbye},
		{Names: []string{"welcomemute", "welcomemutes"}, Guards: admin, Handle: p.cmdWelcomeMute},
		{Names: []string{"cleanwelcome"}, Guards: admin, Handle: p.cmdCleanWelcome},
		{Names: []string{"cleanservice"}, Guards: admin, Handle: p.cmdCleanService},
		{Names: []string{"welcomehelp"}, Guards: anywhereAdmin, Handle: p.cmdWelcomeHelp},
		{Names: []string{"welcomemutehelp"}, Guards: anywhereAdmin, Handle: p.cmdWelcomeMuteHelp},
	}
	for _, c := range cmds {
		if err := d.HandleCommand(c); err != nil {
			return fmt.Errorf("welcome: %w", err)
		}
	}
	return nil
}

// onOff parses the on/off argument shared by toggle commands.
func onOff(arg string) (enabled, ok bool) {
	switch strings.ToLower(arg) {
	case "on", "yes":
		return true, true
	case "off", "no":
		return false, true
	default:
		return false, false
	}
}

func firstArg(ev *router.Event) string {
	if len(ev.Args) == 0 {
		return ""
	}
	return strings.ToLower(ev.Args[0])
}

func (p *Pipeline) cmdWelcome(ctx context.Context, ev *router.Event) error {
	arg := firstArg(ev)
	if arg == "" || arg == "noformat" {
		g, err := p.store.Welcome(ctx, ev.Chat.ID)
		if err != nil {
			return err
		}
		if _, err := ev.Reply(ctx, fmt.Sprintf(msgWelcomeStatus, g.Enabled), botapi.ParseModeMarkdown); err != nil {
			return err
		}
		return p.showGreeting(ctx, ev, g, defaultWelcomes[0], arg == "noformat")
	}

	enabled, ok := onOff(arg)
	if !ok {
		_, err := ev.Reply(ctx, msgOnOffOnly, "")
		return err
	}
	if err := p.store.SetWelcomeEnabled(ctx, ev.Chat.ID, enabled); err != nil {
		return err
	}
	p.auditSetting(ev, fmt.Sprintf("welcome=%t", enabled))
	text := msgWelcomeOff
	if enabled {
		text = msgWelcomeOn
	}
	_, err := ev.Reply(ctx, text, "")
	return err
}

func (p *Pipeline) cmdGoodbye(ctx context.Context, ev *router.Event) error {
	arg := firstArg(ev)
	if arg == "" || arg == "noformat" {
		g, err := p.store.Goodbye(ctx, ev.Chat.ID)
		if err != nil {
			return err
		}
		if _, err := ev.Reply(ctx, fmt.Sprintf(msgGoodbyeStatus, g.Enabled), botapi.ParseModeMarkdown); err != nil {
			return err
		}
		return p.showGreeting(ctx, ev, g, defaultGoodbyes[0], arg == "noformat")
	}

	enabled, ok := onOff(arg)
	if !ok {
		_, err := ev.Reply(ctx, msgOnOffOnly, "")
		return err
	}
	if err := p.store.SetGoodbyeEnabled(ctx, ev.Chat.ID, enabled); err != nil {
		return err
	}
	p.auditSetting(ev, fmt.Sprintf("goodbye=%t", enabled))
	text := msgGoodbyeOff
	if enabled {
		text = msgGoodbyeOn
	}
	_, err := ev.Reply(ctx, text, "")
	return err
}

// showGreeting sends the stored template unfilled. With noformat the
// buttons are shown in their markup form and nothing is parsed.
func (p *Pipeline) showGreeting(ctx context.Context, ev *router.Event, g settings.Greeting, fallback string, noformat bool) error {
	text := g.Text
	if text == "" && !g.Type.IsMedia() {
		text = fallback
	}
	pl := Payload{ChatID: ev.Chat.ID, Type: g.Type, FileID: g.FileID, Text: text, Backup: fallback}
	if noformat {
		pl.Text = text + markup.RevertButtons(g.Buttons)
		if g.Type.IsMedia() {
			_, err := p.bot.SendMedia(ctx, botapi.MediaRequest{
				Kind: g.Type.MediaKind(), ChatID: ev.Chat.ID, FileID: g.FileID, Caption: pl.Text,
			})
			return err
		}
		_, err := ev.Reply(ctx, pl.Text, "")
		return err
	}
	pl.Keyboard = markup.Keyboard(g.Buttons)
	_, err := p.send(ctx, pl)
	return err
}

func (p *Pipeline) cmdSetWelcome(ctx context.Context, ev *router.Event) error {
	c, ok := settings.ExtractContent(ev.Message, ev.RawArgs)
	if !ok {
		_, err := ev.Reply(ctx, msgNothingToSave, "")
		return err
	}
	if err := p.store.SetWelcome(ctx, ev.Chat.ID, c.Greeting()); err != nil {
		return err
	}
	p.auditSetting(ev, "set_welcome")
	_, err := ev.Reply(ctx, msgWelcomeSaved, "")
	return err
}

func (p *Pipeline) cmdResetWelcome(ctx context.Context, ev *router.Event) error {
	if err := p.store.ResetWelcome(ctx, ev.Chat.ID); err != nil {
		return err
	}
	p.auditSetting(ev, "reset_welcome")
	_, err := ev.Reply(ctx, msgWelcomeReset, "")
	return err
}

func (p *Pipeline) cmdSetGoodbye(ctx context.Context, ev *router.Event) error {
	c, ok := settings.ExtractContent(ev.Message, ev.RawArgs)
	if !ok {
		_, err := ev.Reply(ctx, msgNothingToSave, "")
		return err
	}
	if err := p.store.SetGoodbye(ctx, ev.Chat.ID, c.Greeting()); err != nil {
		return err
	}
	p.auditSetting(ev, "set_goodbye")
	_, err := ev.Reply(ctx, msgGoodbyeSaved, "")
	return err
}

func (p *Pipeline) cmdResetGoodbye(ctx context.Context, ev *router.Event) error {
	if err := p.store.ResetGoodbye(ctx, ev.Chat.ID); err != nil {
		return err
	}
	p.auditSetting(ev, "reset_goodbye")
	_, err := ev.Reply(ctx, msgGoodbyeReset, "")
	return err
}

func (p *Pipeline) cmdWelcomeMute(ctx context.Context, ev *router.Event) error {
	arg := firstArg(ev)
	if arg == "" {
		cur, err := p.store.MutePolicy(ctx, ev.Chat.ID)
		if err != nil {
			return err
		}
		_, err = ev.Reply(ctx, fmt.Sprintf(msgMuteStatus, cur), botapi.ParseModeHTML)
		return err
	}
	if arg == "no" {
		arg = string(settings.MuteOff)
	}
	policy, ok := settings.ParseMutePolicy(arg)
	if !ok {
		_, err := ev.Reply(ctx, msgMuteBadArg, botapi.ParseModeHTML)
		return err
	}
	if err := p.store.SetMutePolicy(ctx, ev.Chat.ID, policy); err != nil {
		return err
	}
	p.auditSetting(ev, "welcome_mute="+string(policy))

	var text string
	switch policy {
	case settings.MuteOff:
		text = msgMuteOff
	case settings.MuteSoft:
		text = fmt.Sprintf(msgMuteSoft, humanDuration(p.softMuteDuration))
	case settings.MuteStrong:
		text = fmt.Sprintf(msgMuteStrong, int(p.verifyTimeout.Seconds()))
	}
	_, err := ev.Reply(ctx, text, "")
	return err
}

func (p *Pipeline) cmdCleanWelcome(ctx context.Context, ev *router.Event) error {
	arg := firstArg(ev)
	if arg == "" {
		cw, err := p.store.CleanWelcome(ctx, ev.Chat.ID)
		if err != nil {
			return err
		}
		text := msgCleanWelcomeNot
		if cw.Enabled {
			text = msgCleanWelcomeIs
		}
		_, err = ev.Reply(ctx, text, "")
		return err
	}

	enabled, ok := onOff(arg)
	if !ok {
		_, err := ev.Reply(ctx, msgOnOffOnly, "")
		return err
	}
	if err := p.store.SetCleanWelcomeEnabled(ctx, ev.Chat.ID, enabled); err != nil {
		return err
	}
	p.auditSetting(ev, fmt.Sprintf("clean_welcome=%t", enabled))
	text := msgCleanWelcomeOff
	if enabled {
		text = msgCleanWelcomeOn
	}
	_, err := ev.Reply(ctx, text, "")
	return err
}

func (p *Pipeline) cmdCleanService(ctx context.Context, ev *router.Event) error {
	arg := firstArg(ev)
	if arg == "" {
		cur, err := p.store.CleanService(ctx, ev.Chat.ID)
		if err != nil {
			return err
		}
		state := "off"
		if cur {
			state = "on"
		}
		_, err = ev.Reply(ctx, fmt.Sprintf(msgCleanServiceHelp, state), botapi.ParseModeHTML)
		return err
	}

	enabled, ok := onOff(arg)
	if !ok {
		_, err := ev.Reply(ctx, msgCleanServiceBad, "")
		return err
	}
	if err := p.store.SetCleanService(ctx, ev.Chat.ID, enabled); err != nil {
		return err
	}
	p.auditSetting(ev, fmt.Sprintf("clean_service=%t", enabled))
	text := msgCleanServiceOff
	if enabled {
		text = msgCleanServiceOn
	}
	_, err := ev.Reply(ctx, text, "")
	return err
}

func (p *Pipeline) cmdWelcomeHelp(ctx context.Context, ev *router.Event) error {
	_, err := ev.Reply(ctx, fmt.Sprintf(welcomeHelp, markup.EscapeMarkdown(p.self.Username)), botapi.ParseModeMarkdown)
	return err
}

func (p *Pipeline) cmdWelcomeMuteHelp(ctx context.Context, ev *router.Event) error {
	text := fmt.Sprintf(welcomeMuteHelp, humanDuration(p.softMuteDuration), int(p.verifyTimeout.Seconds()))
	_, err := ev.Reply(ctx, text, botapi.ParseModeMarkdown)
	return err
}

func (p *Pipeline) auditSetting(ev *router.Event, detail string) {
	var actor int64
	if ev.From != nil {
		actor = ev.From.ID
	}
	p.audit.Log(security.AuditEvent{
		Type:    security.EventSettingChange,
		ChatID:  ev.Chat.ID,
		ActorID: actor,
		Detail:  detail,
	})
}
