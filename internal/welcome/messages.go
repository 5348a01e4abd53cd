package welcome

import (
	"math/rand/v2"
	"strconv"
	"time"
)

// VerifyPrefix is the callback data prefix of the verification button.
const VerifyPrefix = "welcome_verify:"

// Greetings for members with a static tier.
const (
	msgOwnerJoined     = "Step aside, my master has arrived 😎."
	msgDeveloperJoined = "Whoa! One of the big names just joined!"
	msgDragonJoined    = "A Dragon just arrived, be careful!"
	msgDemonJoined     = "A Demon has arrived 😈!"
	msgTigerJoined     = "Oof! A Tiger is here!"
	msgWolfJoined      = "Oof! Our Wolf has arrived!"
	msgSelfJoined      = "I'm here 😊! Make me an admin so I can welcome and verify new members."

	msgOwnerLeft     = "My master has left the group :(.."
	msgDeveloperLeft = "See you in support! :)"
)

// Verification flow.
const (
	msgChallenge      = "%s, tap the button below to prove you're not a robot.\nYou have %d seconds before you get kicked."
	msgChallengeBtn   = "Yes, I'm human"
	msgNotYourButton  = "You can't do this!"
	msgVerified       = "Aha, you're human! You can talk now."
	msgVerifyExpired  = "This verification has already expired."
	msgKickedNotice   = "Kicking them from the group.\nThey can rejoin any time."
	msgNewGroupAudit  = "#NEW_GROUP\n<b>Group name:</b> %s\n<b>ID:</b> <code>%d</code>"
	msgNewGroupAuditC = "\n<b>Creator:</b> <code>%s</code>"
)

// Notes appended to the fallback greeting when the configured one fails.
const (
	noteButtonURLInvalid = "\nNote: the current message has an invalid url in one of its buttons. Please update."
	noteUnsupportedURL   = "\nNote: the current message has buttons which use url protocols that are unsupported by Telegram. Please update."
	noteWrongURLHost     = "\nNote: the current message has some bad urls. Please update."
	noteSendFailed       = "\nNote: an error occurred when sending the custom message. Please update."
)

// Settings commands.
const (
	msgOnOffOnly        = "I understand 'on/yes' or 'off/no' only!"
	msgWelcomeOn        = "Okay! I'll greet members when they join."
	msgWelcomeOff       = "I'll go loaf around and not welcome anyone then."
	msgGoodbyeOn        = "Ok! I'll say goodbye to members when they leave."
	msgGoodbyeOff       = "Ok! I won't say goodbye anymore."
	msgWelcomeStatus    = "This chat has its welcome setting set to: `%t`.\n*The welcome message (not filling the {}) is:*"
	msgGoodbyeStatus    = "This chat has its goodbye setting set to: `%t`.\n*The goodbye message (not filling the {}) is:*"
	msgNothingToSave    = "You didn't specify what to reply with!"
	msgWelcomeSaved     = "Successfully set custom welcome message!"
	msgWelcomeReset     = "Successfully reset welcome message to default!"
	msgGoodbyeSaved     = "Successfully set custom goodbye message!"
	msgGoodbyeReset     = "Successfully reset goodbye message to default!"
	msgMuteOff          = "I will no longer mute people on joining!"
	msgMuteSoft         = "I will restrict users' permission to send media for %s."
	msgMuteStrong       = "I will now mute people when they join until they prove they're not a bot.\nThey will have %d seconds before they get kicked."
	msgMuteBadArg       = "Please enter <code>off</code>/<code>no</code>/<code>soft</code>/<code>strong</code>!"
	msgMuteStatus       = "Give me a setting!\nChoose one out of: <code>off</code>/<code>no</code> or <code>soft</code> or <code>strong</code> only!\nCurrent setting: <code>%s</code>"
	msgCleanWelcomeIs   = "I should be deleting welcome messages up to two days old."
	msgCleanWelcomeNot  = "I'm currently not deleting old welcome messages!"
	msgCleanWelcomeOn   = "I'll try to delete old welcome messages!"
	msgCleanWelcomeOff  = "I won't delete old welcome messages."
	msgCleanServiceOn   = "Welcome clean service is : on"
	msgCleanServiceOff  = "Welcome clean service is : off"
	msgCleanServiceBad  = "Invalid option"
	msgCleanServiceHelp = "Usage is <code>on</code>/<code>yes</code> or <code>off</code>/<code>no</code>\nCurrent setting: <code>%s</code>"
)

const welcomeHelp = "Your group's welcome/goodbye messages can be personalised in multiple ways.\n" +
	" • `{first}`*:* the user's *first* name\n" +
	" • `{last}`*:* the user's *last* name. Defaults to *first name* if the user has no last name.\n" +
	" • `{fullname}`*:* the user's *full* name. Defaults to *first name* if the user has no last name.\n" +
	" • `{username}`*:* the user's *username*. Defaults to a *mention* of the first name if the user has no username.\n" +
	" • `{mention}`*:* *mentions* the user, tagging them with their first name.\n" +
	" • `{id}`*:* the user's *id*\n" +
	" • `{count}`*:* the user's *member number*.\n" +
	" • `{chatname}`*:* the *current chat name*.\n" +
	"Each variable MUST be surrounded by `{}` to be replaced.\n" +
	"Welcome messages also support markdown, so you can make any elements bold/italic/code/links. " +
	"Buttons are also supported: `[Rules](buttonurl://t.me/%s?start=group_id)`. " +
	"Replace `group_id` with your group's id, which starts with -."

const welcomeMuteHelp = "You can get the bot to mute new people who join your group and hence prevent spambots from flooding your group.\n" +
	"The following options are possible:\n" +
	"• `/welcomemute soft`*:* restricts new members from sending media for %s.\n" +
	"• `/welcomemute strong`*:* mutes new members until they tap on a button thereby verifying they're human.\n" +
	"• `/welcomemute off`*:* turns off welcomemute.\n" +
	"*Note:* Strong mode kicks a user from the chat if they don't verify in %d seconds. They can always rejoin though."

// Built-in greetings used when a chat has no custom text.
var (
	defaultWelcomes = []string{
		"{first} is here!",
		"Hey {first}, welcome aboard!",
		"Ready player {first}",
		"A wild {first} appeared.",
		"{first} just joined. Can I get a heal?",
		"Welcome, {first}. We hope you brought pizza.",
		"Everyone, welcome {first}!",
		"{first} joined. You must construct additional pylons.",
	}
	defaultGoodbyes = []string{
		"{first} will be missed.",
		"{first} just left.",
		"{first} has left the lobby.",
		"Nice knowing ya, {first}!",
		"{first} left the group. Bye!",
		"Goodbye {first}, see you soon.",
	}
)

func pick(list []string) string {
	return list[rand.IntN(len(list))]
}

// humanDuration renders whole hours as "24 hours" and anything else with
// time.Duration formatting.
func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return strconv.Itoa(h) + " hours"
	}
	return d.String()
}
