package notes

// CallbackPrefix prefixes the data of the /removeallnotes buttons.
const (
	CallbackPrefix = "notes_"
	callbackRemove = CallbackPrefix + "rmall"
	callbackCancel = CallbackPrefix + "cancel"
)

const (
	listLineShort = "`%2d.`  `#%s`\n"
	listLine      = "`%d.`  `#%s`\n"
)

const (
	msgGetUsage       = "Get rekt"
	msgNoSuchNote     = "This note doesn't exist"
	msgBadNoteID      = "Wrong Note ID 😾"
	msgNothingToSave  = "Dude, there's no note"
	msgSaved          = "Added `%s`.\nGet it with /get `%s`, or `#%s`"
	msgFromBotText    = "Seems like you're trying to save a message from a bot. Unfortunately, bots can't forward bot messages, so I can't save the exact message. \nI'll save all the text I can, but if you want more, you'll have to forward the message yourself, and then save it."
	msgFromBotMedia   = "Bots are kinda handicapped by telegram, making it hard for bots to interact with other bots, so I can't save this message like I usually would - do you mind forwarding it and then saving that new message? Thanks!"
	msgCleared        = "Successfully removed note."
	msgNotANote       = "That's not a note in my database!"
	msgOwnerOnly      = "Only the chat owner can clear all notes at once."
	msgConfirmClear   = "Are you sure you would like to clear ALL notes in %s? This action cannot be undone."
	msgButtonClearAll = "Delete all notes"
	msgButtonCancel   = "Cancel"
	msgAllCleared     = "Deleted all notes."
	msgClearCancelled = "Clearing of all notes has been cancelled."
	msgOnlyOwnerBtn   = "Only owner of the chat can do this."
	msgAdminFirst     = "You need to be admin to do this."
	msgListHeader     = "Get notes by `/notenumber` or `#notename` \n\n  *ID*    *Note* \n"
	msgNoNotes        = "No notes in this chat!"
	msgBadFormat      = "This note could not be sent, as it is incorrectly formatted."
	msgUnknownMention = "Looks like you tried to mention someone I've never seen before. If you really want to mention them, forward one of their messages to me, and I'll be able to tag them!"
)
