package role

// Tier is an ordered privilege level. Each tier implies all tiers below it.
type Tier int

// Privilege tiers from lowest to highest.
const (
	Member Tier = iota
	ChatAdmin
	Whitelisted
	Support
	SudoOwner
	Developer
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case Member:
		return "member"
	case ChatAdmin:
		return "chat_admin"
	case Whitelisted:
		return "whitelisted"
	case Support:
		return "support"
	case SudoOwner:
		return "sudo"
	case Developer:
		return "developer"
	default:
		return "unknown"
	}
}

// Reserved Telegram accounts that always act with administrator rights:
// the service account that forwards linked-channel posts and the
// anonymous group administrator.
const (
	TelegramServiceID   int64 = 777000
	AnonymousAdminBotID int64 = 1087968824
)

// IsReserved reports whether id is one of the reserved Telegram accounts.
func IsReserved(id int64) bool {
	return id == TelegramServiceID || id == AnonymousAdminBotID
}
