package role

// RosterConfig lists the static privilege sets.
type RosterConfig struct {
	OwnerID    int64   `yaml:"owner_id"`
	Developers []int64 `yaml:"developers"`
	Sudo       []int64 `yaml:"sudo"`
	Support    []int64 `yaml:"support"`
	Tigers     []int64 `yaml:"tigers"`
	Wolves     []int64 `yaml:"wolves"`
}

// Roster holds the process-wide static tiers. It is immutable after
// construction and safe for concurrent use.
type Roster struct {
	owner      int64
	developers map[int64]struct{}
	sudo       map[int64]struct{}
	support    map[int64]struct{}
	tigers     map[int64]struct{}
	wolves     map[int64]struct{}
}

// NewRoster builds a Roster. The owner is always a developer.
func NewRoster(cfg RosterConfig) *Roster {
	r := &Roster{
		owner:      cfg.OwnerID,
		developers: toSet(cfg.Developers),
		sudo:       toSet(cfg.Sudo),
		support:    toSet(cfg.Support),
		tigers:     toSet(cfg.Tigers),
		wolves:     toSet(cfg.Wolves),
	}
	if cfg.OwnerID != 0 {
		r.developers[cfg.OwnerID] = struct{}{}
	}
	return r
}

func toSet(ids []int64) map[int64]struct{} {
	s := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// OwnerID returns the configured owner.
func (r *Roster) OwnerID() int64 { return r.owner }

// IsOwner reports whether id is the configured owner.
func (r *Roster) IsOwner(id int64) bool {
	return r.owner != 0 && id == r.owner
}

// Tier returns the highest static tier of id, or Member.
func (r *Roster) Tier(id int64) Tier {
	switch {
	case has(r.developers, id):
		return Developer
	case has(r.sudo, id):
		return SudoOwner
	case has(r.support, id):
		return Support
	case has(r.tigers, id), has(r.wolves, id):
		return Whitelisted
	default:
		return Member
	}
}

// Title is the display rank used in greetings: Developer, Dragon, Demon,
// Tiger or Wolf. Members get an empty title.
func (r *Roster) Title(id int64) string {
	switch {
	case has(r.developers, id):
		return "Developer"
	case has(r.sudo, id):
		return "Dragon"
	case has(r.support, id):
		return "Demon"
	case has(r.tigers, id):
		return "Tiger"
	case has(r.wolves, id):
		return "Wolf"
	default:
		return ""
	}
}

func has(s map[int64]struct{}, id int64) bool {
	_, ok := s[id]
	return ok
}
