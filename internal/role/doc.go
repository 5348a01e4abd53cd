// Package role answers privilege questions about users in chats.
//
// Tiers above ChatAdmin come from a static Roster loaded at startup and are
// process-wide. ChatAdmin is chat-scoped and resolved through an AdminCache
// that memoizes each chat's administrator list for a configurable TTL.
package role
