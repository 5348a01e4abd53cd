// Package telegram is the "channel.telegram" module: it receives Bot API
// updates by long polling or through the gateway webhook and hands them,
// unconverted, to the update sink installed by the application (the
// router). Outbound calls go through the shared botapi.Client it exposes.
//
// Updates from group chats outside allow_chats are dropped before they
// reach the sink. Private chats are always accepted.
package telegram
