package domain

import "encoding/json"

// Team is a workspace that installed the bot.
// Corresponds to team table in PostgreSQL. SlackID is the upsert key.
type Team struct {
	SlackID        string          // workspace id from the OAuth response
	Name           string          // workspace display name
	AccessToken    string          // user-scoped token
	BotAccessToken string          // token used for posting replies
	BotUserID      string          // bot user id (may be empty)
	Scope          string          // granted scopes
	Auth           json.RawMessage // raw OAuth response, stored verbatim
	CreatedAt      int64           // first authorization (ms)
	UpdatedAt      int64           // last authorization (ms)
}
