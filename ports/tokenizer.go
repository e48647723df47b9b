package ports

import "github.com/taalim-io/gatekeeper/core"

// Tokenizer converts between domain sessions and signed tokens
type Tokenizer interface {
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)
}
