package errs

// Error codes shared by the REST surface. Live-channel events never surface
// errors to the peer; they are dropped and logged instead.
const (
	ServerInternalError = 500
	ArgsError           = 1001
	TokenExpiredError   = 1501
	TokenInvalidError   = 1502
	NotParticipantError = 1601
	RecordNotFoundError = 1701
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "server internal error")
	ErrArgs           = NewCodeError(ArgsError, "args invalid")
	ErrTokenExpired   = NewCodeError(TokenExpiredError, "token expired")
	ErrTokenInvalid   = NewCodeError(TokenInvalidError, "token invalid")
	ErrNotParticipant = NewCodeError(NotParticipantError, "not a conversation participant")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "record not found")
)
