package apperror

var (
	ErrEmptyMessage        = Validation("content", "empty message")
	ErrSelfChat            = Validation("email", "you cannot start a chat with yourself")
	ErrInvalidEmail        = Validation("email", "enter a valid email address")
	ErrNoSuchUser          = NotFound("email", "no such user")
	ErrRequesterNotFound   = NotFound(RootField, "your account no longer exists")
	ErrMessageNotFound     = NotFound(RootField, "message not found")
	ErrMemberNotFound      = NotFound(RootField, "room member not found")
	ErrNotRoomMember       = Forbidden("you are not a member of this room")
	ErrBlockedByRecipient  = Forbidden("blocked by recipient")
	ErrRecipientBlocked    = Forbidden("you have blocked recipient")
	ErrNotMessageSender    = Forbidden("only the sender can delete this message")
	ErrStaleReadReceipt    = Stale("read receipt is not newer than the current one")
	ErrEmailTaken          = AlreadyExists("email", "an account with this email already exists")
	ErrInvalidCredentials  = Unauthorized("invalid email or password")
	ErrMissingCredentials  = Unauthorized("missing or invalid authorization")
	ErrInvalidPagingOffset = Validation("offset", "offset must not be negative")
	ErrRateLimited         = New(CodeResourceExhausted, "rate limit exceeded")
	ErrUnknownFile         = Validation("content", "no such uploaded file")
	ErrFileNotOwned        = Forbidden("you can only attach files you uploaded")
	ErrFileAlreadySent     = AlreadyExists("content", "this file is already attached to a message")
)
