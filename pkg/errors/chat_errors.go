package errors

var (
	// Social graph
	ErrUserNotFound     = NotFound("user not found")
	ErrSelfFriendship   = InvalidArg("cannot send a friend request to yourself")
	ErrAlreadyFriends   = AlreadyExists("users are already friends")
	ErrDuplicatePending = AlreadyExists("a pending friend request already exists")
	ErrRequestNotFound  = NotFound("friend request not found")
	ErrNotRequestTarget = Forbidden("only the recipient can respond to this request")
	ErrNotRequestSender = Forbidden("only the sender can cancel this request")
	ErrAlreadyResolved  = FailedPrecondition("friend request has already been resolved")
	ErrNotFriendsYet    = NotFound("friendship not found")

	// Conversation directory
	ErrConversationNotFound = NotFound("conversation not found")
	ErrNotParticipant       = Forbidden("user is not an active participant in this conversation")
	ErrNotFriends           = Forbidden("direct conversations require friendship")
	ErrInvalidGroupParams   = InvalidArg("group conversations require a name and at least 2 participants")
	ErrGroupOnly            = InvalidArg("operation only applies to group conversations")
	ErrInsufficientRole     = Forbidden("operation requires owner or admin role")
	ErrCannotLeaveDirect    = FailedPrecondition("direct conversations cannot be left")

	// Message ledger
	ErrMessageNotFound = NotFound("message not found")
	ErrEmptyContent    = InvalidArg("message content cannot be empty")
	ErrContentTooLong  = InvalidArg("message content exceeds the maximum length")
	ErrInvalidReply    = InvalidArg("reply target is missing, deleted or in another conversation")
	ErrNotSender       = Forbidden("only the sender can edit this message")
	ErrCannotDelete    = Forbidden("insufficient permissions to delete this message")
	ErrAlreadyDeleted  = FailedPrecondition("message has already been deleted")

	// Profiles
	ErrProfileExists = AlreadyExists("user profile already exists")
	ErrHandleTaken   = AlreadyExists("handle is already taken")
)
