package errors

import "fmt"

var (
	ErrCreationFailed      = fmt.Errorf("conversation creation failed")
	ErrEmptyContent        = fmt.Errorf("message content is empty")
	ErrSendFailed          = fmt.Errorf("message send failed")
	ErrUnknownConversation = fmt.Errorf("unknown conversation")
	ErrNoIdentity          = fmt.Errorf("no signed-in participant")
	ErrSameParticipant     = fmt.Errorf("buyer and seller must be different participants")
)
