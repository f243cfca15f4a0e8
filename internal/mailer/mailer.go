package mailer

import "context"

// Sender delivers the transactional mail the authentication flows
// depend on. Implementations must treat every argument as sensitive and
// never log codes.
type Sender interface {
	SendVerificationCode(ctx context.Context, to, name, code string) error
	SendLoginCode(ctx context.Context, to, code string) error
	SendRecoveryCode(ctx context.Context, to, name, code string) error
	SendWelcome(ctx context.Context, to, name string) error
}
