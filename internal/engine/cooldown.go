package engine

import (
	"context"
	"log"
)

// applySenderCooldown reacts to the provider rejecting a connection request
// with cannot_resend_yet: the sender account is blocked for the cooldown
// window and every pending connection request going through it is pushed
// past the deadline. The step that tripped the rejection was already marked
// failed; the retry task picks it up once the cooldown gate lets it through.
func (e *Engine) applySenderCooldown(ctx context.Context, sc *stepCtx) error {
	until := e.now().Add(senderCooldown)
	if err := e.accounts.SetBlockedUntil(ctx, sc.account.ID, until); err != nil {
		return err
	}
	deferred, err := e.steps.DeferPendingConnectionRequests(ctx, sc.account.ID, until.Unix())
	if err != nil {
		return err
	}
	log.Printf("[Engine] account %s blocked until %s, deferred %d connection request(s)",
		sc.account.ID, until.Format("2006-01-02 15:04"), deferred)
	return nil
}
