package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/ignite/outreach-engine/internal/compose"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/provider"
	"github.com/ignite/outreach-engine/internal/ratelimit"
	"github.com/ignite/outreach-engine/internal/workflow"
)

// stepCtx is everything a step handler needs, resolved once per execution.
type stepCtx struct {
	step     *domain.WorkflowStep
	lead     *domain.Lead
	campaign *domain.Campaign
	account  *domain.ConnectedAccount
	wf       *workflow.Workflow
	node     *workflow.Node
}

// RunDueSteps executes every pending step whose due time has passed.
// Individual step failures are recorded on the step and do not stop the
// pass. Returns the number of steps picked up.
func (e *Engine) RunDueSteps(ctx context.Context) (int, error) {
	due, err := e.steps.ListDue(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("list due steps: %w", err)
	}
	for i := range due {
		if err := e.ExecuteStep(ctx, &due[i]); err != nil {
			log.Printf("[Engine] step %s (%s): %v", due[i].ID, due[i].StepType, err)
		}
	}
	return len(due), nil
}

// ExecuteStep runs one pending workflow step: it resolves the lead,
// campaign, account, and graph node, performs the action or polling check,
// records the result, and plans the successor steps. Steps of paused
// campaigns are skipped silently and stay pending; in-flight steps of a
// COMPLETED campaign still run to the end of their path.
func (e *Engine) ExecuteStep(ctx context.Context, step *domain.WorkflowStep) error {
	lead, err := e.leads.Get(ctx, step.LeadID)
	if err != nil {
		return e.steps.MarkFailed(ctx, step.ID, fmt.Sprintf("resolve lead: %v", err))
	}
	campaign, err := e.campaigns.Get(ctx, lead.CampaignID)
	if err != nil {
		return e.steps.MarkFailed(ctx, step.ID, fmt.Sprintf("resolve campaign: %v", err))
	}
	if campaign.IsPaused() {
		return nil
	}
	account, err := e.accounts.Get(ctx, campaign.ConnectedAccountID)
	if err != nil {
		return e.steps.MarkFailed(ctx, step.ID, fmt.Sprintf("resolve account: %v", err))
	}
	wf, err := e.loadWorkflow(ctx, campaign.WorkflowKey)
	if err != nil {
		return e.steps.MarkFailed(ctx, step.ID, fmt.Sprintf("load workflow: %v", err))
	}

	sc := &stepCtx{
		step:     step,
		lead:     lead,
		campaign: campaign,
		account:  account,
		wf:       wf,
		node:     wf.FindNode(step.IDInWorkflow),
	}

	if step.StepType.IsPolling() {
		return e.runPolling(ctx, sc)
	}

	if sc.node == nil {
		return e.steps.MarkFailed(ctx, step.ID,
			fmt.Sprintf("node %s not found in workflow", step.IDInWorkflow))
	}

	raw, deferred, err := e.runAction(ctx, sc)
	if deferred {
		return nil
	}
	if err != nil {
		if markErr := e.steps.MarkFailed(ctx, step.ID, err.Error()); markErr != nil {
			return markErr
		}
		if provider.IsCode(err, provider.CodeCannotResendYet) {
			return e.applySenderCooldown(ctx, sc)
		}
		return nil
	}

	if err := e.steps.MarkComplete(ctx, step.ID, raw); err != nil {
		return err
	}
	return e.planSuccessors(ctx, sc, raw)
}

// runAction dispatches a non-polling step. deferred means the step was
// pushed to a later due time and must not be completed or failed.
func (e *Engine) runAction(ctx context.Context, sc *stepCtx) (raw map[string]interface{}, deferred bool, err error) {
	switch sc.step.StepType {
	case domain.StepProfileVisit:
		raw, err = e.runProfileVisit(ctx, sc)
	case domain.StepSendConnectionRequest:
		return e.runConnectionRequest(ctx, sc)
	case domain.StepSendFollowup:
		raw, err = e.runFollowup(ctx, sc)
	case domain.StepLikePost:
		raw, err = e.runLikePost(ctx, sc)
	case domain.StepCommentPost:
		raw, err = e.runCommentPost(ctx, sc)
	case domain.StepWithdrawRequest:
		raw, err = e.runWithdrawRequest(ctx, sc)
	case domain.StepWebhook, domain.StepSendInmail:
		// Accepted in workflow documents but not executed yet.
		raw = map[string]interface{}{"skipped": string(sc.step.StepType) + " is not supported"}
	default:
		err = fmt.Errorf("unknown step type %q", sc.step.StepType)
	}
	return raw, false, err
}

func (e *Engine) runProfileVisit(ctx context.Context, sc *stepCtx) (map[string]interface{}, error) {
	p, err := e.provider.VisitProfile(ctx, sc.account.ProviderAccountID, sc.lead.PublicIdentifier, false)
	if err != nil {
		return nil, err
	}
	e.enrichLead(ctx, sc.lead, p)
	return map[string]interface{}{domain.RawProviderID: p.ProviderID}, nil
}

func (e *Engine) runConnectionRequest(ctx context.Context, sc *stepCtx) (map[string]interface{}, bool, error) {
	now := e.now()

	// Sender cooldown gate.
	if until, ok := sc.account.BlockedUntil(); ok && until.After(now) {
		log.Printf("[Engine] account %s cooling down until %s, deferring step %s",
			sc.account.ID, until.Format("2006-01-02 15:04"), sc.step.ID)
		return nil, true, e.steps.Defer(ctx, sc.step.ID, until.Unix())
	}

	// Rate-limit gate. Boundary resets detected by the check are persisted
	// even when the step is deferred.
	dec := ratelimit.Check(sc.campaign, e.limits, now)
	if !dec.CanProceed {
		if !dec.Patch.Empty() {
			if err := e.campaigns.ApplyCounterPatch(ctx, sc.campaign.ID, dec.Patch); err != nil {
				return nil, false, err
			}
		}
		resume := now.Add(dec.WaitUntil)
		log.Printf("[Engine] campaign %s at request limit (%d/day, %d/week), deferring step %s until %s",
			sc.campaign.ID, dec.RequestsSentThisDay, dec.RequestsSentThisWeek,
			sc.step.ID, resume.Format("2006-01-02 15:04"))
		return nil, true, e.steps.Defer(ctx, sc.step.ID, resume.Unix())
	}

	providerID, err := e.resolveProviderID(ctx, sc)
	if err != nil {
		return nil, false, err
	}

	message, err := e.composeMessage(ctx, sc, compose.KindConnectionMessage, "")
	if err != nil {
		return nil, false, err
	}

	if err := e.provider.SendInvitation(ctx, sc.account.ProviderAccountID, providerID, message); err != nil {
		return nil, false, err
	}

	if err := e.campaigns.ApplyCounterPatch(ctx, sc.campaign.ID, dec.Increment()); err != nil {
		return nil, false, err
	}
	return map[string]interface{}{domain.RawProviderID: providerID}, false, nil
}

func (e *Engine) runFollowup(ctx context.Context, sc *stepCtx) (map[string]interface{}, error) {
	providerID, err := e.resolveProviderID(ctx, sc)
	if err != nil {
		return nil, err
	}
	message, err := e.composeMessage(ctx, sc, compose.KindFollowupMessage, "")
	if err != nil {
		return nil, err
	}
	if err := e.provider.StartOrContinueChat(ctx, sc.account.ProviderAccountID, []string{providerID}, message); err != nil {
		return nil, err
	}
	return map[string]interface{}{domain.RawProviderID: providerID}, nil
}

func (e *Engine) runLikePost(ctx context.Context, sc *stepCtx) (map[string]interface{}, error) {
	post, raw, err := e.pickRecentPost(ctx, sc)
	if err != nil || post == nil {
		return raw, err
	}
	reaction := sc.node.ConfigString("reaction")
	if !provider.ValidReaction(reaction) {
		reaction = provider.ReactionLike
	}
	if err := e.provider.ReactToPost(ctx, sc.account.ProviderAccountID, post.ID, reaction); err != nil {
		return nil, err
	}
	return map[string]interface{}{"postId": post.ID, "reaction": reaction}, nil
}

func (e *Engine) runCommentPost(ctx context.Context, sc *stepCtx) (map[string]interface{}, error) {
	post, raw, err := e.pickRecentPost(ctx, sc)
	if err != nil || post == nil {
		return raw, err
	}
	text, err := e.composeMessage(ctx, sc, compose.KindComment, post.Text)
	if err != nil {
		return nil, err
	}
	if err := e.provider.CommentPost(ctx, sc.account.ProviderAccountID, post.ID, text); err != nil {
		return nil, err
	}
	return map[string]interface{}{"postId": post.ID}, nil
}

func (e *Engine) runWithdrawRequest(ctx context.Context, sc *stepCtx) (map[string]interface{}, error) {
	if sc.lead.LinkedInID == "" {
		return map[string]interface{}{"withdrawn": false}, nil
	}
	invitations, err := e.provider.ListInvitationsSent(ctx, sc.account.ProviderAccountID)
	if err != nil {
		return nil, err
	}
	for _, inv := range invitations {
		if inv.InviteeProviderID != sc.lead.LinkedInID {
			continue
		}
		if err := e.provider.CancelInvitation(ctx, sc.account.ProviderAccountID, inv.ID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"withdrawn": true, "invitationId": inv.ID}, nil
	}
	return map[string]interface{}{"withdrawn": false}, nil
}

// pickRecentPost selects a random recent post by the lead. A nil post with
// nil error means there was nothing to act on and the step completes with
// the returned raw response.
func (e *Engine) pickRecentPost(ctx context.Context, sc *stepCtx) (*provider.Post, map[string]interface{}, error) {
	lastDays := sc.node.ConfigInt("last_days")
	if lastDays <= 0 {
		lastDays = 7
	}
	posts, err := e.provider.ListRecentPosts(ctx, sc.account.ProviderAccountID, sc.lead.PublicIdentifier, lastDays, 5)
	if err != nil {
		return nil, nil, err
	}
	if len(posts) == 0 {
		return nil, map[string]interface{}{"skipped": "no recent posts"}, nil
	}
	return &posts[e.pick(len(posts))], nil, nil
}

// resolveProviderID returns the lead's provider-internal id, visiting the
// profile silently to resolve and enrich it on first need.
func (e *Engine) resolveProviderID(ctx context.Context, sc *stepCtx) (string, error) {
	if sc.lead.LinkedInID != "" {
		return sc.lead.LinkedInID, nil
	}
	p, err := e.provider.VisitProfile(ctx, sc.account.ProviderAccountID, sc.lead.PublicIdentifier, false)
	if err != nil {
		return "", err
	}
	if p.ProviderID == "" {
		return "", fmt.Errorf("provider returned no id for %s", sc.lead.PublicIdentifier)
	}
	e.enrichLead(ctx, sc.lead, p)
	return p.ProviderID, nil
}

// enrichLead copies profile data onto the lead. Enrichment is best-effort;
// a write failure never fails the step that triggered it.
func (e *Engine) enrichLead(ctx context.Context, lead *domain.Lead, p *provider.Profile) {
	enr := domain.Enrichment{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Title:      p.Headline,
		Company:    p.CurrentCompany,
		Location:   p.Location,
		LinkedInID: p.ProviderID,
	}
	if len(p.Emails) > 0 {
		enr.Email = p.Emails[0]
	}
	if len(p.PhoneNumbers) > 0 {
		enr.Phone = p.PhoneNumbers[0]
	}
	if err := e.leads.Enrich(ctx, lead.ID, enr); err != nil {
		log.Printf("[Engine] enrich lead %s: %v", lead.ID, err)
		return
	}
	lead.FirstName = firstNonEmpty(enr.FirstName, lead.FirstName)
	lead.LastName = firstNonEmpty(enr.LastName, lead.LastName)
	lead.Title = firstNonEmpty(enr.Title, lead.Title)
	lead.Company = firstNonEmpty(enr.Company, lead.Company)
	lead.Location = firstNonEmpty(enr.Location, lead.Location)
	lead.LinkedInID = firstNonEmpty(enr.LinkedInID, lead.LinkedInID)
}

// composeMessage resolves the outgoing text for a node: AI generation when
// the node asks for it, the node's own template with lead variables, or the
// kind's default. AI failures fall back to the template or default.
func (e *Engine) composeMessage(ctx context.Context, sc *stepCtx, kind compose.Kind, postText string) (string, error) {
	templateKey := "customMessage"
	if kind == compose.KindComment {
		templateKey = "customComment"
	}
	template := sc.node.ConfigString(templateKey)

	if sc.node.ConfigBool("useAI") || sc.node.ConfigBool("configureWithAI") {
		text, err := e.composer.Compose(ctx, compose.Request{
			Kind:      kind,
			FirstName: sc.lead.FirstName,
			LastName:  sc.lead.LastName,
			Title:     sc.lead.Title,
			Company:   sc.lead.Company,
			PostText:  postText,
		})
		if err == nil && text != "" {
			return text, nil
		}
		log.Printf("[Engine] compose %s for lead %s: %v, falling back", kind, sc.lead.ID, err)
	}

	if template == "" {
		static, _ := compose.Static{}.Compose(ctx, compose.Request{Kind: kind})
		template = static
	}
	return compose.Substitute(template, compose.LeadVars(sc.lead.FirstName, sc.lead.LastName, sc.lead.Company)), nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
