package command

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/lkmninja/aaflbot/internal/approval"
	"github.com/lkmninja/aaflbot/internal/config"
	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/event"
	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/logging"
	"github.com/lkmninja/aaflbot/internal/ratelimit"
	"github.com/lkmninja/aaflbot/internal/roster"
	"github.com/lkmninja/aaflbot/internal/signing"
	"github.com/lkmninja/aaflbot/internal/trade"
)

// Permission levels, stored in each command's annotations.
const (
	annotationPermission = "permission"

	permOpen    = "open"
	permAdmin   = "admin"
	permSigner  = "signer"
	permCaptain = "captain"
)

// Deps are the collaborators a Router dispatches to.
type Deps struct {
	Gateway     gateway.Gateway
	Store       *roster.Store
	Trades      *trade.Engine
	Signings    *signing.Flow
	Coordinator *approval.Coordinator
	Limiter     ratelimit.Limiter
	// Config is read at the start of every command.
	Config func() *config.Config
	Bus    *event.Bus
	Logger *logging.Logger
}

// Router turns chat messages into league commands.
type Router struct {
	gw       gateway.Gateway
	store    *roster.Store
	trades   *trade.Engine
	signings *signing.Flow
	coord    *approval.Coordinator
	limiter  ratelimit.Limiter
	config   func() *config.Config
	bus      *event.Bus
	logger   *logging.Logger
	now      func() time.Time

	globMu sync.Mutex
	globs  map[string]glob.Glob

	wg sync.WaitGroup
}

// NewRouter creates a Router. Limiter, Bus and Logger are optional.
func NewRouter(d Deps) *Router {
	r := &Router{
		gw:       d.Gateway,
		store:    d.Store,
		trades:   d.Trades,
		signings: d.Signings,
		coord:    d.Coordinator,
		limiter:  d.Limiter,
		config:   d.Config,
		bus:      d.Bus,
		logger:   d.Logger,
		now:      time.Now,
		globs:    make(map[string]glob.Glob),
	}
	if r.limiter == nil {
		r.limiter = ratelimit.Nop{}
	}
	if r.logger == nil {
		r.logger = logging.NopLogger()
	}
	r.logger = r.logger.WithComponent("command")
	if r.config == nil {
		r.config = config.Default
	}
	return r
}

// Listener returns a hub listener that runs each command on its own
// goroutine under ctx. Call Wait after ctx is done to drain them.
func (r *Router) Listener(ctx context.Context) gateway.Listener {
	return func(msg gateway.Message) {
		if !r.isCommand(msg) {
			return
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			_ = r.Execute(ctx, msg)
		}()
	}
}

// Wait blocks until every command started by a Listener has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) isCommand(msg gateway.Message) bool {
	prefix := r.config().League.CommandPrefix
	return prefix != "" && strings.HasPrefix(strings.TrimSpace(msg.Text), prefix)
}

// Execute runs one command message to completion, replying in its channel.
// Messages without the command prefix are ignored.
func (r *Router) Execute(ctx context.Context, msg gateway.Message) error {
	cfg := r.config()
	text := strings.TrimSpace(msg.Text)
	if cfg.League.CommandPrefix == "" || !strings.HasPrefix(text, cfg.League.CommandPrefix) {
		return nil
	}
	args, err := SplitArgs(strings.TrimPrefix(text, cfg.League.CommandPrefix))
	if err != nil {
		r.reply(ctx, msg, describe(err))
		return err
	}
	if len(args) == 0 {
		return nil
	}
	name := strings.ToLower(args[0])
	args[0] = name
	log := r.logger.WithUser(msg.Author).With("command", name)

	err = r.execute(ctx, cfg, msg, args, log)

	var reported *reportedError
	switch {
	case err == nil:
		log.Debug("command finished")
	case errors.As(err, &reported):
		log.Info("command ended", "error", reported.err)
		err = reported.err
	case errors.GetSeverity(err) >= errors.SeverityError:
		log.Error("command failed", "error", err)
		r.reply(ctx, msg, describe(err))
	default:
		log.Info("command rejected", "error", err)
		r.reply(ctx, msg, describe(err))
	}
	r.publish(event.NewCommandExecutedEvent(name, msg.Author, string(errors.KindOf(err))))
	return err
}

func (r *Router) execute(ctx context.Context, cfg *config.Config, msg gateway.Message, args []string, log *logging.Logger) error {
	if d := r.limiter.Allow(ctx, msg.Author); !d.Allowed {
		return errors.NewValidationError(fmt.Sprintf("you're sending commands too quickly; try again in %s", d.RetryAfter(r.now()))).
			WithCause(errors.ErrRateLimited)
	}
	member, ok := r.gw.ResolveMember(ctx, msg.Author)
	if !ok {
		return errors.NewNotFoundError("member", msg.Author)
	}

	inv := &invocation{
		r:      r,
		ctx:    ctx,
		cfg:    cfg,
		msg:    msg,
		member: member,
		log:    log,
	}
	root := r.newRoot(inv)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if out.Len() > 0 {
		r.reply(ctx, msg, strings.TrimRight(out.String(), "\n"))
	}
	if err != nil && strings.HasPrefix(err.Error(), "unknown command") {
		return errors.NewValidationError(fmt.Sprintf("unknown command %q; try %shelp", args[0], cfg.League.CommandPrefix))
	}
	return err
}

// newRoot builds the command tree for one invocation. Handlers close over
// inv, so trees are never shared between messages.
func (r *Router) newRoot(inv *invocation) *cobra.Command {
	root := &cobra.Command{
		Use:           "aaflbot",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return inv.authorize(cmd)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetHelpCommand(inv.helpCmd())
	root.AddCommand(
		inv.createTeamCmd(),
		inv.setCaptainCmd(),
		inv.addPlayerCmd(),
		inv.removePlayerCmd(),
		inv.signCmd(),
		inv.editStarsCmd(),
		inv.rosterCapCmd(),
		inv.teamListCmd(),
		inv.rosterCmd(),
		inv.playerCmd(),
		inv.tradeCmd(),
		inv.updatePlayersCmd(),
		inv.pendingCmd(),
	)
	return root
}

// IsAdmin reports whether m holds an admin role under the current
// configuration.
func (r *Router) IsAdmin(m gateway.Member) bool {
	return r.isAdmin(r.config(), m)
}

// isAdmin reports whether any of the member's roles matches an admin
// role pattern.
func (r *Router) isAdmin(cfg *config.Config, m gateway.Member) bool {
	for _, pattern := range cfg.League.AdminRoles {
		g, err := r.compile(pattern)
		if err != nil {
			r.logger.Warn("invalid admin role pattern", "pattern", pattern, "error", err)
			continue
		}
		for _, role := range m.Roles {
			if g.Match(role) {
				return true
			}
		}
	}
	return false
}

func (r *Router) compile(pattern string) (glob.Glob, error) {
	r.globMu.Lock()
	defer r.globMu.Unlock()
	if g, ok := r.globs[pattern]; ok {
		return g, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	r.globs[pattern] = g
	return g, nil
}

func (r *Router) reply(ctx context.Context, msg gateway.Message, text string) {
	if _, err := r.gw.Send(context.WithoutCancel(ctx), msg.Channel, text); err != nil {
		r.logger.Warn("failed to send reply", "channel", msg.Channel, "error", err)
	}
}

func (r *Router) publish(e event.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

// reportedError marks an error the workflow already announced in chat.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// describe renders an error for chat.
func describe(err error) string {
	if msg := errors.UserMessage(err); msg != "" {
		return "Error: " + msg
	}
	return "An internal error occurred."
}
