package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-stickies/credentials"
	"github.com/jrsteele09/go-stickies/events"
	"github.com/jrsteele09/go-stickies/flow"
	"github.com/jrsteele09/go-stickies/internal/config"
	"github.com/jrsteele09/go-stickies/internal/devserver"
	"github.com/jrsteele09/go-stickies/notes"
	"github.com/jrsteele09/go-stickies/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("stickies exited with error")
	}
}

func run() error {
	local := flag.Bool("local", false, "run against an embedded in-memory backend")
	flag.Parse()

	cfg := config.New()
	displayAppname(cfg.GetAppName())

	baseURL := cfg.GetBaseURL()
	var dev *devserver.Server
	if *local {
		var err error
		if dev, baseURL, err = startLocalBackend(); err != nil {
			return err
		}
		log.Info().Str("url", baseURL).Msg("Embedded backend listening")
	}

	store, err := credentialStore(cfg)
	if err != nil {
		return err
	}

	bus := events.NewGoChannel()
	defer bus.Close()
	publisher := events.NewWatermillPublisher(bus)

	api, err := session.New(baseURL, store, session.WithUnauthorizedHook(func() {
		if pubErr := publisher.PublishSessionExpired(); pubErr != nil {
			log.Err(pubErr).Msg("Failed to publish session-expired event")
		}
	}))
	if err != nil {
		return err
	}

	sessionCtx, err := flow.NewSessionContext(store, credentials.NewMemoryProfileStore(), publisher)
	if err != nil {
		return err
	}

	orchestrator, err := flow.NewOrchestrator(api, sessionCtx,
		flow.WithOtpPolicy(cfg.GetOtpLength(), cfg.GetOtpRetryAttempts(), cfg.GetOtpExpiry()))
	if err != nil {
		return err
	}

	ctx := context.Background()
	go printAuthEvents(ctx, bus)

	board, err := notes.New(api, cfg.GetNoteTitleMaxLength(), cfg.GetNoteContentMaxLength())
	if err != nil {
		return err
	}

	if *local {
		return demoSignupRoundTrip(ctx, orchestrator, board, dev)
	}
	return loginRoundTrip(ctx, orchestrator, board)
}

// startLocalBackend serves the devserver on an ephemeral port.
func startLocalBackend() (*devserver.Server, string, error) {
	dev := devserver.New()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	go func() {
		if serveErr := http.Serve(listener, dev.Handler()); serveErr != nil {
			log.Err(serveErr).Msg("Embedded backend stopped")
		}
	}()
	return dev, "http://" + listener.Addr().String(), nil
}

func credentialStore(cfg config.Config) (credentials.Store, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return credentials.NewMemoryStore(), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return credentials.NewRedisStore(redis.NewClient(opts), "cli", 30*24*time.Hour), nil
}

// demoSignupRoundTrip walks the full signup journey against the embedded
// backend: request a code, sign up with it, write a note, read it back, and
// log out.
func demoSignupRoundTrip(ctx context.Context, orchestrator *flow.Orchestrator, board *notes.Client, dev *devserver.Server) error {
	const (
		demoName     = "Jo Doe"
		demoEmail    = "jo@example.com"
		demoPassword = "Password123$"
	)

	orchestrator.Toggle(flow.StateSignup)
	result, err := orchestrator.RequestCode(ctx, demoEmail)
	if err != nil {
		return err
	}
	fmt.Println(result.Message)

	outcome, err := orchestrator.SignUp(ctx, demoName, demoEmail, demoPassword, dev.LastOTP(demoEmail))
	if err != nil {
		return err
	}
	if outcome != flow.OutcomeEnterApplication {
		return fmt.Errorf("signup failed: %s", orchestrator.ErrorMessage())
	}
	fmt.Println("Signed up and logged in as", demoEmail)

	if _, err := board.Create(ctx, notes.Note{Title: "hello", Content: "first sticky"}); err != nil {
		return err
	}
	all, err := board.List(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d note(s) on the board\n", len(all))

	result, err = orchestrator.Logout(ctx)
	if err != nil {
		return err
	}
	fmt.Println(result.Message)
	return nil
}

// loginRoundTrip authenticates against the configured backend with env
// credentials and lists the board.
func loginRoundTrip(ctx context.Context, orchestrator *flow.Orchestrator, board *notes.Client) error {
	email := os.Getenv("STICKIES_EMAIL")
	password := os.Getenv("STICKIES_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("STICKIES_EMAIL and STICKIES_PASSWORD are required (or use --local)")
	}

	outcome, err := orchestrator.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if outcome != flow.OutcomeEnterApplication {
		return fmt.Errorf("login failed: %s", orchestrator.ErrorMessage())
	}

	all, err := board.List(ctx)
	if err != nil {
		return err
	}
	for _, note := range all {
		fmt.Printf("[%d] %s: %s\n", note.Order, note.Title, note.Content)
	}
	return orchestratorLogout(ctx, orchestrator)
}

func orchestratorLogout(ctx context.Context, orchestrator *flow.Orchestrator) error {
	result, err := orchestrator.Logout(ctx)
	if err != nil {
		return err
	}
	fmt.Println(result.Message)
	return nil
}

// printAuthEvents mirrors what a UI layer would do with the auth topics.
func printAuthEvents(ctx context.Context, bus *gochannel.GoChannel) {
	for _, topic := range []string{events.LoginTopic, events.LogoutTopic, events.SessionExpiredTopic} {
		messages, err := bus.Subscribe(ctx, topic)
		if err != nil {
			log.Err(err).Str("topic", topic).Msg("Failed to subscribe")
			continue
		}
		go func(topic string, messages <-chan *message.Message) {
			for msg := range messages {
				log.Info().Str("topic", topic).RawJSON("event", msg.Payload).Msg("Auth event")
				msg.Ack()
			}
		}(topic, messages)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
