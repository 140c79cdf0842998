package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pickme-game-service/internal/backend"
	"pickme-game-service/internal/config"
	"pickme-game-service/internal/domain"
	"pickme-game-service/internal/engine"
	"pickme-game-service/internal/infra/memory"
	pgcontent "pickme-game-service/internal/infra/postgres"
	rediscatalog "pickme-game-service/internal/infra/redis"
	transport "pickme-game-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	log := newLogger(cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// Content loading order of preference: backend API, postgres, bundled
	// sample content. Results are reported to the backend when configured,
	// otherwise kept in memory.
	store := memory.NewStore()
	seedSampleContent(store)
	var loader rediscatalog.Loader = store
	var quizReporter engine.QuizReporter = store
	var wcReporter engine.WorldcupReporter = store

	if cfg.Backend.URL != "" {
		client := backend.NewClient(cfg.Backend.URL,
			backend.WithToken(cfg.Backend.Token),
			backend.WithLogger(log),
		)
		loader = client
		quizReporter = client
		wcReporter = client
	} else if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgcontent.NewContentLoader(pool)
	}

	var catalog transport.Catalog = loader
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		ttl := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		catalog = rediscatalog.NewCatalog(redisClient, loader, ttl)
	}

	wsOpts := []transport.WSOption{
		transport.WithWSLogger(log),
		transport.WithWSScoring(cfg.Scoring()),
	}
	if cfg.Game.AllowPass {
		wsOpts = append(wsOpts, transport.WithWSPass())
	}
	if cfg.Game.SessionLimit > 0 {
		wsOpts = append(wsOpts, transport.WithWSSessionLimit(cfg.Game.SessionLimit))
	}
	if cfg.Game.QuestionTime > 0 {
		wsOpts = append(wsOpts, transport.WithWSQuestionTime(cfg.Game.QuestionTime))
	}
	wsHandler := transport.NewWSHandler(catalog, quizReporter, wcReporter, wsOpts...)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting game session server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// seedSampleContent loads a small demo catalog so the server is playable
// without any external dependency configured.
func seedSampleContent(store *memory.Store) {
	store.SeedQuiz(
		domain.Quiz{ID: "quiz-capitals", Title: "수도 퀴즈", Description: "나라별 수도 맞히기", Category: "상식"},
		[]domain.Question{
			{ID: "q1", QuizID: "quiz-capitals", QuestionNumber: 1, Prompt: "대한민국의 수도는?", Answer: "서울", TimeLimit: 10},
			{ID: "q2", QuizID: "quiz-capitals", QuestionNumber: 2, Prompt: "프랑스의 수도는?", Answer: "파리", TimeLimit: 10},
			{ID: "q3", QuizID: "quiz-capitals", QuestionNumber: 3, Prompt: "일본의 수도는?", Answer: "도쿄", TimeLimit: 10},
			{ID: "q4", QuizID: "quiz-capitals", QuestionNumber: 4, Prompt: "호주의 수도는?", Answer: "캔버라", TimeLimit: 15},
		},
	)
	store.SeedWorldcup(
		domain.Worldcup{ID: "wc-snacks", Title: "간식 월드컵", Description: "최애 분식 고르기", Category: "음식"},
		[]domain.Candidate{
			{ID: "c1", WorldcupID: "wc-snacks", Name: "떡볶이"},
			{ID: "c2", WorldcupID: "wc-snacks", Name: "순대"},
			{ID: "c3", WorldcupID: "wc-snacks", Name: "튀김"},
			{ID: "c4", WorldcupID: "wc-snacks", Name: "김밥"},
			{ID: "c5", WorldcupID: "wc-snacks", Name: "라면"},
			{ID: "c6", WorldcupID: "wc-snacks", Name: "어묵"},
			{ID: "c7", WorldcupID: "wc-snacks", Name: "호떡"},
			{ID: "c8", WorldcupID: "wc-snacks", Name: "붕어빵"},
		},
	)
}
