package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"custodia/internal/audit"
	"custodia/internal/audit/outbox"
	"custodia/internal/casefile"
	"custodia/internal/comment"
	"custodia/internal/custody"
	"custodia/internal/evidence"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/metrics"
	platformredis "custodia/internal/platform/redis"
	"custodia/internal/policy"
	"custodia/internal/principal"
	"custodia/internal/ratelimit"
	"custodia/internal/tag"
	httptransport "custodia/internal/transport/http"
	"custodia/pkg/platform/tx"
)

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return err
	}

	m := metrics.New()
	runner := tx.NewSQLRunner(db)

	// Audit pipeline: same-transaction entry + outbox row, drained to Kafka
	// by the worker when brokers are configured.
	auditStore := audit.NewPostgresStore(db)
	recorder := audit.NewRecorder(auditStore,
		audit.WithDetailCap(cfg.AuditDetailCap),
		audit.WithRecorderMetrics(m),
	)
	auditQuery := audit.NewQuery(auditStore)

	// Policy engine over the live relation tables, optionally fronted by the
	// version-keyed redis decision cache.
	engine := policy.NewEngine(policy.NewPostgresRelationSource(db),
		policy.WithExistenceHiding(cfg.HideDenied),
		policy.WithMetrics(m),
	)
	var authorizer policy.Authorizer = engine

	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		authorizer = policy.NewCachedEngine(engine, redisClient.Client, policy.NewPostgresVersionReader(db), m,
			policy.WithDecisionTTL(cfg.DecisionCacheTTL))
		log.Info("policy decision cache enabled")
	}

	principalStore := principal.NewPostgresStore(db)
	principals := principal.NewService(principalStore, recorder, runner, cfg.JWTSigningKey, cfg.JWTIssuer)

	custodyStore := custody.NewPostgresStore(db)
	evidenceStore := evidence.NewPostgresStore(db)
	ledger := custody.NewLedger(custodyStore, authorizer, recorder, principalStore, evidenceStore, runner, m)

	cases := casefile.NewService(casefile.NewPostgresStore(db), authorizer, recorder, runner)
	evidenceSvc := evidence.NewService(evidenceStore, custodyStore, authorizer, recorder, runner)
	comments := comment.NewService(comment.NewPostgresStore(db), authorizer, recorder, runner)
	tags := tag.NewService(tag.NewPostgresStore(db), recorder, runner)

	// Auth endpoints are throttled per client IP; the counter is shared
	// through redis when it is available.
	var limitStore ratelimit.Store = ratelimit.NewInMemoryStore()
	if redisClient != nil {
		limitStore = ratelimit.NewRedisStore(redisClient.Client)
	}
	authLimiter := ratelimit.NewLimiter(limitStore, cfg.AuthRateLimit, cfg.AuthRateWindow)

	handler := httptransport.NewHandler(principals, cases, evidenceSvc, ledger, comments, tags, auditQuery, log)
	router := httptransport.NewRouter(handler, principals, authLimiter)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting custodia", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaBrokers...),
			kgo.DefaultProduceTopic(cfg.AuditTopic),
		)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()

		worker := outbox.NewWorker(db, kafkaClient, cfg.AuditTopic, log, m)
		if err := worker.EnsureTopic(ctx, 3, 1); err != nil {
			return err
		}
		group.Go(func() error {
			log.Info("starting audit outbox worker", "topic", cfg.AuditTopic)
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.Warn("no kafka brokers configured; audit export disabled")
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
