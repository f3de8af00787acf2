package app

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/paramsgit/scribble/internal/config"
	http_game "github.com/paramsgit/scribble/internal/delivery/http/game"
	http_init "github.com/paramsgit/scribble/internal/delivery/http/init"
	ws_game "github.com/paramsgit/scribble/internal/delivery/ws/game"
	infra_pg_init "github.com/paramsgit/scribble/internal/infra/postgres/init"
	infra_postgres_results "github.com/paramsgit/scribble/internal/infra/postgres/results"
	infra_redis_init "github.com/paramsgit/scribble/internal/infra/redis/init"
	infra_redis_kv "github.com/paramsgit/scribble/internal/infra/redis/kv"
	usecase_roster "github.com/paramsgit/scribble/internal/usecase/roster"
	usecase_session "github.com/paramsgit/scribble/internal/usecase/session"
)

func Go(cfg *config.Config) {
	redisConn := infra_redis_init.MustEstablishConn(cfg.Redis)
	kv := infra_redis_kv.New(redisConn)

	roster := usecase_roster.New(kv)
	snapshots := usecase_session.NewSnapshotStore(kv)

	scheduler := usecase_session.NewScheduler(clockwork.NewRealClock())
	hub := ws_game.NewHub()

	registryOpts := []usecase_session.RegistryOption{
		usecase_session.WithScoreStore(roster),
	}
	if cfg.Postgres.Enabled {
		pgConn := infra_pg_init.MustEstablishConn(cfg.Postgres)
		results := infra_postgres_results.New(pgConn)
		if err := results.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("failed to ensure results schema: %v", err)
		}
		registryOpts = append(registryOpts,
			usecase_session.WithResultsArchive(results),
		)
	}

	registry := usecase_session.NewRegistry(
		usecase_session.Config{
			RoundDuration: time.Duration(cfg.Game.RoundSeconds) * time.Second,
			WaitDuration:  time.Duration(cfg.Game.WaitSeconds) * time.Second,
		},
		scheduler,
		hub,
		snapshots,
		registryOpts...,
	)

	router := ws_game.NewRouter(roster, registry, hub, cfg.Game.WaitSeconds)

	controllerPool := http_init.NewControllerPool()
	controllerPool.Add(http_game.New(roster, hub, router))

	controllerPool.Register()
	controllerPool.RunAll(cfg.HTTP.Port)
}
