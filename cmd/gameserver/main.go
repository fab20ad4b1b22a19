// Package main provides the game server binary: the WebSocket coordinator
// for real-time draw-and-guess sessions.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/config"
	"github.com/cory-johannsen/sketchparty/internal/game/flow"
	"github.com/cory-johannsen/sketchparty/internal/game/rng"
	"github.com/cory-johannsen/sketchparty/internal/game/room"
	"github.com/cory-johannsen/sketchparty/internal/game/roster"
	"github.com/cory-johannsen/sketchparty/internal/game/stroke"
	"github.com/cory-johannsen/sketchparty/internal/game/words"
	"github.com/cory-johannsen/sketchparty/internal/gameserver"
	"github.com/cory-johannsen/sketchparty/internal/observability"
	"github.com/cory-johannsen/sketchparty/internal/server"
	"github.com/cory-johannsen/sketchparty/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	wordsDir := flag.String("words-dir", "", "path to word YAML files; overrides words.dir from config")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *wordsDir != "" {
		cfg.Words.Dir = *wordsDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	src := rng.NewCryptoSource()

	// Load the word corpus.
	corpusStart := time.Now()
	var corpus *words.Corpus
	if cfg.Words.Dir != "" {
		corpus, err = words.LoadCorpusFromDir(cfg.Words.Dir)
		if err != nil {
			logger.Fatal("loading word corpus",
				zap.String("dir", cfg.Words.Dir),
				zap.Error(err),
			)
		}
	} else {
		corpus = words.DefaultCorpus()
	}
	logger.Info("word corpus loaded",
		zap.Int("words", corpus.Len()),
		zap.Duration("elapsed", time.Since(corpusStart)),
	)

	bank, err := words.NewBank(corpus, src, cfg.Words.HistorySize)
	if err != nil {
		logger.Fatal("creating word bank", zap.Error(err))
	}

	// The broadcaster is the single consumer of coordinator events; it fans
	// them out to the per-connection outboxes of each room's members.
	broadcaster := ws.NewBroadcaster(logger)

	registry := room.NewRegistry(room.Options{
		MaxPlayers:    cfg.Game.MaxPlayers,
		MaxRounds:     cfg.Game.MaxRounds,
		IdleAfter:     cfg.Game.IdleAfter,
		SweepInterval: cfg.Game.SweepInterval,
	}, src, broadcaster, logger)
	registry.OnRoomDeleted(broadcaster.DropRoom)

	ros := roster.NewRoster(roster.ScoreRule{
		GuessBase:     cfg.Game.GuessBase,
		SpeedBonusMax: cfg.Game.SpeedBonusMax,
		DrawerAward:   cfg.Game.DrawerAward,
	})

	gameFlow := flow.NewFlow(registry, ros, bank, broadcaster, logger, flow.Options{
		StartDelay:       cfg.Game.StartDelay,
		RoundDuration:    cfg.Game.RoundDuration,
		InterRoundDelay:  cfg.Game.InterRoundDelay,
		ViewResultsDelay: cfg.Game.ViewResultsDelay,
		TickInterval:     cfg.Game.TickInterval,
	})

	gate := stroke.NewGate(registry, broadcaster, logger)

	service := gameserver.NewService(registry, gameFlow, gate, logger)
	handler := ws.NewHandler(service, broadcaster, logger)
	httpServer := ws.NewServer(cfg.Server, handler, logger)

	// Wire lifecycle: stopping runs in reverse, so the listener drains
	// first, then the per-room timers are cancelled, then the sweep exits.
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("room-sweep", &server.FuncService{
		StartFn: func() error { return registry.Start(ctx) },
		StopFn:  registry.Stop,
	})
	lifecycle.Add("game-flow", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  gameFlow.Shutdown,
	})
	lifecycle.Add("http", httpServer)

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_players", cfg.Game.MaxPlayers),
		zap.Int("max_rounds", cfg.Game.MaxRounds),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
