// Command forumbot performs one reply-automation sweep against the
// configured forum and exits. Ongoing operation is an external scheduler
// invoking it repeatedly; the reply store carries the cross-run memory.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wkchan/forum-reply-bot/internal/config"
	"github.com/wkchan/forum-reply-bot/internal/forum"
	"github.com/wkchan/forum-reply-bot/internal/llm"
	"github.com/wkchan/forum-reply-bot/internal/logging"
	"github.com/wkchan/forum-reply-bot/internal/repo"
	"github.com/wkchan/forum-reply-bot/internal/runner"
	"github.com/wkchan/forum-reply-bot/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "forumbot:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	lg := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	lg.Info().
		Str("page", cfg.PageName).
		Strs("rooms", cfg.RoomTitles).
		Str("store", cfg.StoreBackend).
		Msg("starting sweep")

	ctx := context.Background()

	var replies runner.ReplyStore
	switch cfg.StoreBackend {
	case "json":
		js, err := store.NewJSONReplyStore(cfg.RepliedJSONPath)
		if err != nil {
			return fmt.Errorf("reply store: %w", err)
		}
		lg.Info().Int("known_posts", js.Len()).Msg("json reply store loaded")
		replies = js
	default:
		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := repo.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		replies = store.NewSQLiteReplyStore(db)
	}

	creds := store.NewCredFile(cfg.CredentialsPath)
	client := forum.NewClient(cfg.Forum, creds, lg)
	client.VirtualRoomTitle = cfg.PinnedRoomTitle

	var gen runner.Generator
	switch cfg.AI.Provider {
	case "gemini":
		g, err := llm.NewGeminiClient(ctx, cfg.AI.APIKey, cfg.AI.Model, lg)
		if err != nil {
			return fmt.Errorf("reply generator: %w", err)
		}
		gen = g
	default:
		g := llm.NewPerplexityClient(cfg.AI.APIKey, cfg.AI.Model, lg)
		if cfg.AI.BaseURL != "" {
			g.BaseURL = cfg.AI.BaseURL
		}
		gen = g
	}

	var order runner.RoomComparator
	if cfg.RoomOrder == "pinned" {
		order = runner.PinnedFirstOrder(cfg.PinnedRoomTitle)
	}

	r := runner.New(client, gen, replies, runner.Options{
		PageName:          cfg.PageName,
		RoomTitles:        cfg.RoomTitles,
		ConversationLimit: cfg.ConversationLimit,
		WindowHours:       cfg.WindowHours,
		DelayMax:          time.Duration(cfg.DelayMaxSeconds) * time.Second,
	}, order, lg)

	rep, err := r.Run(ctx)
	if err != nil {
		return err
	}
	lg.Info().
		Int("rooms_checked", rep.RoomsChecked).
		Int("candidates", rep.Candidates).
		Int("replied", rep.Replied).
		Bool("found_new_post", rep.FoundNewPost).
		Msg("sweep completed")
	return nil
}
