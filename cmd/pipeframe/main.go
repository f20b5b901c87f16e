// Command pipeframe runs one next-best-action pipeline end to end from a
// customer description, pausing at the approval gate for a terminal decision.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Gurpartap/pipeframe/campaign"
	"github.com/Gurpartap/pipeframe/config"
	"github.com/Gurpartap/pipeframe/eventing/slogsink"
	uuidgen "github.com/Gurpartap/pipeframe/idgen/uuid"
	knowledgeinmem "github.com/Gurpartap/pipeframe/knowledge/inmem"
	knowledgeredis "github.com/Gurpartap/pipeframe/knowledge/redis"
	"github.com/Gurpartap/pipeframe/pipeline"
	"github.com/Gurpartap/pipeframe/policy/retry"
	runstoreinmem "github.com/Gurpartap/pipeframe/runstore/inmem"
	runstoreredis "github.com/Gurpartap/pipeframe/runstore/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pipeframe:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to yaml config")
	input := flag.String("input", "", "customer description to route through the pipeline")
	decision := flag.String("decision", "ask", "approval decision: ask, approve, or reject")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))

	if *input == "" {
		return fmt.Errorf("-input is required")
	}

	var (
		store     pipeline.RunStore
		knowledge pipeline.KnowledgeStore
	)
	switch cfg.Store {
	case config.StoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		store = runstoreredis.New(client)
		knowledge = knowledgeredis.New(client)
	default:
		store = runstoreinmem.New()
		knowledge = knowledgeinmem.New()
	}

	root, err := campaign.Build(campaign.Deps{
		Executor:  demoExecutor(),
		Knowledge: knowledge,
		Retry: retry.Config{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval.Std(),
			MaxInterval:     cfg.Retry.MaxInterval.Std(),
			Multiplier:      cfg.Retry.Multiplier,
		},
	})
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(pipeline.Dependencies{
		IDGenerator: uuidgen.New("run"),
		RunStore:    store,
		Pipeline:    root,
		EventSink:   slogsink.New(logger),
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	result, err := runner.Start(ctx, pipeline.StartInput{
		Seed: map[string]any{
			campaign.SeedCustomerDescription: *input,
		},
	})
	if err != nil {
		return err
	}

	if result.Suspended() {
		pending := result.State.Pending
		printPayload(pending)
		approved, err := resolveDecision(*decision)
		if err != nil {
			return err
		}
		result, err = runner.SubmitDecision(ctx, pending.RunID, pending.StepName, approved)
		if err != nil {
			return err
		}
	}

	return printResult(result)
}

func printPayload(pending *pipeline.PendingApproval) {
	fmt.Println("approval required for run", pending.RunID)
	encoded, err := json.MarshalIndent(pending.Payload, "", "  ")
	if err == nil {
		fmt.Println(string(encoded))
	}
}

func resolveDecision(mode string) (bool, error) {
	switch mode {
	case "approve":
		return true, nil
	case "reject":
		return false, nil
	case "ask":
		fmt.Print("approve this action? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	default:
		return false, fmt.Errorf("unknown decision mode %q", mode)
	}
}

func printResult(result pipeline.RunResult) error {
	fmt.Println("run", result.State.ID, "finished with status", result.State.Status)
	if result.State.Context == nil {
		return nil
	}
	for _, key := range result.State.Context.Keys() {
		value, err := result.State.Context.Get(key)
		if err != nil {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		fmt.Printf("  %s: %s\n", key, encoded)
	}
	return nil
}
