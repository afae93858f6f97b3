package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/advisory"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/gateway"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/governance"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/graphdb"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/handlers"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/intent"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/llm"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/observability"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/remedy"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/sshx"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/store"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/tracker"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/vulndb"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/pkg/config"
)

func main() {
	// Secrets live in .env; missing file is fine in production where the
	// environment is set by the supervisor.
	_ = godotenv.Load()

	cfg := config.LoadConfig("config.yaml")

	appName := cfg.App.Name
	if appName == "" {
		appName = "CVE PATCHER"
	}
	observability.PrintBanner(appName)

	logger := observability.NewLogger()

	completer, err := llm.NewFromConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}
	completer.Logger = logger

	checkpoints, err := store.NewCheckpointStore(cfg.Store.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer checkpoints.Close()

	table := vulndb.NewTable(cfg.VulnData.CSVPath)
	advisories := advisory.NewClient(cfg.Advisory.Host, cfg.Advisory.LocalCVEDB)
	planner := remedy.NewPlanner(completer)

	issues := tracker.NewClient(cfg.Tracker.URL, cfg.Tracker.Email, cfg.Tracker.APIToken, cfg.Tracker.ProjectKey)

	graph := graphdb.NewGraph(graphdb.NewClient(
		cfg.Graph.Endpoint, cfg.Graph.Database, cfg.Graph.Graph, cfg.Graph.PrimaryKey))

	ssh := sshx.NewClient(cfg.SSH.Host, cfg.SSH.Port, cfg.SSH.User, cfg.SSH.Password)
	defer ssh.Close()

	policy := governance.NewPatchPolicyEngine()
	policyCheck := func(command string) error {
		res, err := policy.Evaluate(context.Background(), governance.Request{Command: command})
		if err != nil {
			return err
		}
		logger.LogPolicyCheck("", command, string(res.Effect), res.Reason)
		if res.Effect == governance.EffectDeny {
			return fmt.Errorf("command blocked by policy: %s", res.Reason)
		}
		return nil
	}

	executor := remedy.NewExecutor(ssh, completer, logger)
	executor.Policy = policyCheck

	router := conversation.NewRouter(&handlers.PassThrough{Runner: ssh, Policy: policy, Logger: logger})
	router.Register(intent.ListVulns, &handlers.ListVulns{Table: table})
	router.Register(intent.AnalyzeVuln, &handlers.Analyze{Table: table, Advisory: advisories, Planner: planner})
	router.Register(intent.CreateJiraStory, &handlers.CreateStory{Tracker: issues, LLM: completer})
	router.Register(intent.FetchJiraStory, &handlers.FetchStory{Tracker: issues})
	router.Register(intent.UpdateJiraStory, &handlers.UpdateStory{Tracker: issues, LLM: completer})
	router.Register(intent.QueryGraph, &handlers.QueryGraph{Graph: graph, LLM: completer})
	router.Register(intent.GeneratePlan, &handlers.GeneratePlan{Planner: planner, PlanPath: cfg.App.PlanPath, Logger: logger})
	router.Register(intent.AddDetails, &handlers.AddDetails{LLM: completer})
	router.Register(intent.PatchVuln, &handlers.Patch{Executor: executor, PlanPath: cfg.App.PlanPath})
	router.Register(intent.Help, &handlers.Help{})

	engine := conversation.NewEngine(intent.NewClassifier(completer), router, checkpoints, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.LogHeartbeat()
			}
		}
	}()

	gw := selectGateway(cfg, engine, checkpoints)

	go func() {
		if err := gw.Start(); err != nil {
			log.Printf("Gateway error: %v", err)
		}
		stop()
	}()

	<-ctx.Done()
	_ = gw.Stop()

	// Give a short time for final logs/syncs
	time.Sleep(200 * time.Millisecond)
	log.Println("Shutdown complete.")
}

// selectGateway picks the first enabled chat gateway, defaulting to the
// console REPL.
func selectGateway(cfg *config.Config, engine *conversation.Engine, checkpoints *store.CheckpointStore) gateway.Messenger {
	if tgCfg, ok := cfg.GetGateway("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, engine)
		if err != nil {
			log.Fatalf("telegram gateway: %v", err)
		}
		return tg
	}
	if dcCfg, ok := cfg.GetGateway("discord"); ok {
		dg, err := gateway.NewDiscordGateway(dcCfg.Token, engine)
		if err != nil {
			log.Fatalf("discord gateway: %v", err)
		}
		return dg
	}
	return gateway.NewConsoleGateway(engine, checkpoints)
}
