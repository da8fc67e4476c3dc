package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	orchestratorx "github.com/cloudcraft-labs/archadvisor/agent/agents/orchestrator"
	formatterx "github.com/cloudcraft-labs/archadvisor/agent/formatter"
	intentx "github.com/cloudcraft-labs/archadvisor/agent/intent"
	llmx "github.com/cloudcraft-labs/archadvisor/agent/llm"
	statex "github.com/cloudcraft-labs/archadvisor/agent/state"
	configx "github.com/cloudcraft-labs/archadvisor/pkg/config"
	logx "github.com/cloudcraft-labs/archadvisor/pkg/logger"
	openaix "github.com/cloudcraft-labs/archadvisor/pkg/openaix"
	pricingx "github.com/cloudcraft-labs/archadvisor/pricing"
)

type storeConfig struct {
	Backend string `envconfig:"BACKEND" split_words:"true" default:"upstash"`
}

var rootCmd = &cobra.Command{
	Use:   "archadvisor",
	Short: "AWS architecture advisor chat engine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logCfg, err := configx.New[logx.Config]("LOG")
		if err != nil {
			return fmt.Errorf("load log config: %w", err)
		}
		logx.Init(*logCfg)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the advisor in single message or REPL mode",
	RunE:  runChat,
}

var refreshPricingCmd = &cobra.Command{
	Use:   "refresh-pricing",
	Short: "Refresh the pricing cache for the default catalog once",
	RunE:  runRefreshPricing,
}

var pricingUpdaterCmd = &cobra.Command{
	Use:   "pricing-updater",
	Short: "Run the scheduled pricing refresher until interrupted",
	RunE:  runPricingUpdater,
}

var (
	messageFlag string
	sessionFlag string
	regionFlag  string
)

func init() {
	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	chatCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "Session id (defaults to a new one)")
	refreshPricingCmd.Flags().StringVar(&regionFlag, "region", "", "AWS region to refresh (defaults to the calculator default)")
	pricingUpdaterCmd.Flags().StringVar(&regionFlag, "region", "", "AWS region to refresh (defaults to the calculator default)")
	rootCmd.AddCommand(chatCmd, refreshPricingCmd, pricingUpdaterCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	o, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	sessionID := strings.TrimSpace(sessionFlag)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if messageFlag != "" {
		resp, err := o.HandleMessage(ctx, sessionID, messageFlag)
		if err != nil {
			return err
		}
		fmt.Println(resp.Content)
		return nil
	}

	fmt.Printf("archadvisor chat, session %s (type 'exit' to quit)\n", sessionID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		resp, err := o.HandleMessage(ctx, sessionID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Println("\n" + resp.Content)
	}
	return scanner.Err()
}

func runRefreshPricing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cache, err := buildPricingCache(ctx)
	if err != nil {
		return err
	}
	updater, err := newUpdater(cache)
	if err != nil {
		return err
	}

	result := updater.RunOnce(ctx)
	fmt.Printf("refreshed %d entries, %d failed\n", result.Updated, result.Failed)
	if result.Updated == 0 && result.Failed > 0 {
		return fmt.Errorf("all %d refreshes failed", result.Failed)
	}
	return nil
}

func runPricingUpdater(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := buildPricingCache(ctx)
	if err != nil {
		return err
	}
	updater, err := newUpdater(cache)
	if err != nil {
		return err
	}

	if err := updater.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	updater.Stop()
	log.Info().Msg("pricing updater stopped")
	return nil
}

func newUpdater(cache *pricingx.Cache) (*pricingx.Updater, error) {
	updaterCfg, err := configx.New[pricingx.UpdaterConfig]("PRICING_UPDATER")
	if err != nil {
		return nil, fmt.Errorf("load updater config: %w", err)
	}

	region := strings.TrimSpace(regionFlag)
	if region == "" {
		calcCfg, err := configx.New[pricingx.CalculatorConfig]("PRICING_CALCULATOR")
		if err != nil {
			return nil, fmt.Errorf("load calculator config: %w", err)
		}
		region = calcCfg.DefaultRegion
	}
	return pricingx.NewUpdater(cache, pricingx.DefaultCatalog(region), *updaterCfg)
}

func buildOrchestrator(ctx context.Context) (*orchestratorx.Orchestrator, error) {
	store, err := buildStore(ctx)
	if err != nil {
		return nil, err
	}

	openaiCfg, err := configx.New[openaix.Config]("OPENAI")
	if err != nil {
		return nil, fmt.Errorf("load openai config: %w", err)
	}
	llmClient, err := llmx.NewClient(*openaiCfg)
	if err != nil {
		return nil, err
	}

	managerCfg, err := configx.New[statex.ManagerConfig]("CONTEXT")
	if err != nil {
		return nil, fmt.Errorf("load context config: %w", err)
	}
	manager, err := statex.NewManager(store, llmx.NewConversationSummarizer(llmClient), *managerCfg)
	if err != nil {
		return nil, err
	}

	cache, err := buildPricingCache(ctx)
	if err != nil {
		return nil, err
	}
	calcCfg, err := configx.New[pricingx.CalculatorConfig]("PRICING_CALCULATOR")
	if err != nil {
		return nil, fmt.Errorf("load calculator config: %w", err)
	}
	calculator, err := pricingx.NewCalculator(cache, *calcCfg)
	if err != nil {
		return nil, err
	}

	recommender := llmx.NewArchitectureRecommender(llmClient)
	archHandler, err := intentx.NewArchitectureHandler(recommender)
	if err != nil {
		return nil, err
	}
	modHandler, err := intentx.NewModificationHandler(recommender)
	if err != nil {
		return nil, err
	}
	pricingHandler, err := intentx.NewPricingHandler(calculator)
	if err != nil {
		return nil, err
	}
	scheduler, err := intentx.NewScheduler(intentx.Handlers{
		Architecture:  archHandler,
		Pricing:       pricingHandler,
		Modification:  modHandler,
		Clarification: intentx.NewClarificationHandler(),
	})
	if err != nil {
		return nil, err
	}

	orchestratorCfg, err := configx.New[orchestratorx.Config]("ORCHESTRATOR")
	if err != nil {
		return nil, fmt.Errorf("load orchestrator config: %w", err)
	}
	return orchestratorx.New(
		manager,
		llmx.NewIntentClassifier(llmClient),
		llmx.NewRequirementExtractor(llmClient),
		scheduler,
		formatterx.New(),
		*orchestratorCfg,
	)
}

func buildStore(ctx context.Context) (statex.Store, error) {
	storeCfg, err := configx.New[storeConfig]("STORE")
	if err != nil {
		return nil, fmt.Errorf("load store config: %w", err)
	}

	switch storeCfg.Backend {
	case "dynamo":
		dynamoCfg, err := configx.New[statex.DynamoConfig]("DYNAMO")
		if err != nil {
			return nil, fmt.Errorf("load dynamo config: %w", err)
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return statex.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), dynamoCfg.Table)
	case "upstash":
		redisCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, fmt.Errorf("load upstash config: %w", err)
		}
		return statex.NewUpstashRedisStore(*redisCfg)
	}
	return nil, fmt.Errorf("unknown store backend %q", storeCfg.Backend)
}

func buildPricingCache(ctx context.Context) (*pricingx.Cache, error) {
	pgCfg, err := configx.New[pricingx.PostgresConfig]("PRICING_POSTGRES")
	if err != nil {
		return nil, fmt.Errorf("load pricing postgres config: %w", err)
	}
	db, err := pricingx.NewPostgresDB(*pgCfg)
	if err != nil {
		return nil, err
	}
	durable, err := pricingx.NewPostgresTier(db)
	if err != nil {
		return nil, err
	}
	if err := durable.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure pricing schema: %w", err)
	}

	sourceCfg, err := configx.New[pricingx.SourceConfig]("PRICING_SOURCE")
	if err != nil {
		return nil, fmt.Errorf("load pricing source config: %w", err)
	}
	source, err := pricingx.NewHTTPSource(*sourceCfg)
	if err != nil {
		return nil, err
	}

	cacheCfg, err := configx.New[pricingx.CacheConfig]("PRICING_CACHE")
	if err != nil {
		return nil, fmt.Errorf("load pricing cache config: %w", err)
	}
	return pricingx.NewCache(pricingx.NewMemoryTier(), durable, source, *cacheCfg)
}
