package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/core/config"
	"basegraph.app/triage/internal/metrics"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/service"
)

func main() {
	structured := flag.Bool("json", false, "print the structured payload instead of the Markdown reply")
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	var client llm.Client
	if cfg.LLM.Enabled() {
		client, err = llm.NewClient(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create LLM client: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Model: %s (%s)\n", client.Model(), cfg.LLM.Provider)
	} else {
		fmt.Fprintln(os.Stderr, "Model: none (LLM_API_KEY not set, fallback answers only)")
	}

	turns := service.NewTurnService(config.NewHolder(cfg, nil), client, metrics.New(prometheus.NewRegistry()))

	// One-shot mode: question from argv.
	if q := strings.TrimSpace(strings.Join(flag.Args(), " ")); q != "" {
		runTurn(ctx, turns, service.TurnRequest{Question: q}, *structured)
		return
	}

	fmt.Fprintln(os.Stderr, "Describe the symptom (or 'quit' to exit):")

	var messages []model.ConversationTurn
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "quit" || question == "exit" || question == "q" {
			break
		}

		messages = append(messages, model.ConversationTurn{Role: model.RoleUser, Content: question})
		reply := runTurn(ctx, turns, service.TurnRequest{Question: question, Messages: messages}, *structured)
		messages = append(messages, model.ConversationTurn{Role: model.RoleAssistant, Content: reply})
	}

	fmt.Fprintln(os.Stderr, "Goodbye!")
}

// runTurn runs one turn and returns the reply to keep as assistant history.
func runTurn(ctx context.Context, turns service.TurnService, req service.TurnRequest, structured bool) string {
	if !structured {
		res := turns.Chat(ctx, req)
		fmt.Fprintf(os.Stderr, "--- %s, source=%s\n", res.NextAction.Type, res.Source)
		fmt.Println(res.Reply)
		for _, c := range res.NextAction.CTAs {
			fmt.Printf("  [%s] %s\n", c.Label, c.URL)
		}
		fmt.Println()
		return res.Reply
	}

	res := turns.Analyze(ctx, req)
	out, _ := json.MarshalIndent(struct {
		Source     string                `json:"source"`
		NextAction model.NextAction      `json:"nextAction"`
		Payload    model.ResponsePayload `json:"payload"`
	}{res.Source, res.NextAction, res.Payload}, "", "  ")
	fmt.Println(string(out))
	return res.Reply
}
