// Command chatcli runs a minimal two-party chat against a running broker: a
// human member driven from stdin, an LLM member, and a manager alternating
// the turns between them.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/parleyhq/parley"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/provider/resolve"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("chatcli failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()

	cfg := config.Load(os.Getenv("PARLEY_CONFIG"))

	llm, err := resolve.Provider(resolve.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return err
	}
	llm = parley.WithRetry(llm,
		parley.RetryMaxAttempts(cfg.Retry.MaxAttempts),
		parley.RetryBaseDelay(time.Duration(cfg.Retry.BaseDelaySeconds)*time.Second),
		parley.RetryMaxDelay(time.Duration(cfg.Retry.MaxDelaySeconds)*time.Second),
		parley.RetryLogger(logger),
	)

	loginTimeout := time.Duration(cfg.Broker.LoginTimeoutSeconds) * time.Second
	clientOpts := parley.AgentClientOptions(parley.WithLoginTimeout(loginTimeout))

	stdin := bufio.NewScanner(os.Stdin)
	human := parley.NewAgent(cfg.Broker.URL, "Human",
		clientOpts,
		parley.AgentLogger(logger),
		parley.WithReply(func(_ context.Context, _ string, msgs []parley.Message) (string, error) {
			if len(msgs) > 0 {
				last := msgs[len(msgs)-1]
				fmt.Printf("%s: %s\n", last.FromMemberName, last.Message)
			}
			fmt.Print("请输入你的发言: ")
			if !stdin.Scan() {
				return "", stdin.Err()
			}
			return stdin.Text(), nil
		}),
	)
	assistant := parley.NewAgent(cfg.Broker.URL, "Bot",
		clientOpts,
		parley.AgentLogger(logger),
		parley.WithProvider(llm),
		parley.WithSystemPrompt("你是一个友好的聊天助手，回答简洁。"),
	)
	manager := parley.NewManager(cfg.Broker.URL, "Manager",
		parley.WithStrategy(parley.TurnStrategy(cfg.Manager.Strategy)),
		parley.ManagerAgentOptions(clientOpts, parley.AgentLogger(logger)),
	)

	for _, member := range []*parley.Client{human.Client, assistant.Client, manager.Client} {
		if _, err := member.Signup(ctx); err != nil {
			logger.Warn("signup", "name", member.Name(), "error", err)
		}
		if err := member.Login(ctx); err != nil {
			return err
		}
		defer member.Close()
	}

	chat, err := manager.CreateChat(ctx, "测试聊天", "人机对话测试", true, true)
	if err != nil {
		return err
	}
	if err := manager.PullMembersIntoChat(ctx, chat.ChatID, []string{human.MemberID(), assistant.MemberID()}); err != nil {
		return err
	}
	if err := manager.RegisterChatManager(ctx, chat.ChatID); err != nil {
		return err
	}

	human.SendMessage(ctx, chat.ChatID, "你好")
	human.Wait()
	return nil
}
