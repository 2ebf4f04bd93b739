// Command werewolf runs a full LLM-driven game of 狼人杀 against a running
// broker: ten players (three wolves, a prophet, a witch, five villagers) plus
// a host that paces the phases. Chat transcripts are saved on exit.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parleyhq/parley"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/observer"
	"github.com/parleyhq/parley/provider/resolve"
	"github.com/parleyhq/parley/werewolf"
)

type playerSeat struct {
	name  string
	role  werewolf.Role
	style string
}

var roster = []playerSeat{
	{"天真无邪小可爱", werewolf.RoleVillager, "说话风格幽默，喜欢以'天哪！'开头"},
	{"段子手张三", werewolf.RoleVillager, "是个逗逼，总能把严肃的问题讲得像脱口秀一样有趣"},
	{"诗魂李白", werewolf.RoleWerewolf, "一个文艺中二青年，总是沉浸在自己的诗歌和幻想中，觉得自己是下一个莎士比亚"},
	{"傲娇王子", werewolf.RoleVillager, "狂傲不羁，说话非常嚣张，常常让人觉得是世界的中心"},
	{"捣蛋鬼小明", werewolf.RoleProphet, "喜欢搞恶作剧的家伙，总能在你最意想不到的时候给你惊喜或惊吓。总是带着一种狡黠的笑容，让人又爱又恨"},
	{"交际花小芳", werewolf.RoleVillager, "社交达人，擅长与人打成一片。不论是在聚会还是在工作场合，都能迅速成为焦点，带动大家的情绪"},
	{"完美强迫症", werewolf.RoleWitch, "一个完美主义者，对自己和周围的一切都有很高的要求。喜欢追求细节上的极致，总是希望所有事情都能按照理想标准进行"},
	{"杠精老王", werewolf.RoleWerewolf, "说话风格严肃，喜欢以'实际上'开头, 但总喜欢否定别人"},
	{"愤世嫉俗哥", werewolf.RoleVillager, "玩世不恭，总是以一种嘲讽的语气说话，让人感觉他总是对这个世界充满了不满"},
	{"暴躁狼王", werewolf.RoleWerewolf, "暴躁易怒，说话总是带着火药味，动不动就威胁要打人，但其实内心很善良"},
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("game failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()

	// 1. Load config
	cfg := config.Load(os.Getenv("PARLEY_CONFIG"))

	// 2. Create the LLM provider, instrumented and wrapped
	llm, err := resolve.Provider(resolve.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return err
	}
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		inst, shutdown, err := observer.Init(ctx, pricing)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
		llm = observer.WrapProvider(llm, cfg.LLM.Model, inst)
	}
	// Every player shares the provider, so the rate limit budget covers the
	// whole table. Retry wraps the limiter so each attempt waits for budget.
	llm = parley.WithRateLimit(llm,
		parley.RPM(cfg.RateLimit.RPM),
		parley.TPM(cfg.RateLimit.TPM),
	)
	llm = parley.WithRetry(llm,
		parley.RetryMaxAttempts(cfg.Retry.MaxAttempts),
		parley.RetryBaseDelay(time.Duration(cfg.Retry.BaseDelaySeconds)*time.Second),
		parley.RetryMaxDelay(time.Duration(cfg.Retry.MaxDelaySeconds)*time.Second),
		parley.RetryLogger(logger),
	)

	loginTimeout := time.Duration(cfg.Broker.LoginTimeoutSeconds) * time.Second

	// 3. Host signs up first and creates the two game chats
	host := werewolf.NewGameHost(cfg.Broker.URL, "主持人", nil,
		werewolf.WithHostLogger(logger),
		werewolf.WithManagerOptions(
			parley.WithStrategy(parley.TurnStrategy(cfg.Manager.Strategy)),
			parley.ManagerAgentOptions(
				parley.AgentClientOptions(parley.WithLoginTimeout(loginTimeout)),
			),
		),
	)
	if _, err := host.Signup(ctx); err != nil {
		logger.Warn("host signup", "error", err)
	}
	if err := host.Login(ctx); err != nil {
		return err
	}
	defer host.Close()

	villageChat, err := host.CreateChat(ctx, cfg.Game.VillageChat, "狼人杀村民会议", true, true)
	if err != nil {
		return err
	}
	wolvesChat, err := host.CreateChat(ctx, cfg.Game.WolvesChat, "狼人杀狼人会议", true, true)
	if err != nil {
		return err
	}

	// 4. Create and register the players
	playerOpts := []werewolf.Option{
		werewolf.WithProvider(llm),
		werewolf.WithLogger(logger),
		werewolf.WithAgentOptions(
			parley.AgentClientOptions(parley.WithLoginTimeout(loginTimeout)),
		),
	}

	var (
		playerIDs []string
		wolfIDs   []string
		wolfNames []string
	)
	for _, seat := range roster {
		opts := append([]werewolf.Option{werewolf.WithStyle(seat.style)}, playerOpts...)
		var agent *parley.Agent
		switch seat.role {
		case werewolf.RoleWerewolf:
			agent = werewolf.NewWerewolf(cfg.Broker.URL, seat.name, villageChat.ChatID, wolvesChat.ChatID, opts...).Agent
		case werewolf.RoleProphet:
			agent = werewolf.NewProphet(cfg.Broker.URL, seat.name, villageChat.ChatID, opts...).Agent
		case werewolf.RoleWitch:
			agent = werewolf.NewWitch(cfg.Broker.URL, seat.name, villageChat.ChatID, opts...).Agent
		default:
			agent = werewolf.NewVillager(cfg.Broker.URL, seat.name, villageChat.ChatID, opts...).Agent
		}
		if _, err := agent.Signup(ctx); err != nil {
			logger.Warn("player signup", "name", seat.name, "error", err)
		}
		if err := agent.Login(ctx); err != nil {
			return err
		}
		defer agent.Close()

		playerIDs = append(playerIDs, agent.MemberID())
		if seat.role == werewolf.RoleWerewolf {
			wolfIDs = append(wolfIDs, agent.MemberID())
			wolfNames = append(wolfNames, seat.name)
		}
	}

	// 5. Seat everyone and wire the host
	if err := host.PullMembersIntoChat(ctx, villageChat.ChatID, playerIDs); err != nil {
		return err
	}
	if err := host.PullMembersIntoChat(ctx, wolvesChat.ChatID, wolfIDs); err != nil {
		return err
	}
	if err := host.RegisterChatManager(ctx, villageChat.ChatID); err != nil {
		return err
	}
	if err := host.RegisterChatManager(ctx, wolvesChat.ChatID); err != nil {
		return err
	}
	host.SetVillagers(playerIDs)
	host.SetChats(villageChat.ChatID, wolvesChat.ChatID)
	host.SendCommand(ctx, "update-teammates", wolfIDs, map[string]any{"teammates": wolfNames})

	// 6. Run until the game ends or we are interrupted
	host.InitGame(ctx)
	host.StartNightPhase(ctx)

	done := make(chan struct{})
	go watchGameOver(host, done)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-done:
		logger.Info("game over", "day", host.Time().DayNumber)
	case s := <-sig:
		logger.Info("interrupted", "signal", s.String())
	}

	// 7. Save transcripts
	saveTranscript(host, villageChat.ChatID, cfg.Game.SaveDir, logger)
	saveTranscript(host, wolvesChat.ChatID, cfg.Game.SaveDir, logger)
	return nil
}

func watchGameOver(host *werewolf.GameHost, done chan<- struct{}) {
	for host.State() != werewolf.StateGameOver {
		time.Sleep(time.Second)
	}
	close(done)
}

func saveTranscript(host *werewolf.GameHost, chatID, dir string, logger *slog.Logger) {
	path, err := host.Memory().GetChat(chatID).SaveToFile(dir)
	if err != nil {
		logger.Error("save transcript", "chat_id", chatID, "error", err)
		return
	}
	logger.Info("transcript saved", "path", path)
}
