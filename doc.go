// Package parley is a multi-agent group-chat coordination framework in Go.
//
// Autonomous participants (humans or LLM agents) communicate over named chat
// rooms brokered by a server. Per-chat managers orchestrate turn-taking and
// cross-chat notifications so that multi-party protocols such as a moderated
// panel, a role-playing game, or an LLM-agent ensemble can be expressed as
// ordinary chat behavior.
//
// # Quick Start
//
// Create an LLM-backed participant and connect it to a broker:
//
//	provider := openaicompat.NewProvider(apiKey, model, baseURL)
//
//	agent := parley.NewAgent("http://localhost:3000", "alice", parley.WithProvider(provider))
//	if _, err := agent.Signup(ctx); err != nil {
//		log.Fatal(err)
//	}
//	if err := agent.Login(ctx); err != nil {
//		log.Fatal(err)
//	}
//	agent.Wait()
//
// A manager arbiters a chat, choosing the next speaker after every message:
//
//	mgr := parley.NewManager("http://localhost:3000", "moderator")
//	mgr.Login(ctx)
//	mgr.RegisterChatManager(ctx, chatID)
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [Transport]: the event-stream session to the broker (request/response
//     calls, fire-and-forget emits, inbound dispatch)
//   - [Provider]: LLM backend used by agents and AI turn selection
//   - [Client]: the full member-side API (signup, login, chats, commands)
//   - [Agent]: a member whose replies are produced by a Provider
//   - [Manager]: a member designated arbiter of a chat
//
// # Included Implementations
//
// Providers: provider/openaicompat (OpenAI-compatible chat completions APIs),
// provider/gemini, and provider/resolve for config-driven selection.
// Observability: observer (OpenTelemetry wrapping for providers).
//
// See the cmd/werewolf directory for a complete multi-agent application and
// cmd/chatcli for a minimal human participant.
package parley
