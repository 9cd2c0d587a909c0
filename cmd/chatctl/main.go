package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/config"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/outbox"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/presence"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/rest"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/session"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/status"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
	intsync "github.com/terverakaaga-gif/frontend-support24-sub002/internal/sync"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/transport"
	"go.uber.org/zap"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg := loadConfig()

	switch args[0] {
	case "login":
		cmdLogin(sessionName, args[1:])
	case "status":
		cmdStatus(sessionName, cfg, *jsonFlag)
	case "conversations":
		cmdConversations(sessionName, cfg, *jsonFlag)
	case "send":
		cmdSend(sessionName, cfg, args[1:], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login --token <jwt>                 Store the bearer token for this session")
	fmt.Fprintln(os.Stderr, "  status                              Show session and server configuration")
	fmt.Fprintln(os.Stderr, "  conversations                       List conversations")
	fmt.Fprintln(os.Stderr, "  send --conversation <id> <text...>  Send a message and wait for the ack")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return config.Default()
	}
	return cfg
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func token(sessionName string) string {
	tok, err := session.FileToken{Path: session.TokenPath(sessionName)}.Token()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: no token for session %q, run: chatctl login --token <jwt>\n", sessionName)
		os.Exit(1)
	}
	return tok
}

func cmdLogin(sessionName string, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	tokenFlag := fs.String("token", "", "bearer token issued by the auth service")
	_ = fs.Parse(args)
	if *tokenFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: chatctl login --token <jwt>")
		os.Exit(1)
	}

	uid, err := session.UserIDFromToken(*tokenFlag)
	if err != nil {
		fatal(fmt.Errorf("invalid token: %w", err))
	}
	if err := session.EnsureDir(sessionName); err != nil {
		fatal(err)
	}
	if err := os.WriteFile(session.TokenPath(sessionName), []byte(*tokenFlag), 0600); err != nil {
		fatal(err)
	}
	fmt.Printf("Logged in as %s (session %s)\n", uid, sessionName)
}

func cmdStatus(sessionName string, cfg *config.Config, jsonOut bool) {
	type statusOut struct {
		Session  string `json:"session"`
		Server   string `json:"server"`
		LoggedIn bool   `json:"loggedIn"`
		UserID   string `json:"userId,omitempty"`
	}
	out := statusOut{Session: sessionName, Server: cfg.ServerURL}
	if sess, err := session.Current(session.FileToken{Path: session.TokenPath(sessionName)}); err == nil {
		out.LoggedIn = true
		out.UserID = sess.UserID
	}

	if jsonOut {
		outputJSON(out)
		return
	}
	fmt.Printf("Session: %s\n", out.Session)
	fmt.Printf("Server:  %s\n", out.Server)
	if out.LoggedIn {
		fmt.Printf("User:    %s\n", out.UserID)
	} else {
		fmt.Println("User:    not logged in")
	}
}

func cmdConversations(sessionName string, cfg *config.Config, jsonOut bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := rest.NewClient(cfg.ServerURL, zap.NewNop())
	convs, err := client.Conversations(ctx, token(sessionName))
	if err != nil {
		fatal(err)
	}

	if jsonOut {
		outputJSON(convs)
		return
	}
	for _, c := range convs {
		preview := ""
		if c.LastMessage != nil {
			preview = c.LastMessage.Content
		}
		fmt.Printf("%-36s  %-7s  %-24s  %s\n", c.ID, c.Type, conversationLabel(c), preview)
	}
}

// conversationLabel renders a display name: explicit names win, unnamed
// direct conversations fall back to the member first names.
func conversationLabel(c store.Conversation) string {
	if c.Name != "" {
		return c.Name
	}
	if c.Type != store.ConversationDirect {
		return c.ID
	}
	var peers []string
	for _, m := range c.Members {
		if m.FirstName != "" {
			peers = append(peers, m.FirstName)
		}
	}
	if len(peers) == 0 {
		return c.ID
	}
	return strings.Join(peers, ", ")
}

func cmdSend(sessionName string, cfg *config.Config, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	convFlag := fs.String("conversation", "", "conversation id")
	_ = fs.Parse(args)
	content := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *convFlag == "" || content == "" {
		fmt.Fprintln(os.Stderr, "usage: chatctl send --conversation <id> <text...>")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tokens := session.FileToken{Path: session.TokenPath(sessionName)}
	_ = token(sessionName) // fail early with a friendly message

	b := bus.New()
	st := store.New()
	machine := status.NewMachine(b)
	backoff := transport.Backoff{
		Base:        cfg.ReconnectBase(),
		Max:         cfg.ReconnectMax(),
		MaxAttempts: cfg.ReconnectMaxAttempts,
	}
	mgr := transport.NewManager(cfg.ServerURL, b, machine, backoff, zap.NewNop())
	pipe := outbox.NewPipeline(st, mgr, b, cfg.AckTimeout(), zap.NewNop())
	eng := intsync.NewEngine(intsync.Params{
		Store:    st,
		Bus:      b,
		API:      rest.NewClient(cfg.ServerURL, zap.NewNop()),
		Realtime: mgr,
		Pipeline: pipe,
		Tracker:  presence.NewTracker(st, b, zap.NewNop()),
		Tokens:   tokens,
	})
	defer eng.Close()

	results, unsub := b.Subscribe("chat.send", 8)
	defer unsub()

	if err := eng.Connect(ctx); err != nil {
		fatal(err)
	}
	if err := eng.LoadMessages(ctx, *convFlag); err != nil {
		fatal(err)
	}
	placeholder, err := eng.SendMessage(ctx, *convFlag, content, "text")
	if err != nil {
		fatal(err)
	}

	for {
		select {
		case evt := <-results:
			switch evt.Kind {
			case bus.KindChatSendAck:
				msg, ok := evt.Payload.(store.Message)
				if !ok || msg.CorrelationID != placeholder.CorrelationID {
					continue
				}
				if jsonOut {
					outputJSON(msg)
				} else {
					fmt.Printf("Sent %s\n", msg.ID)
				}
				return
			case bus.KindChatSendFailed:
				if id, ok := evt.Payload.(string); ok && id == placeholder.CorrelationID {
					fatal(fmt.Errorf("send failed: no acknowledgment"))
				}
			}
		case <-ctx.Done():
			fatal(ctx.Err())
		}
	}
}
