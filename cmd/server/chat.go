package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"verona-backend/internal/config"
	"verona-backend/internal/conversation"
	"verona-backend/internal/reply"
	"verona-backend/internal/services"
)

func newChatCmd() *cobra.Command {
	var load string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Verona in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			store := loadConversation(load, cfg.SystemPrompt)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			repl := &chatREPL{
				store:    store,
				provider: services.NewHFInference(cfg.HFToken, cfg.HFBaseURL, 1),
				model:    cfg.ModelID,
				window:   cfg.WindowSize,
				timeout:  cfg.ProviderTimeout,
				prompt:   cfg.SystemPrompt,
				out:      cmd.OutOrStdout(),
			}
			return repl.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&load, "load", "", "restore a saved conversation before starting")
	return cmd
}

// loadConversation restores a saved conversation. A missing or unreadable
// file starts a fresh one seeded with prompt.
func loadConversation(path, prompt string) *conversation.Store {
	if path == "" {
		return conversation.NewWithSystem(prompt)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("could not read %s, starting a new conversation: %v", path, err)
		return conversation.NewWithSystem(prompt)
	}
	store := conversation.Restore(data)
	if store.Len() == 0 {
		log.Printf("%s holds no usable conversation, starting a new one", path)
		return conversation.NewWithSystem(prompt)
	}
	return store
}

type chatREPL struct {
	store    *conversation.Store
	provider services.InferenceProvider
	model    string
	window   int
	timeout  time.Duration
	prompt   string
	out      io.Writer
}

func (c *chatREPL) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, "Verona is ready. Commands: /clear, /export <file>, /import <file>, /quit")

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(c.out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := c.command(line)
			if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := c.turn(ctx, line); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			fmt.Fprintf(c.out, "\nerror: %v\n", err)
		}
	}
}

func (c *chatREPL) command(line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/clear":
		c.store.Clear(c.prompt)
		fmt.Fprintln(c.out, "Conversation cleared.")
	case "/export":
		if arg == "" {
			return false, errors.New("usage: /export <file>")
		}
		data, err := c.store.Snapshot()
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(arg, data, 0o644); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Saved %d messages to %s\n", c.store.Len(), arg)
	case "/import":
		if arg == "" {
			return false, errors.New("usage: /import <file>")
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return false, err
		}
		if err := c.store.Import(data); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Loaded %d messages from %s\n", c.store.Len(), arg)
	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
	return false, nil
}

func (c *chatREPL) turn(ctx context.Context, text string) error {
	if err := c.store.Append(conversation.NewMessage(conversation.RoleUser, text)); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	src, err := c.provider.Stream(ctx, c.model, c.store.Window(c.window))
	if err != nil {
		return err
	}

	term := &liveLine{w: c.out}
	res, err := reply.Collect(ctx, src, term.update)
	term.done(res.Final)

	if res.Final != "" {
		c.store.Append(conversation.NewMessage(conversation.RoleAssistant, res.Final))
	}
	return err
}

// liveLine redraws the reply as it grows. Appended text is written in place;
// anything else (the placeholder giving way to the answer) replaces the line.
type liveLine struct {
	w       io.Writer
	printed string
}

func (l *liveLine) update(visible string) {
	if l.printed != "" && strings.HasPrefix(visible, l.printed) {
		fmt.Fprint(l.w, visible[len(l.printed):])
	} else {
		fmt.Fprint(l.w, "\r\033[K"+visible)
	}
	l.printed = visible
}

func (l *liveLine) done(final string) {
	if l.printed != final {
		l.update(final)
	}
	fmt.Fprintln(l.w)
}
