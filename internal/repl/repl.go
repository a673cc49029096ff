// Package repl is the line-oriented chat frontend.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/ai/thinkchat/internal/chat"
	"github.com/ai/thinkchat/internal/conversation"
	"github.com/ai/thinkchat/internal/gate"
	"github.com/ai/thinkchat/internal/prompt"
)

// InputPrompt is shown before each question.
const InputPrompt = "Question: "

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// LineReader reads one line of user input. *Liner implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Config wires a Loop.
type Config struct {
	Session *chat.Session
	Gate    *gate.Gate
	Lister  gate.Lister     // for /model; nil skips validation
	Prompt  *prompt.Manager // for /prompt; may be nil
	Out     io.Writer
	Logger  *slog.Logger
	// Interrupt derives the context of one exchange. It defaults to a
	// context cancelled by SIGINT.
	Interrupt func(context.Context) (context.Context, context.CancelFunc)
}

// Loop reads questions and runs them through the session until the user
// quits or input ends.
type Loop struct {
	session   *chat.Session
	gate      *gate.Gate
	lister    gate.Lister
	prompt    *prompt.Manager
	out       io.Writer
	logger    *slog.Logger
	interrupt func(context.Context) (context.Context, context.CancelFunc)
}

// New creates a Loop.
func New(cfg Config) *Loop {
	l := &Loop{
		session:   cfg.Session,
		gate:      cfg.Gate,
		lister:    cfg.Lister,
		prompt:    cfg.Prompt,
		out:       cfg.Out,
		logger:    cfg.Logger,
		interrupt: cfg.Interrupt,
	}
	if l.out == nil {
		l.out = os.Stdout
	}
	if l.gate == nil {
		l.gate = gate.New()
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if l.interrupt == nil {
		l.interrupt = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		}
	}
	return l
}

// IsExitWord reports whether input ends the session.
func IsExitWord(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

// Run prints the banner and loops until quit, EOF, Ctrl+C at the prompt or
// ctx cancellation. Exchange failures are reported and the loop continues.
func (l *Loop) Run(ctx context.Context, in LineReader) error {
	l.printBanner()

	for ctx.Err() == nil {
		_ = l.session.AwaitInput()

		line, err := in.Prompt(InputPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(l.out)
				l.printGoodbye()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		in.AppendHistory(line)

		if IsExitWord(input) {
			l.printGoodbye()
			return nil
		}

		if strings.HasPrefix(input, "/") {
			if !l.handleCommand(ctx, input) {
				l.printGoodbye()
				return nil
			}
			continue
		}

		l.ask(ctx, input)
	}
	return nil
}

func (l *Loop) ask(ctx context.Context, input string) {
	exCtx, stop := l.interrupt(ctx)
	defer stop()

	fmt.Fprintln(l.out)
	ex, err := l.session.Ask(exCtx, input)

	var terr *chat.TransportError
	switch {
	case err == nil:
		if ex.Usage != nil {
			fmt.Fprintln(l.out, dimStyle.Render(fmt.Sprintf("(%d tokens, %.1f tok/s, %s)",
				ex.Usage.CompletionTokens, ex.Usage.TokensPerSecond(), ex.Duration.Round(100*time.Millisecond))))
		}
	case errors.Is(err, chat.ErrCancelled):
		fmt.Fprintln(l.out, hintStyle.Render("[Cancelled]"))
	case errors.As(err, &terr):
		fmt.Fprintln(l.out, errorStyle.Render("Error: "+terr.Err.Error()))
	default:
		fmt.Fprintln(l.out, errorStyle.Render("Error: "+err.Error()))
	}
	fmt.Fprintln(l.out)
}

// handleCommand runs a slash command. It returns false to end the loop.
func (l *Loop) handleCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		l.printHelp()
	case "/history":
		l.printHistory()
	case "/model", "/m":
		l.handleModel(ctx, args)
	case "/prompt":
		l.printPrompt()
	case "/quit", "/exit", "/q":
		return false
	default:
		fmt.Fprintln(l.out, errorStyle.Render(fmt.Sprintf("unknown command: %s (type /help for commands)", command)))
	}
	return true
}

func (l *Loop) handleModel(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(l.out, "Current model: %s\n", commandStyle.Render(l.session.Model()))
		return
	}

	model := args[0]
	if l.lister != nil {
		result, err := l.gate.Check(ctx, l.lister, model)
		if err != nil {
			fmt.Fprintln(l.out, errorStyle.Render("Error checking models: "+err.Error()))
			return
		}
		if !result.OK() {
			fmt.Fprint(l.out, result.Diagnostic())
			return
		}
	}

	l.session.SetModel(model)
	l.logger.Info("model switched", "model", model)
	fmt.Fprintf(l.out, "Switched to model: %s\n", commandStyle.Render(model))
}

func (l *Loop) printBanner() {
	fmt.Fprintf(l.out, "%s %s\n", titleStyle.Render("💭 Thinking Chat"), dimStyle.Render("("+l.session.Model()+")"))
	fmt.Fprintln(l.out, hintStyle.Render("Ask me anything! Type 'quit' to exit."))
	fmt.Fprintln(l.out)
}

func (l *Loop) printGoodbye() {
	fmt.Fprintln(l.out, "Goodbye! 👋")
}

func (l *Loop) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help", "Show this help"},
		{"/history", "Show conversation history"},
		{"/model [name]", "Show or switch model"},
		{"/prompt", "Show the system prompt"},
		{"quit, exit, q", "Exit chat"},
	}

	fmt.Fprintln(l.out)
	for _, c := range commands {
		fmt.Fprintf(l.out, "  %s  %s\n", commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)), c.desc)
	}
	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, dimStyle.Render("Ctrl+C cancels the current answer, Ctrl+D exits"))
	fmt.Fprintln(l.out)
}

func (l *Loop) printHistory() {
	history := l.session.History()
	if len(history) == 0 {
		fmt.Fprintln(l.out, dimStyle.Render("[No messages yet]"))
		return
	}

	for i, turn := range history {
		role := "System"
		switch turn.Role {
		case conversation.RoleUser:
			role = "You"
		case conversation.RoleAssistant:
			role = "AI"
		}

		content := turn.Content
		if runes := []rune(content); len(runes) > 100 {
			content = string(runes[:100]) + "..."
		}
		content = strings.ReplaceAll(content, "\n", " ")

		fmt.Fprintf(l.out, "  %d. %s: %s\n", i+1, role, content)
	}
}

func (l *Loop) printPrompt() {
	if l.prompt == nil {
		return
	}
	for _, layer := range l.prompt.GetLayers() {
		if layer.Enabled {
			fmt.Fprintf(l.out, "%s %s\n", dimStyle.Render("["+layer.Layer.String()+"]"), layer.Source)
		}
	}
	fmt.Fprintln(l.out, l.prompt.GetEffectivePromptRedacted())
}
