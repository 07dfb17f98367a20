package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"InventoryChat/internal/normalize"
)

// Console is a line-oriented chat loop over a ChatBot
type Console struct {
	bot       *ChatBot
	in        io.Reader
	out       io.Writer
	sessionID string
}

// NewConsole creates a console reading from in and writing to out
func NewConsole(bot *ChatBot, in io.Reader, out io.Writer) *Console {
	c := &Console{bot: bot, in: in, out: out}
	c.newSession()
	return c
}

func (c *Console) newSession() {
	c.sessionID = "console_" + uuid.New().String()[:8]
	c.bot.logger.Info("created new session", "session_id", c.sessionID)
}

// SessionID returns the id of the conversation in progress
func (c *Console) SessionID() string {
	return c.sessionID
}

// handleCommand handles special commands
func (c *Console) handleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new-session":
		c.newSession()
		fmt.Fprintln(c.out, "Started new session:", c.sessionID)
		return false, nil

	case "/status":
		st := c.bot.Status()
		fmt.Fprintf(c.out, "Provider: %s\nModel: %s\nSession: %s\n", st.Provider, st.Model, c.sessionID)
		return false, nil

	case "/history":
		turns := c.bot.History(c.sessionID)
		if len(turns) == 0 {
			fmt.Fprintln(c.out, "No history yet.")
			return false, nil
		}
		for i, turn := range turns {
			fmt.Fprintf(c.out, "%d. [%s] %s\n", i+1, turn.Role, turn.Content)
		}
		return false, nil

	case "/help":
		fmt.Fprintln(c.out, "Available commands:")
		fmt.Fprintln(c.out, "  /quit, /exit   - Exit the console")
		fmt.Fprintln(c.out, "  /new-session   - Start a new conversation")
		fmt.Fprintln(c.out, "  /history       - Show the turns kept for this conversation")
		fmt.Fprintln(c.out, "  /status        - Show the active backend and model")
		fmt.Fprintln(c.out, "  /help          - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type /help)", parts[0])
	}
}

func (c *Console) printResult(res ChatResult) {
	if res.Status == normalize.StatusError {
		fmt.Fprintf(c.out, "Error: %s\n", res.ErrorMessage)
		if res.Answer != "" {
			fmt.Fprintf(c.out, "Raw reply: %s\n", res.Answer)
		}
	} else {
		fmt.Fprintf(c.out, "Bot: %s\n", res.Answer)
		if res.SQLQuery != "" {
			fmt.Fprintf(c.out, "SQL: %s\n", res.SQLQuery)
		}
	}

	meta := fmt.Sprintf("[%s | %s | %d ms | %d tokens", res.Provider, res.Model, res.LatencyMS, res.TokenUsage.TotalTokens)
	if res.Cached {
		meta += " | cached"
	}
	fmt.Fprintln(c.out, meta+"]")
	fmt.Fprintln(c.out)
}

// Run starts the chat loop. It returns when the input ends or the user quits.
func (c *Console) Run(ctx context.Context) error {
	st := c.bot.Status()
	fmt.Fprintln(c.out, "=== Inventory Chat ===")
	fmt.Fprintf(c.out, "Session: %s\n", c.sessionID)
	fmt.Fprintf(c.out, "Backend: %s (%s)\n", st.Provider, st.Model)
	fmt.Fprintln(c.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(c.out)

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, "You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := c.handleCommand(input)
			if err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
				c.bot.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		c.printResult(c.bot.Handle(ctx, c.sessionID, input))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	fmt.Fprintln(c.out, "Goodbye!")
	return nil
}
