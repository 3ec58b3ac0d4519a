package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"TaskChat/internal/gate"
)

// Run starts the interactive terminal loop, reading user turns from stdin.
func (r *Relay) Run(ctx context.Context) error {
	fmt.Println("=== TaskChat ===")
	fmt.Printf("Conversation: %s\n", r.conversation().ID)
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()

	r.OnToken = func(delta string) {
		fmt.Print(delta)
	}
	r.OnToolCall = func(call gate.PendingToolCall) {
		fmt.Printf("\n\n[tool call] %s\n%s\n", call.Name, call.ArgsText)
		fmt.Println("Use /confirm to run it, /edit <json> to change the arguments, or /cancel to dismiss it.")
	}
	r.OnNotice = func(text string) {
		fmt.Printf("\n[%s]\n", text)
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := r.handleCommand(ctx, input)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				r.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		fmt.Print("Bot: ")
		if err := r.Send(ctx, input); err != nil {
			if errors.Is(err, ErrCancelled) {
				fmt.Println("\n[cancelled]")
				continue
			}
			fmt.Printf("\nError: %v\n", err)
			r.logger.Error("failed to send message", "error", err)
			continue
		}
		fmt.Println()
		fmt.Println()
	}

	if err := r.Save(context.Background()); err != nil {
		r.logger.Error("failed to save conversation on exit", "error", err)
		return err
	}

	fmt.Println("Goodbye!")
	return nil
}

// handleCommand handles slash commands. It reports whether the loop should
// exit.
func (r *Relay) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/confirm":
		res, err := r.ConfirmTool(ctx)
		if err != nil {
			if errors.Is(err, gate.ErrBadArgs) {
				return false, fmt.Errorf("arguments are not valid JSON, fix them with /edit: %v", err)
			}
			return false, err
		}
		if res.OK {
			fmt.Printf("Tool succeeded: %s\n", res.Output)
		} else {
			fmt.Printf("Tool failed: %s\n", res.Detail)
		}
		return false, nil

	case "/cancel":
		if err := r.CancelTool(); err != nil {
			return false, err
		}
		fmt.Println("Tool call dismissed.")
		return false, nil

	case "/edit":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /edit <json>")
		}
		text := strings.TrimSpace(strings.TrimPrefix(cmd, "/edit"))
		if err := r.EditToolArgs(text); err != nil {
			return false, err
		}
		fmt.Println("Arguments updated.")
		return false, nil

	case "/context":
		if len(parts) == 1 {
			sel := r.Selection()
			fmt.Printf("tasks: %s, checklists: %s, journal: %s\n",
				onOff(sel.IncludeTasks), onOff(sel.IncludeChecklists), onOff(sel.IncludeJournal))
			return false, nil
		}
		if len(parts) < 3 || (parts[2] != "on" && parts[2] != "off") {
			return false, fmt.Errorf("usage: /context <tasks|checklists|journal> <on|off>")
		}
		enabled := parts[2] == "on"
		sel := r.Selection()
		switch parts[1] {
		case "tasks":
			sel.IncludeTasks = enabled
		case "checklists":
			sel.IncludeChecklists = enabled
		case "journal":
			sel.IncludeJournal = enabled
		default:
			return false, fmt.Errorf("unknown category: %s", parts[1])
		}
		r.SetSelection(sel)
		fmt.Printf("%s turned %s\n", parts[1], parts[2])
		return false, nil

	case "/agent":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /agent <name>")
		}
		r.SetAgent(parts[1])
		fmt.Printf("Agent set to: %s\n", parts[1])
		return false, nil

	case "/model":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /model <name>")
		}
		r.SetModel(parts[1])
		fmt.Printf("Model set to: %s\n", parts[1])
		return false, nil

	case "/history":
		n := 10
		if len(parts) > 1 {
			v, err := strconv.Atoi(parts[1])
			if err != nil || v < 1 {
				return false, fmt.Errorf("usage: /history [n]")
			}
			n = v
		}
		msgs := r.History()
		if len(msgs) > n {
			msgs = msgs[len(msgs)-n:]
		}
		fmt.Println()
		for _, m := range msgs {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.Role, m.Content)
		}
		fmt.Println()
		return false, nil

	case "/clear":
		id := r.NewConversation()
		fmt.Println("Started new conversation:", id)
		return false, nil

	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /quit, /exit                   - Exit")
		fmt.Println("  /confirm                       - Run the pending tool call")
		fmt.Println("  /cancel                        - Dismiss the pending tool call")
		fmt.Println("  /edit <json>                   - Replace the pending tool call arguments")
		fmt.Println("  /context [<category> <on|off>] - Show or toggle briefing categories")
		fmt.Println("  /agent <name>                  - Set the agent for future turns")
		fmt.Println("  /model <name>                  - Set the model for future turns")
		fmt.Println("  /history [n]                   - Show the last n messages")
		fmt.Println("  /clear                         - Start a new conversation")
		fmt.Println("  /help                          - Show this help message")
		return false, nil

	default:
		return false, nil
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
