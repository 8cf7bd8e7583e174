// ABOUTME: Conversation listing and the interactive chat command
// ABOUTME: Wires the aggregator, stream controller, and realtime subscriber

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/movilplan/movilchat/internal/chat"
)

func runConversations(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.restoreSession(ctx); err != nil {
		return err
	}

	agg := chat.NewAggregator(chat.NewBackendStore(a.client), a.client, a.logger)
	conversations, err := agg.LoadConversations(ctx)
	if err != nil {
		return err
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations yet. Request a plan to start one.")
		return nil
	}

	gray := color.New(color.FgHiBlack)
	for _, conv := range conversations {
		fmt.Printf("  %s", conv.PlanName)
		gray.Printf("  con %s", conv.OtherParty.Name)
		if conv.UnreadCount > 0 {
			color.New(color.FgYellow, color.Bold).Printf("  (%d sin leer)", conv.UnreadCount)
		}
		fmt.Println()
		if conv.LastMessage != nil {
			prefix := ""
			if conv.LastMessage.IsMine {
				prefix = "tú: "
			}
			gray.Printf("    %s%s\n", prefix, truncate(conv.LastMessage.Text, 60))
		}
		gray.Printf("    id: %s\n", conv.ID)
	}
	return nil
}

// printingSink forwards realtime messages to the controller and echoes
// the ones belonging to the open conversation.
type printingSink struct {
	ctrl  *chat.Controller
	other string
}

func (p *printingSink) HandleIncoming(ctx context.Context, msg chat.Message) {
	p.ctrl.HandleIncoming(ctx, msg)
	if sel, ok := p.ctrl.Selected(); ok && sel.ID == msg.ContratacionID {
		printIncoming(p.other, msg)
	}
}

func printIncoming(name string, msg chat.Message) {
	fmt.Print("\r") // step over the pending prompt
	color.New(color.FgCyan).Printf("%s: ", name)
	fmt.Println(msg.Mensaje)
	printPrompt()
}

func printPrompt() {
	color.New(color.FgGreen).Print("> ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func runChat(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: movilchat chat <contract-id>")
	}
	contractID := os.Args[2]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.restoreSession(ctx); err != nil {
		return err
	}

	color.New(color.FgCyan).Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)

	store := chat.NewBackendStore(a.client)
	agg := chat.NewAggregator(store, a.client, a.logger)
	if _, err := agg.LoadConversations(ctx); err != nil {
		return err
	}

	conv, ok := agg.Find(contractID)
	if !ok {
		return fmt.Errorf("no conversation for contract %s (see 'movilchat conversations')", contractID)
	}
	viewer, _ := agg.Viewer()

	ctrl := chat.NewController(store, agg, a.logger)
	defer ctrl.Close()
	ctrl.SetViewer(viewer.ID)

	if err := ctrl.SelectConversation(ctx, contractID); err != nil {
		return err
	}

	fmt.Printf("  %s — chat con ", conv.PlanName)
	color.New(color.FgCyan).Println(conv.OtherParty.Name)
	color.New(color.FgHiBlack).Println("  Escribe un mensaje y pulsa Enter. /salir para terminar.")
	fmt.Println()

	for _, msg := range ctrl.Messages() {
		if msg.UsuarioID == viewer.ID {
			color.New(color.FgGreen).Print("tú: ")
		} else {
			color.New(color.FgCyan).Printf("%s: ", conv.OtherParty.Name)
		}
		fmt.Println(msg.Mensaje)
	}

	sink := &printingSink{ctrl: ctrl, other: conv.OtherParty.Name}
	sub := chat.NewSubscriber(store, sink, agg, a.logger)
	if err := sub.Start(ctx, viewer.ID); err != nil {
		// Chat still works without live updates; sends go through.
		a.logger.Warn("realtime subscription failed", "error", err)
	}
	defer sub.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	printPrompt()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "/salir" {
				return nil
			}

			ctrl.SetDraft(line)
			if err := ctrl.Send(ctx); err != nil {
				var se *chat.SendError
				if errors.As(err, &se) {
					// Draft was restored; let the user retry.
					color.New(color.FgRed).Printf("no enviado: %v\n", se.Err)
				} else {
					return err
				}
			}
			printPrompt()
		}
	}
}
