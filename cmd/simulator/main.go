package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "seed":
		seedCmd(apiURL, args)
	case "chat":
		chatCmd(apiURL, args)
	case "list":
		listCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Chat Simulator - Development tool for exercising the chat API

USAGE:
  simulator <command> [options]

COMMANDS:
  seed      Register users and give each a few conversations
  chat      Send messages as an existing user
  list      List an existing user's conversations
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # Three users with two conversations of two turns each
  simulator seed --users=3 --chats=2 --turns=2

  # Start a conversation and keep talking in it
  simulator chat --email=me@example.com --password=secret1 "hello" "tell me more"

  # Continue an existing conversation
  simulator chat --email=me@example.com --password=secret1 --chat=<chatId> "and then?"

  # Show the five most recent conversations
  simulator list --email=me@example.com --password=secret1 --limit=5`)
}

func seedCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	users := fs.Int("users", 2, "Number of users to create")
	chats := fs.Int("chats", 1, "Conversations per user")
	turns := fs.Int("turns", 1, "Messages sent per conversation")
	password := fs.String("password", "testpassword123", "Password for every seeded user")
	fs.Parse(args)

	if *users < 1 || *chats < 0 || *turns < 1 {
		fmt.Println("Error: --users and --turns must be at least 1, --chats must not be negative")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)

	fmt.Println("=== Chat Simulator: Seed ===")
	fmt.Println()

	for u := 1; u <= *users; u++ {
		user, token, err := client.RegisterUser(fmt.Sprintf("user%d", u), *password)
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED to create user: %v\n", u, *users, err)
			os.Exit(1)
		}
		fmt.Printf("  [%d/%d] %s (%s)\n", u, *users, user.Name, user.Email)

		for c := 1; c <= *chats; c++ {
			chatID := ""
			for m := 1; m <= *turns; m++ {
				resp, err := client.Send(token, chatID, fmt.Sprintf("Seed message %d of conversation %d", m, c))
				if err != nil {
					fmt.Printf("        FAILED to send: %v\n", err)
					os.Exit(1)
				}
				chatID = resp.ChatID
			}
			fmt.Printf("        chat %s\n", chatID)
		}
	}

	fmt.Println()
	fmt.Printf("Seeded users share the password %q\n", *password)
}

func chatCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	chatID := fs.String("chat", "", "Conversation to continue (default: start a new one)")
	fs.Parse(args)

	messages := fs.Args()
	if *email == "" || *password == "" || len(messages) == 0 {
		fmt.Println("Error: --email, --password and at least one message are required")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)
	_, token, err := client.Login(*email, *password)
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		os.Exit(1)
	}

	current := *chatID
	for _, msg := range messages {
		resp, err := client.Send(token, current, msg)
		if err != nil {
			fmt.Printf("Send failed: %v\n", err)
			os.Exit(1)
		}
		current = resp.ChatID

		reply := resp.Messages[len(resp.Messages)-1]
		fmt.Printf("> %s\n%s\n\n", msg, strings.TrimSpace(reply.Content))
	}

	fmt.Printf("Conversation: %s\n", current)
}

func listCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	limit := fs.Int("limit", 0, "Maximum conversations to show (default: server default)")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: --email and --password are required")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)
	_, token, err := client.Login(*email, *password)
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		os.Exit(1)
	}

	chats, err := client.List(token, *limit)
	if err != nil {
		fmt.Printf("List failed: %v\n", err)
		os.Exit(1)
	}

	if len(chats) == 0 {
		fmt.Println("No conversations yet")
		return
	}
	for _, c := range chats {
		fmt.Printf("%s  %s  %s\n", c.UpdatedAt.Local().Format("2006-01-02 15:04"), c.ChatID, c.Title)
	}
}
