package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/devricklin/feishu-vault/internal/infra/feishu"
)

// vault-send sends one text message as the bot. Use it to check the app
// credentials and a user's open_id before configuring VAULT_OPERATOR_ID.
func main() {
	_ = godotenv.Load()

	appID := os.Getenv("FEISHU_APP_ID")
	appSecret := os.Getenv("FEISHU_APP_SECRET")

	if appID == "" || appSecret == "" {
		fmt.Println("Error: FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
		os.Exit(1)
	}

	if len(os.Args) < 3 {
		fmt.Println("Usage: vault-send <open_id> <message>")
		os.Exit(1)
	}

	openID := os.Args[1]
	message := os.Args[2]

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := feishu.NewClient(appID, appSecret)
	ref, err := client.SendText(ctx, openID, message)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Message sent: message_id=%s chat_id=%s\n", ref.MessageID, ref.ChatID)
}
