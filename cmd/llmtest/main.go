// Command llmtest exercises the configured LLM providers from the command
// line without starting the full pipeline.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urbanstyle/supportbot/internal/conversation"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messages := []conversation.ChatMessage{
		{Role: conversation.ChatRoleUser, Content: "Halo, jam berapa toko buka?"},
		{Role: conversation.ChatRoleAssistant, Content: "Halo! Toko kami buka setiap hari pukul 09.00 sampai 18.00 WIB. Ada lagi yang bisa saya bantu?"},
		{Role: conversation.ChatRoleUser, Content: "Apakah ada promo minggu ini?"},
	}

	req := conversation.LLMRequest{
		System:      []string{"Anda adalah asisten layanan pelanggan. Jawab singkat dalam Bahasa Indonesia."},
		Messages:    messages,
		MaxTokens:   200,
		Temperature: 0.2,
	}

	divider := strings.Repeat("=", 60)
	fmt.Println(divider)
	fmt.Println("LLM Provider Test")
	fmt.Println(divider)

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey != "" {
		fmt.Println("\n[1] Testing Gemini directly...")
		model := os.Getenv("GEMINI_MODEL_ID")
		geminiClient, err := conversation.NewGeminiClient(ctx, geminiKey, model)
		if err != nil {
			fmt.Printf("    failed to create Gemini client: %v\n", err)
		} else {
			defer geminiClient.Close()
			start := time.Now()
			resp, err := geminiClient.Complete(ctx, req)
			elapsed := time.Since(start)
			if err != nil {
				fmt.Printf("    Gemini error: %v\n", err)
			} else {
				fmt.Printf("    Gemini response (%v):\n", elapsed.Round(time.Millisecond))
				fmt.Printf("    %s\n", resp.Text)
				fmt.Printf("    Tokens: in=%d, out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
			}
		}
	} else {
		fmt.Println("\n[1] Skipping Gemini test (GEMINI_API_KEY not set)")
	}

	fmt.Println("\n[2] Bedrock Converse is exercised through the API binary; run it")
	fmt.Println("    against LocalStack or real AWS credentials to test the primary path.")

	fmt.Println("\n" + divider)
	fmt.Println("If Gemini responded above, the fallback provider is working.")
	fmt.Println("The fallback passes the full conversation history to Gemini.")
}
