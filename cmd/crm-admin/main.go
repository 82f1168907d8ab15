// ABOUTME: Operator CLI for the crm-core back office
// ABOUTME: Lists conversations and transcripts, checks health, mints actor tokens

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/impulsalab/crm-core/internal/auth"
	"github.com/impulsalab/crm-core/internal/store"
)

const banner = `
  ___ _ __ _ __ ___         __ _  __| |_ __ ___ (_)_ __
 / __| '__| '_ ' _ \ _____ / _' |/ _' | '_ ' _ \| | '_ \
| (__| |  | | | | | |_____| (_| | (_| | | | | | | | | | |
 \___|_|  |_| |_| |_|      \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	baseURL := strings.TrimSuffix(cfg.Server.URL, "/")

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "status":
		err = cmdStatus(baseURL)
	case "conversations":
		err = cmdConversations(baseURL, args)
	case "messages":
		err = cmdMessages(baseURL, args)
	case "token":
		err = cmdToken(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(banner)
	fmt.Println()
	fmt.Println("Usage: crm-admin <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  status                           Check server health")
	fmt.Println("  conversations --business ID      List conversations")
	fmt.Println("  messages <conversation-id>       Show a transcript page")
	fmt.Println("  token --user ID --role ROLE      Mint an actor token")
	fmt.Println()
	fmt.Println("Config: " + configPath())
}

func cmdStatus(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		color.Red("Server:  UNREACHABLE (%v)", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		color.Green("Server:  OK")
	} else {
		color.Red("Server:  ERROR (status %d)", resp.StatusCode)
	}
	return nil
}

func cmdConversations(baseURL string, args []string) error {
	fs := flag.NewFlagSet("conversations", flag.ExitOnError)
	business := fs.String("business", "", "Business ID (required)")
	status := fs.String("status", "", "Filter by status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *business == "" {
		return fmt.Errorf("--business is required")
	}

	q := url.Values{"business": {*business}}
	if *status != "" {
		q.Set("status", *status)
	}

	var payload struct {
		Conversations []*store.Conversation `json:"conversations"`
	}
	if err := getJSON(baseURL+"/admin/api/conversations?"+q.Encode(), &payload); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLEAD\tCHANNEL\tSTATUS\tAGENT\tUPDATED")
	for _, conv := range payload.Conversations {
		agent := "-"
		if conv.AssignedAgentID != nil {
			agent = *conv.AssignedAgentID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			conv.ID, conv.LeadID, conv.Channel, colorStatus(conv.Status), agent,
			conv.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func cmdMessages(baseURL string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: crm-admin messages <conversation-id>")
	}
	convID := args[0]

	var payload struct {
		Messages []*store.Message `json:"messages"`
		HasMore  bool             `json:"has_more"`
	}
	path := fmt.Sprintf("%s/admin/api/conversations/%s/messages", baseURL, url.PathEscape(convID))
	if err := getJSON(path, &payload); err != nil {
		return err
	}

	for _, msg := range payload.Messages {
		ts := color.New(color.FgHiBlack).Sprint(msg.CreatedAt.Format("15:04:05"))
		role := colorRole(msg.Role)
		if msg.PartType == store.PartText {
			fmt.Printf("%s %s %s\n", ts, role, msg.Payload)
		} else {
			fmt.Printf("%s %s [%s] %s\n", ts, role, msg.PartType, msg.Payload)
		}
	}
	if payload.HasMore {
		color.New(color.FgHiBlack).Println("... more pages available")
	}
	return nil
}

// cmdToken mints a signed actor token. The signing secret comes from the
// CLI config and must match the server's auth.jwt_secret.
func cmdToken(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.String("user", "", "User ID (required)")
	name := fs.String("name", "", "Display name")
	roleStr := fs.String("role", "agent", "Role: admin, owner, agent")
	ttl := fs.Duration("ttl", 12*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("--user is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret missing in %s", configPath())
	}

	var role auth.ActorRole
	switch *roleStr {
	case "admin":
		role = auth.RoleAdmin
	case "owner":
		role = auth.RoleOwner
	case "agent":
		role = auth.RoleAgent
	default:
		return fmt.Errorf("unknown role %q", *roleStr)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(*userID, *name, role, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func getJSON(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func colorStatus(s store.ConversationStatus) string {
	switch s {
	case store.StatusAutomated:
		return color.GreenString(string(s))
	case store.StatusHITLActive:
		return color.YellowString(string(s))
	case store.StatusAwaitingAgent:
		return color.CyanString(string(s))
	default:
		return color.New(color.FgHiBlack).Sprint(string(s))
	}
}

func colorRole(r store.MessageRole) string {
	switch r {
	case store.RoleUser:
		return color.GreenString("%-9s", r)
	case store.RoleAssistant:
		return color.MagentaString("%-9s", r)
	case store.RoleAgent:
		return color.CyanString("%-9s", r)
	default:
		return fmt.Sprintf("%-9s", r)
	}
}
