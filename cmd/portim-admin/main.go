// ABOUTME: Operator CLI for portim interface, session, and message management
// ABOUTME: Talks to the REST API with a bearer token from env or the token file

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

const banner = `
                      _   _                        _           _
  _ __   ___  _ __ __| |_(_)_ __ ___         __ _ | |_ __ ___ (_)_ __
 | '_ \ / _ \| '__/ _' | | | '_ ' _ \ _____ / _' || | '_ ' _ \| | '_ \
 | |_) | (_) | | | (_| | | | | | | | |_____| (_| || | | | | | | | | | |
 | .__/ \___/|_|  \__,_|_|_|_| |_| |_|      \__,_||_|_| |_| |_|_|_| |_|
 |_|
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	client := &apiClient{
		base:  getBaseURL(),
		token: getToken(),
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(client)
	case "interface":
		err = cmdInterface(client, args)
	case "client":
		err = cmdClient(client, args)
	case "session":
		err = cmdSession(client, args)
	case "message":
		err = cmdMessage(client, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: portim-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                              Check server health")
	fmt.Println("  interface create                    Register a new interface")
	fmt.Println("  interface show <id>                 Show an interface")
	fmt.Println("  interface rotate-secret <id>        Issue a fresh shared secret")
	fmt.Println("  interface delete <id>               Delete an interface")
	fmt.Println("  client show <id>                    Show a client")
	fmt.Println("  session show <iface> <id>           Show a session")
	fmt.Println("  session pass <iface> <id>           Pass control to another interface")
	fmt.Println("  session delete <iface> <id>         Delete a session")
	fmt.Println("  message show <iface> <sess> <id>    Show a message")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  PORTIM_URL       Server base URL (default: http://localhost:8080)")
	fmt.Println("  PORTIM_TOKEN     Bearer token (falls back to the bootstrap token file)")
	fmt.Println("  PORTIM_PROJECT   Project id (or pass --project on each command)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export PORTIM_PROJECT=my-project")
	fmt.Println("  portim-admin interface create --name whatsapp \\")
	fmt.Println("      --event-endpoint https://bot.example.com/events \\")
	fmt.Println("      --external-id-field '$.user.id'")
	fmt.Println("  portim-admin session pass <iface> <session> --target <other-iface>")
	fmt.Println()
}

func getBaseURL() string {
	if url := os.Getenv("PORTIM_URL"); url != "" {
		return strings.TrimSuffix(url, "/")
	}
	return "http://localhost:8080"
}

// getToken reads PORTIM_TOKEN, falling back to the token file written by
// portim bootstrap.
func getToken() string {
	if token := os.Getenv("PORTIM_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "portim", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// apiClient is a thin JSON client over the REST API.
type apiClient struct {
	base  string
	token string
}

func (c *apiClient) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// requireProject resolves the project id from the flag or environment.
func requireProject(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if project := os.Getenv("PORTIM_PROJECT"); project != "" {
		return project, nil
	}
	return "", fmt.Errorf("project id required: pass --project or set PORTIM_PROJECT")
}

func cmdStatus(c *apiClient) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	var health map[string]string
	if err := c.do(http.MethodGet, "/healthz", nil, &health); err != nil {
		yellow.Printf("  Server:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}

	green.Printf("  Server:  ")
	fmt.Printf("%s (%s)\n", c.base, health["status"])

	if c.token == "" {
		yellow.Printf("  Token:   ")
		fmt.Println("(none - set PORTIM_TOKEN or run portim bootstrap)")
	} else {
		green.Printf("  Token:   ")
		fmt.Println("loaded")
	}

	fmt.Println()
	return nil
}

func cmdInterface(c *apiClient, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: portim-admin interface <create|show|rotate-secret|delete>")
	}

	subcmd := args[0]
	args = args[1:]

	switch subcmd {
	case "create":
		return cmdInterfaceCreate(c, args)
	case "show":
		return cmdInterfaceShow(c, args)
	case "rotate-secret":
		return cmdInterfaceRotate(c, args)
	case "delete":
		return cmdInterfaceDelete(c, args)
	}
	return fmt.Errorf("unknown interface subcommand: %s", subcmd)
}

func cmdInterfaceCreate(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("interface create", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	name := fs.String("name", "", "interface name")
	eventEndpoint := fs.String("event-endpoint", "", "https endpoint receiving forwarded messages")
	controlEndpoint := fs.String("control-endpoint", "", "https endpoint receiving hand-off notifications")
	controlIface := fs.String("control", "", "default target interface id for new sessions")
	externalIDField := fs.String("external-id-field", "", "path expression locating the client id, e.g. $.user.id")
	controlToken := fs.String("control-token", "", "token sent back on forwarded messages")
	allowedIPs := fs.String("allowed-ips", "", "comma-separated IP allowlist")
	if err := fs.Parse(args); err != nil {
		return err
	}

	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}

	body := map[string]any{
		"name":            *name,
		"eventEndpoint":   *eventEndpoint,
		"externalIdField": *externalIDField,
	}
	if *controlEndpoint != "" {
		body["controlEndpoint"] = *controlEndpoint
	}
	if *controlIface != "" {
		body["control"] = *controlIface
	}
	if *controlToken != "" {
		body["controlToken"] = *controlToken
	}
	if *allowedIPs != "" {
		body["allowedIps"] = strings.Split(*allowedIPs, ",")
	}

	var created struct {
		Interface map[string]any `json:"interface"`
		Secret    string         `json:"secret"`
	}
	if err := c.do(http.MethodPost, "/projects/"+projectID+"/interfaces", body, &created); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Println("  Interface created")
	fmt.Println()
	printFields(created.Interface)
	fmt.Println()
	yellow.Println("  Shared secret (shown once, store it now):")
	fmt.Printf("  %s\n", created.Secret)
	fmt.Println()
	return nil
}

func cmdInterfaceShow(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("interface show", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: portim-admin interface show <id>")
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}

	var iface map[string]any
	if err := c.do(http.MethodGet, "/projects/"+projectID+"/interfaces/"+fs.Arg(0), nil, &iface); err != nil {
		return err
	}

	fmt.Println()
	printFields(iface)
	fmt.Println()
	return nil
}

func cmdInterfaceRotate(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("interface rotate-secret", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: portim-admin interface rotate-secret <id>")
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}

	var rotated struct {
		Secret string `json:"secret"`
	}
	path := "/projects/" + projectID + "/interfaces/" + fs.Arg(0) + "/secret"
	if err := c.do(http.MethodPost, path, nil, &rotated); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Println("  Secret rotated; the previous secret no longer works")
	fmt.Println()
	yellow.Println("  New shared secret (shown once, store it now):")
	fmt.Printf("  %s\n", rotated.Secret)
	fmt.Println()
	return nil
}

func cmdInterfaceDelete(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("interface delete", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: portim-admin interface delete <id>")
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}

	if err := c.do(http.MethodDelete, "/projects/"+projectID+"/interfaces/"+fs.Arg(0), nil, nil); err != nil {
		return err
	}

	color.Green("  Interface deleted")
	return nil
}

func cmdClient(c *apiClient, args []string) error {
	if len(args) < 1 || args[0] != "show" {
		return fmt.Errorf("usage: portim-admin client show <id>")
	}

	fs := flag.NewFlagSet("client show", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: portim-admin client show <id>")
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}

	var client map[string]any
	if err := c.do(http.MethodGet, "/projects/"+projectID+"/clients/"+fs.Arg(0), nil, &client); err != nil {
		return err
	}

	fmt.Println()
	printFields(client)
	fmt.Println()
	return nil
}

func cmdSession(c *apiClient, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: portim-admin session <show|pass|delete> <iface> <id>")
	}

	subcmd := args[0]
	fs := flag.NewFlagSet("session "+subcmd, flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	target := fs.String("target", "", "interface id taking control")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: portim-admin session %s <iface> <id>", subcmd)
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}

	path := "/projects/" + projectID + "/interfaces/" + fs.Arg(0) + "/sessions/" + fs.Arg(1)

	switch subcmd {
	case "show":
		var session map[string]any
		if err := c.do(http.MethodGet, path, nil, &session); err != nil {
			return err
		}
		fmt.Println()
		printFields(session)
		fmt.Println()
		return nil

	case "pass":
		if *target == "" {
			return fmt.Errorf("--target is required")
		}
		var session map[string]any
		if err := c.do(http.MethodPatch, path, map[string]any{"target": *target}, &session); err != nil {
			return err
		}
		color.Green("  Control passed to %s", *target)
		fmt.Println()
		printFields(session)
		fmt.Println()
		return nil

	case "delete":
		if err := c.do(http.MethodDelete, path, nil, nil); err != nil {
			return err
		}
		color.Green("  Session deleted")
		return nil
	}
	return fmt.Errorf("unknown session subcommand: %s", subcmd)
}

func cmdMessage(c *apiClient, args []string) error {
	if len(args) < 1 || args[0] != "show" {
		return fmt.Errorf("usage: portim-admin message show <iface> <session> <id>")
	}

	fs := flag.NewFlagSet("message show", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("usage: portim-admin message show <iface> <session> <id>")
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}

	path := "/projects/" + projectID + "/interfaces/" + fs.Arg(0) +
		"/sessions/" + fs.Arg(1) + "/messages/" + fs.Arg(2)

	var msg map[string]any
	if err := c.do(http.MethodGet, path, nil, &msg); err != nil {
		return err
	}

	fmt.Println()
	printFields(msg)
	fmt.Println()
	return nil
}

// printFields renders a JSON object as an aligned key/value table.
func printFields(fields map[string]any) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, key := range sortedKeys(fields) {
		value := fields[key]
		if value == nil {
			value = "(none)"
		}
		if nested, ok := value.(map[string]any); ok {
			encoded, err := json.Marshal(nested)
			if err == nil {
				value = string(encoded)
			}
		}
		fmt.Fprintf(w, "  %s:\t%v\n", key, value)
	}
	w.Flush()
}

func sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
