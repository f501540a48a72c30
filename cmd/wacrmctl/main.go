package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pcarvalho/wacrm/internal/config"
	"github.com/pcarvalho/wacrm/internal/session"
)

func main() {
	addrFlag := flag.String("addr", "", "daemon address (overrides config listen_addr)")
	sinceFlag := flag.String("since", "24h", "time window for message queries (24h, 7d, 2w, 1m, or ISO date)")
	limitFlag := flag.Int("limit", 0, "max messages to return")
	flag.Parse()

	addr := *addrFlag
	if addr == "" {
		cfg, err := config.Load(session.ConfigPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
			os.Exit(1)
		}
		addr = cfg.ListenAddr
	}

	client := resty.New().
		SetBaseURL("http://" + addr).
		SetTimeout(30 * time.Second)

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "status":
		get(client, "/v1/status")
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wacrmctl messages <key>")
			os.Exit(1)
		}
		path := fmt.Sprintf("/v1/chats/%s/messages?since=%s", args[1], *sinceFlag)
		if *limitFlag > 0 {
			path = fmt.Sprintf("%s&limit=%d", path, *limitFlag)
		}
		get(client, path)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: wacrmctl send <key> <text>")
			os.Exit(1)
		}
		post(client, "/v1/messages", map[string]string{
			"key": args[1], "text": strings.Join(args[2:], " "),
		})
	case "identity":
		cmdIdentity(client, args[1:])
	case "autoreply":
		cmdAutoReply(client, args[1:])
	case "note":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: wacrmctl note <key> <text>")
			os.Exit(1)
		}
		post(client, "/v1/crm/contacts/"+args[1]+"/notes", map[string]string{
			"text": strings.Join(args[2:], " "),
		})
	case "reminders":
		get(client, "/v1/crm/reminders/")
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func cmdIdentity(client *resty.Client, args []string) {
	if len(args) == 0 || args[0] == "list" {
		get(client, "/v1/identity/")
		return
	}
	switch args[0] {
	case "map":
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: wacrmctl identity map <lid> <phone>")
			os.Exit(1)
		}
		post(client, "/v1/identity/mappings", map[string]string{
			"lid": args[1], "phone": args[2],
		})
	case "bootstrap":
		post(client, "/v1/identity/bootstrap", nil)
	default:
		fmt.Fprintln(os.Stderr, "usage: wacrmctl identity <list|map|bootstrap>")
		os.Exit(1)
	}
}

func cmdAutoReply(client *resty.Client, args []string) {
	if len(args) == 0 || args[0] == "get" {
		get(client, "/v1/autoreply")
		return
	}
	switch args[0] {
	case "on", "off":
		resp, err := client.R().Get("/v1/autoreply")
		if err != nil {
			fail(err)
		}
		var cfg map[string]any
		if err := json.Unmarshal(resp.Body(), &cfg); err != nil {
			fail(err)
		}
		cfg["enabled"] = args[0] == "on"
		put(client, "/v1/autoreply", cfg)
	default:
		fmt.Fprintln(os.Stderr, "usage: wacrmctl autoreply <get|on|off>")
		os.Exit(1)
	}
}

func get(client *resty.Client, path string) {
	resp, err := client.R().Get(path)
	render(resp, err)
}

func post(client *resty.Client, path string, body any) {
	req := client.R()
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	render(resp, err)
}

func put(client *resty.Client, path string, body any) {
	resp, err := client.R().SetBody(body).Put(path)
	render(resp, err)
}

func render(resp *resty.Response, err error) {
	if err != nil {
		fail(err)
	}
	var pretty json.RawMessage = resp.Body()
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(resp.Body()))
		return
	}
	fmt.Println(string(out))
	if resp.IsError() {
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: cannot reach daemon: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wacrmctl [--addr <host:port>] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                         Show daemon status")
	fmt.Fprintln(os.Stderr, "  messages <key>                 List messages (--since, --limit)")
	fmt.Fprintln(os.Stderr, "  send <key> <text>              Queue an outgoing message")
	fmt.Fprintln(os.Stderr, "  identity list                  Show LID mappings")
	fmt.Fprintln(os.Stderr, "  identity map <lid> <phone>     Register a mapping")
	fmt.Fprintln(os.Stderr, "  identity bootstrap             Pull mappings from the device store")
	fmt.Fprintln(os.Stderr, "  autoreply <get|on|off>         Manage the global auto-reply switch")
	fmt.Fprintln(os.Stderr, "  note <key> <text>              Attach a CRM note")
	fmt.Fprintln(os.Stderr, "  reminders                      List reminders")
}
