package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"

	"github.com/gorilla/websocket"

	"golang.org/x/term"

	"taskboard.dev/taskboard"
)

const TaskboardCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Taskboard control.

The default api_url is http://localhost:3001

Usage:
    taskboardctl serve [--config=<config>] [--memory]
    taskboardctl register [--api_url=<api_url>] --email=<email> [--password=<password>]
    taskboardctl login [--api_url=<api_url>] --email=<email> [--password=<password>]
    taskboardctl list [--api_url=<api_url>] --jwt=<jwt>
    taskboardctl add [--api_url=<api_url>] --jwt=<jwt>
        --description=<description>
        [--status=<status>]
        [--assignee=<assignee>]
    taskboardctl update [--api_url=<api_url>] --jwt=<jwt> <task_id>
        [--description=<description>]
        [--status=<status>]
        [--assignee=<assignee>]
    taskboardctl delete [--api_url=<api_url>] --jwt=<jwt> <task_id>
    taskboardctl watch [--api_url=<api_url>] --jwt=<jwt>
        [--message_count=<message_count>]

Options:
    -h --help                        Show this screen.
    --version                        Show version.
    --config=<config>                Server config file [default: taskboard.toml].
    --memory                         Serve from an in-memory store.
    --api_url=<api_url>
    --email=<email>
    --password=<password>            Prompted for when omitted.
    --jwt=<jwt>                      Your taskboard JWT.
    --description=<description>
    --status=<status>
    --assignee=<assignee>            Assignee user id.
    --message_count=<message_count>  Print this many events then exit.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], TaskboardCtlVersion)
	if err != nil {
		panic(err)
	}

	if serve_, _ := opts.Bool("serve"); serve_ {
		serve(opts)
	} else if register_, _ := opts.Bool("register"); register_ {
		register(opts)
	} else if login_, _ := opts.Bool("login"); login_ {
		login(opts)
	} else if list_, _ := opts.Bool("list"); list_ {
		list(opts)
	} else if add_, _ := opts.Bool("add"); add_ {
		add(opts)
	} else if update_, _ := opts.Bool("update"); update_ {
		update(opts)
	} else if deleteCmd, _ := opts.Bool("delete"); deleteCmd {
		delete_(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	}
}

func serve(opts docopt.Opts) {
	flag.Set("logtostderr", "true")
	flag.Parse()

	configPath, _ := opts.String("--config")
	config, err := taskboard.LoadConfig(configPath)
	if err != nil {
		Err.Fatalf("%s", err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		cancel()
	}()

	var taskStore taskboard.TaskStore
	var userStore taskboard.UserStore
	if memory, _ := opts.Bool("--memory"); memory {
		taskStore = taskboard.NewMemoryTaskStore()
		userStore = taskboard.NewMemoryUserStore()
	} else {
		client, err := taskboard.ConnectMongo(cancelCtx, config.MongoUri, taskboard.DefaultMongoStoreSettings())
		if err != nil {
			Err.Fatalf("%s", err)
		}
		defer client.Disconnect(context.Background())
		db := client.Database(config.MongoDatabase)
		taskStore = taskboard.NewMongoTaskStore(db)
		userStore = taskboard.NewMongoUserStore(db)
	}

	registry := taskboard.NewConnRegistry()
	manager := taskboard.NewTaskManagerWithDefaults(cancelCtx, taskStore, registry)
	defer manager.Close()

	gate := taskboard.NewAuthGateWithDefaults([]byte(config.JwtKey))
	auth := taskboard.NewAuthService(userStore, gate)

	server := taskboard.NewServerWithDefaults(cancelCtx, manager, auth, registry)
	defer server.Close()

	if err := server.Run(config.Listen); err != nil {
		Err.Fatalf("%s", err)
	}
}

func register(opts docopt.Opts) {
	apiUrl := apiUrl(opts)
	email, _ := opts.String("--email")
	password := promptPassword(opts)

	result := postJson(fmt.Sprintf("%s/auth/register", apiUrl), "", map[string]any{
		"email":    email,
		"password": password,
	})
	Out.Printf("%s", result)
}

func login(opts docopt.Opts) {
	apiUrl := apiUrl(opts)
	email, _ := opts.String("--email")
	password := promptPassword(opts)

	result := postJson(fmt.Sprintf("%s/auth/login", apiUrl), "", map[string]any{
		"email":    email,
		"password": password,
	})
	Out.Printf("%s", result)
}

func list(opts docopt.Opts) {
	apiUrl := apiUrl(opts)
	jwt, _ := opts.String("--jwt")

	request, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/tasks", apiUrl), nil)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	Out.Printf("%s", doRequest(request, jwt))
}

func add(opts docopt.Opts) {
	apiUrl := apiUrl(opts)
	jwt, _ := opts.String("--jwt")

	result := postJson(fmt.Sprintf("%s/tasks", apiUrl), jwt, taskFields(opts))
	Out.Printf("%s", result)
}

func update(opts docopt.Opts) {
	apiUrl := apiUrl(opts)
	jwt, _ := opts.String("--jwt")
	taskIdStr, _ := opts.String("<task_id>")

	payload, err := json.Marshal(taskFields(opts))
	if err != nil {
		Err.Fatalf("%s", err)
	}

	request, err := http.NewRequest(
		http.MethodPatch,
		fmt.Sprintf("%s/tasks/%s", apiUrl, taskIdStr),
		bytes.NewReader(payload),
	)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	request.Header.Set("Content-Type", "application/json")
	Out.Printf("%s", doRequest(request, jwt))
}

func delete_(opts docopt.Opts) {
	apiUrl := apiUrl(opts)
	jwt, _ := opts.String("--jwt")
	taskIdStr, _ := opts.String("<task_id>")

	request, err := http.NewRequest(
		http.MethodDelete,
		fmt.Sprintf("%s/tasks/%s", apiUrl, taskIdStr),
		nil,
	)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	Out.Printf("%s", doRequest(request, jwt))
}

// subscribe a websocket observer and print events as they arrive
func watch(opts docopt.Opts) {
	apiUrl := apiUrl(opts)
	jwt, _ := opts.String("--jwt")
	messageCount, messageCountErr := opts.Int("--message_count")

	wsUrl, err := url.Parse(apiUrl)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	switch wsUrl.Scheme {
	case "https":
		wsUrl.Scheme = "wss"
	default:
		wsUrl.Scheme = "ws"
	}
	wsUrl.Path = "/ws"
	wsUrl.RawQuery = url.Values{"token": []string{jwt}}.Encode()

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(cancelCtx, wsUrl.String(), nil)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	defer ws.Close()

	for i := 0; messageCountErr != nil || i < messageCount; i += 1 {
		_, message, err := ws.ReadMessage()
		if err != nil {
			Err.Fatalf("%s", err)
		}
		Out.Printf("%s", message)
	}
}

func apiUrl(opts docopt.Opts) string {
	if apiUrl, err := opts.String("--api_url"); err == nil && apiUrl != "" {
		return strings.TrimSuffix(apiUrl, "/")
	}
	return "http://localhost:3001"
}

func promptPassword(opts docopt.Opts) string {
	if password, err := opts.String("--password"); err == nil && password != "" {
		return password
	}
	fmt.Fprintf(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintf(os.Stderr, "\n")
	if err != nil {
		Err.Fatalf("%s", err)
	}
	return string(passwordBytes)
}

func taskFields(opts docopt.Opts) map[string]any {
	fields := map[string]any{}
	if description, err := opts.String("--description"); err == nil && description != "" {
		fields["description"] = description
	}
	if status, err := opts.String("--status"); err == nil && status != "" {
		fields["status"] = status
	}
	if assignee, err := opts.String("--assignee"); err == nil && assignee != "" {
		fields["assignee"] = assignee
	}
	return fields
}

func postJson(requestUrl string, jwt string, args any) string {
	payload, err := json.Marshal(args)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	request, err := http.NewRequest(http.MethodPost, requestUrl, bytes.NewReader(payload))
	if err != nil {
		Err.Fatalf("%s", err)
	}
	request.Header.Set("Content-Type", "application/json")
	return doRequest(request, jwt)
}

func doRequest(request *http.Request, jwt string) string {
	if jwt != "" {
		request.Header.Set("x-access-token", jwt)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	if http.StatusBadRequest <= response.StatusCode {
		Err.Fatalf("%s: %s", response.Status, body)
	}
	return string(body)
}
