// Package main is the terminal chat client.
//
// Usage:
//
//	chatclient <command> [options]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/trash2cash/chatsync/internal/client"
	"github.com/trash2cash/chatsync/internal/config"
	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/metrics"
	"github.com/trash2cash/chatsync/internal/services"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/notify"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "login":
		err = runLogin(os.Args[2:])
	case "logout":
		err = runLogout(os.Args[2:])
	case "rooms":
		err = runRooms(os.Args[2:])
	case "send":
		err = runSend(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "notifications":
		err = runNotifications(os.Args[2:])
	case "sound":
		err = runSound(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if apiclient.IsAuthRequired(err) {
			fmt.Fprintln(os.Stderr, "Not signed in. Run 'chatclient login'.")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: chatclient <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login           Sign in and store the session locally")
	fmt.Println("  logout          End the session")
	fmt.Println("  rooms           List chatrooms with unread counts")
	fmt.Println("  send            Send one message to a room or a user")
	fmt.Println("  watch           Follow a room and chat from stdin")
	fmt.Println("  notifications   Show or clear notifications")
	fmt.Println("  sound           Turn the new-message chime on or off")
	fmt.Println()
	fmt.Println("Run 'chatclient <command> -h' for command-specific options.")
}

// open builds a client from the environment. Logs go to stderr so they do
// not interleave with chat output.
func open(ctx context.Context) (*client.Client, *config.Config, error) {
	cfg := config.Load()
	logger := services.NewLoggerTo("chatclient", os.Stderr)
	c, err := client.New(ctx, client.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

func runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", os.Getenv("CHATSYNC_PASSWORD"), "password (or CHATSYNC_PASSWORD)")
	fs.Parse(args)

	ctx := context.Background()
	c, _, err := open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Login(ctx, *username, *password); err != nil {
		return err
	}
	profile, _ := c.Profile()
	fmt.Printf("Signed in as %s (id %d)\n", profile.Username, profile.ID)
	return nil
}

func runLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	c, _, err := open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func runRooms(args []string) error {
	fs := flag.NewFlagSet("rooms", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	c, _, err := open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return err
	}
	profile, _ := c.Profile()
	rooms, err := c.Chat.Directory().List(ctx)
	if err != nil {
		return err
	}
	counts, err := c.Unread.FetchUnreadCounts(ctx)
	if err != nil {
		return err
	}

	if len(rooms) == 0 {
		fmt.Println("No chatrooms yet")
		return nil
	}
	for _, room := range rooms {
		var names []string
		for _, p := range room.Others(profile.Username) {
			names = append(names, p.Username)
		}
		line := fmt.Sprintf("#%-5d %-24s", room.ID, strings.Join(names, ", "))
		if n := counts[room.ID]; n > 0 {
			line += fmt.Sprintf(" (%d unread)", n)
		}
		if room.LastMessage != nil {
			line += fmt.Sprintf("  %s: %s", room.LastMessage.Sender, room.LastMessage.Content)
		}
		fmt.Println(line)
	}
	return nil
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	roomID := fs.Int64("room", 0, "chatroom id")
	userID := fs.Int64("user", 0, "user id; opens the private room with this user")
	fs.Parse(args)

	content := strings.Join(fs.Args(), " ")
	if *roomID == 0 && *userID == 0 {
		return errors.New("one of -room or -user is required")
	}

	ctx := context.Background()
	c, _, err := open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return err
	}
	if *roomID == 0 {
		if *roomID, err = c.MessageUser(ctx, *userID); err != nil {
			return err
		}
	}

	session, err := c.OpenSession(ctx, roomID)
	if err != nil {
		return err
	}
	defer session.Close()
	if selected, ok := session.Selected(); !ok || selected != *roomID {
		return fmt.Errorf("chatroom %d is not available", *roomID)
	}
	if err := session.Send(ctx, content); err != nil {
		return err
	}
	fmt.Printf("Sent to #%d\n", *roomID)
	return nil
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	roomID := fs.Int64("room", 0, "chatroom id (default: most recent)")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, cfg, err := open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer srv.Close()
	}

	signedOut := make(chan struct{}, 1)
	c.OnSignedOut(func() {
		select {
		case signedOut <- struct{}{}:
		default:
		}
	})
	if err := c.Start(ctx); err != nil {
		return err
	}

	var deepLink *int64
	if *roomID != 0 {
		deepLink = roomID
	}
	session, err := c.OpenSession(ctx, deepLink)
	if err != nil {
		return err
	}
	defer session.Close()

	selected, ok := session.Selected()
	if !ok {
		fmt.Println("No chatrooms yet. Use 'chatclient send -user <id>' to start one.")
		return nil
	}
	fmt.Printf("Watching #%d. Type a message and press enter; Ctrl-C quits.\n", selected)

	// observers fire from poll goroutines and from Send
	var outMu sync.Mutex
	printed := 0
	render := func(msgs []domain.Message) {
		outMu.Lock()
		defer outMu.Unlock()
		if len(msgs) < printed {
			printed = 0
		}
		for _, m := range msgs[printed:] {
			fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), m.SenderName, m.Content)
		}
		printed = len(msgs)
	}
	stream := session.Stream()
	stopMessages := stream.Subscribe(render)
	defer stopMessages()
	render(stream.Messages())

	stopTyping := session.Typing().Subscribe(func(users []domain.TypingUser) {
		outMu.Lock()
		defer outMu.Unlock()
		if len(users) == 0 {
			return
		}
		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, u.Username)
		}
		fmt.Printf("  %s typing...\n", strings.Join(names, ", "))
	})
	defer stopTyping()

	lastTotal := -1
	stopUnread := c.Unread.Subscribe(func(snap notify.Snapshot) {
		outMu.Lock()
		defer outMu.Unlock()
		if snap.Total != lastTotal && snap.Total > 0 {
			fmt.Printf("  (%d unread in other rooms)\n", snap.Total)
		}
		lastTotal = snap.Total
	})
	defer stopUnread()

	lines := readLines(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-signedOut:
			return apiclient.NewAuthRequiredError("watch", "session ended", nil)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			sendLine(ctx, session, line, os.Stderr)
		}
	}
}

func runNotifications(args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ExitOnError)
	clearAll := fs.Bool("clear", false, "mark all notifications as read")
	read := fs.Int64("read", 0, "mark one notification as read")
	fs.Parse(args)

	ctx := context.Background()
	c, _, err := open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return err
	}

	switch {
	case *clearAll:
		n, err := c.Bell.MarkAllRead(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d notifications as read\n", n)
		return nil
	case *read != 0:
		if err := c.Bell.MarkRead(ctx, *read); err != nil {
			return err
		}
		fmt.Printf("Marked notification %d as read\n", *read)
		return nil
	}

	items, err := c.Bell.Fetch(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No new notifications")
		return nil
	}
	for _, n := range items {
		fmt.Printf("%-5d %s  %s\n", n.ID, n.CreatedAt.Local().Format(time.DateTime), n.Message)
	}
	return nil
}

func runSound(args []string) error {
	fs := flag.NewFlagSet("sound", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 || (fs.Arg(0) != "on" && fs.Arg(0) != "off") {
		return errors.New("usage: chatclient sound on|off")
	}

	ctx := context.Background()
	c, _, err := open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Unread.SetSoundEnabled(ctx, fs.Arg(0) == "on"); err != nil {
		return err
	}
	fmt.Printf("Notification sound %s\n", fs.Arg(0))
	return nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	return srv
}
