// authctl is a small command line front end for the auth API. It keeps its
// session in a local SQLite file, mirroring what the web client stores in
// the browser.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avinash-394/website/internal/authclient"
	"github.com/avinash-394/website/internal/authclient/localstore"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: authctl [-api URL] [-session PATH] <command> [args]

commands:
  signup <name> <email> <password>
  login <email> <password>
  whoami
  profile <name> <email>
  avatar <file>
  forgot <email>
  reset <ticket> <new-password>
  logout`)
	os.Exit(2)
}

func main() {
	apiURL := flag.String("api", envOr("WEBSITE_API_URL", "http://localhost:8080"), "auth API base URL")
	sessionPath := flag.String("session", defaultSessionPath(), "session database path")
	flag.Parse()

	args := flag.Args()

	if len(args) == 0 {
		usage()
	}

	if dir := filepath.Dir(*sessionPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fatal(err)
		}
	}

	local, err := localstore.Open(*sessionPath)

	if err != nil {
		fatal(err)
	}

	defer local.Close()

	store := authclient.NewStore(authclient.NewClient(*apiURL), local)
	store.Rehydrate()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	switch args[0] {
	case "signup":
		requireArgs(args, 4)
		err = store.Signup(ctx, args[1], args[2], args[3])

	case "login":
		requireArgs(args, 3)
		err = store.Login(ctx, args[1], args[2])

	case "whoami":
		err = store.Revalidate(ctx)

	case "profile":
		requireArgs(args, 3)
		err = store.UpdateProfile(ctx, args[1], args[2])

	case "avatar":
		requireArgs(args, 2)
		var f *os.File
		f, err = os.Open(args[1])
		if err == nil {
			defer f.Close()
			err = store.UploadAvatar(ctx, args[1], f)
		}

	case "forgot":
		requireArgs(args, 2)
		err = store.ForgotPassword(ctx, args[1])
		if err == nil {
			fmt.Println("check your mail for the reset link")
			return
		}

	case "reset":
		requireArgs(args, 3)
		err = store.ResetPassword(ctx, args[1], args[2])

	case "logout":
		store.Logout()
		fmt.Println("logged out")
		return

	default:
		usage()
	}

	if err != nil {
		fatal(err)
	}

	printUser(store)
}

func printUser(store *authclient.Store) {
	snap := store.Snapshot()

	if snap.User == nil {
		fmt.Println("not logged in")
		return
	}

	fmt.Printf("%s <%s>\n", snap.User.Name, snap.User.Email)

	if snap.User.Avatar != "" {
		fmt.Println("avatar:", snap.User.Avatar)
	}
}

func requireArgs(args []string, n int) {
	if len(args) != n {
		usage()
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()

	if err != nil {
		return "session.db"
	}

	return filepath.Join(home, ".website", "session.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
