package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/balalab/portal/internal/client/portal"
	"github.com/balalab/portal/internal/models"
)

var (
	version   string
	buildDate string
)

// prompt reads one line of input after printing label.
func prompt(scanner *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

// confirm asks a yes/no question and returns true on "y"/"yes".
func confirm(scanner *bufio.Scanner, label string) bool {
	answer := strings.ToLower(prompt(scanner, label+" [y/N] "))
	return answer == "y" || answer == "yes"
}

// loginLoop runs the unauthenticated shell until a session is established
// or the user exits. Returns false on exit.
func loginLoop(ctx context.Context, scanner *bufio.Scanner, session *portal.Session) bool {
	fmt.Println("Not signed in. Commands: login, register, exit")
	for {
		line := prompt(scanner, "portal> ")
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "login":
			email := prompt(scanner, "email: ")
			password := prompt(scanner, "password: ")
			if err := session.Login(ctx, email, password); err != nil {
				fmt.Println("login failed:", err)
				continue
			}
			return true
		case "register":
			email := prompt(scanner, "email: ")
			password := prompt(scanner, "password: ")
			role := models.ParseRole(prompt(scanner, "role (admin/user): "))
			if err := session.Register(ctx, email, password, role); err != nil {
				fmt.Println("registration failed:", err)
				continue
			}
			return true
		case "exit":
			return false
		default:
			fmt.Println("Commands: login, register, exit")
		}
	}
}

func printReports(reports []models.Report) {
	if len(reports) == 0 {
		fmt.Println("No reports.")
		return
	}
	for _, r := range reports {
		fmt.Printf("%s  %-30s  %-6s  %s  %s\n", r.ID, r.OriginalName, r.FileType, r.UserEmail, r.CreatedAt)
	}
}

// adminShell is the dashboard for admin accounts.
func adminShell(ctx context.Context, scanner *bufio.Scanner, session *portal.Session, api *portal.Client) {
	dash := portal.NewAdminDashboard(api)
	fmt.Println("Loading...")
	if err := dash.Refresh(ctx); err != nil {
		fmt.Println("failed to load dashboard:", err)
	}

	fmt.Println("Admin commands: list, users, upload <path> <email>, delete <id>, refresh, logout, exit")
	for {
		line := prompt(scanner, "admin> ")
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "list":
			printReports(dash.Reports())
		case "users":
			for _, u := range dash.Users() {
				fmt.Printf("%s  %s\n", u.ID, u.Email)
			}
		case "upload":
			if len(args) < 3 {
				fmt.Println("Usage: upload <path> <email>")
				continue
			}
			f, err := os.Open(args[1])
			if err != nil {
				fmt.Println("upload failed:", err)
				continue
			}
			err = dash.Upload(ctx, filepath.Base(args[1]), f, args[2])
			f.Close()
			if err != nil {
				fmt.Println("upload failed:", err)
				continue
			}
			fmt.Println("Report uploaded")
		case "delete":
			if len(args) < 2 {
				fmt.Println("Usage: delete <id>")
				continue
			}
			err := dash.Delete(ctx, args[1], func(id string) bool {
				return confirm(scanner, "Delete report "+id+"? This cannot be undone.")
			})
			if err != nil {
				fmt.Println("delete failed:", err)
			}
		case "refresh":
			if err := dash.Refresh(ctx); err != nil {
				fmt.Println("refresh failed:", err)
			}
		case "logout":
			session.Logout()
			return
		case "exit":
			fmt.Println("Bye")
			os.Exit(0)
		default:
			fmt.Println("Commands: list, users, upload <path> <email>, delete <id>, refresh, logout, exit")
		}
	}
}

// userShell is the dashboard for patient accounts.
func userShell(ctx context.Context, scanner *bufio.Scanner, session *portal.Session, api *portal.Client) {
	viewer := portal.NewReportViewer(api)
	fmt.Println("Loading...")
	if err := viewer.Refresh(ctx); err != nil {
		fmt.Println("failed to load reports:", err)
	}

	fmt.Println("Commands: list, download <id>, preview <id>, refresh, logout, exit")
	for {
		line := prompt(scanner, "portal> ")
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "list":
			printReports(viewer.Reports())
		case "download":
			if len(args) < 2 {
				fmt.Println("Usage: download <id>")
				continue
			}
			name := args[1]
			for _, r := range viewer.Reports() {
				if r.ID == args[1] {
					name = r.OriginalName
					break
				}
			}
			path, err := viewer.Download(ctx, args[1], name, ".")
			if err != nil {
				fmt.Println("download failed:", err)
				continue
			}
			fmt.Println("Saved to", path)
		case "preview":
			if len(args) < 2 {
				fmt.Println("Usage: preview <id>")
				continue
			}
			fmt.Println("Open in a browser:", viewer.PreviewURL(args[1]))
		case "refresh":
			if err := viewer.Refresh(ctx); err != nil {
				fmt.Println("refresh failed:", err)
			}
		case "logout":
			session.Logout()
			return
		case "exit":
			fmt.Println("Bye")
			os.Exit(0)
		default:
			fmt.Println("Commands: list, download <id>, preview <id>, refresh, logout, exit")
		}
	}
}

// main parses flags, restores the session, and dispatches to the dashboard
// matching the authenticated role.
func main() {
	var (
		baseURL   string
		stateFile string
		showVer   bool
	)

	flag.StringVar(&baseURL, "url", "", "API base URL (default $PORTAL_API_URL or "+portal.DefaultBaseURL+")")
	flag.StringVar(&stateFile, "state", "", "path to the session state file")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Lab Portal Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	ctx := context.Background()
	api := portal.NewClient(baseURL)
	session := portal.NewSession(api, stateFile)
	scanner := bufio.NewScanner(os.Stdin)

	if err := session.Restore(ctx); err != nil {
		fmt.Println("could not restore session:", err)
	}

	for {
		if !session.Authenticated() {
			if !loginLoop(ctx, scanner, session) {
				fmt.Println("Bye")
				return
			}
		}

		user := session.User()
		fmt.Printf("Signed in as %s (%s)\n", user.Email, user.Role)

		// closed dispatch: exactly two dashboard variants
		switch user.Role {
		case models.RoleAdmin:
			adminShell(ctx, scanner, session, api)
		default:
			userShell(ctx, scanner, session, api)
		}
	}
}
