package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "tenant":
		handleTenant(args)
	case "users":
		handleUsers(args)
	case "can":
		checkCapability(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: workspace auth <login|logout|who|passwd>")
		return
	}

	switch args[0] {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	case "passwd":
		changeSuperAdminPassword(args[1:])
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func handleTenant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: workspace tenant <list|switch|clear|create|activate|deactivate>")
		return
	}

	switch args[0] {
	case "list":
		listTenants()
	case "switch":
		if len(args) < 2 {
			fmt.Println("Usage: workspace tenant switch <tenant-id>")
			return
		}
		switchTenant(args[1])
	case "clear":
		switchTenant("")
	case "create":
		createTenant(args[1:])
	case "activate":
		setActive("/tenants", args[1:], true)
	case "deactivate":
		setActive("/tenants", args[1:], false)
	default:
		fmt.Printf("unknown tenant command: %s\n", args[0])
	}
}

func handleUsers(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: workspace users <list|create|activate|deactivate|reset-password>")
		return
	}

	switch args[0] {
	case "list":
		listUsers()
	case "create":
		createUser(args[1:])
	case "activate":
		setActive("/users", args[1:], true)
	case "deactivate":
		setActive("/users", args[1:], false)
	case "reset-password":
		resetPassword(args[1:])
	default:
		fmt.Printf("unknown users command: %s\n", args[0])
	}
}

// Auth commands
func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	login := fs.String("login", "", "login, e.g. lv_anna or the super admin name")
	password := fs.String("password", "", "password")
	tenant := fs.String("tenant", "", "preferred tenant (super admin only)")

	fs.Parse(args)

	if *login == "" || *password == "" {
		fmt.Println("Error: login and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"login": *login, "password": *password}
	if *tenant != "" {
		payload["tenant"] = *tenant
	}

	var result struct {
		Token   string         `json:"token"`
		Session map[string]any `json:"session"`
		Error   string         `json:"error"`
	}
	status, err := call(http.MethodPost, "/auth/login", payload, &result)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Printf("✗ Login failed: %s\n", result.Error)
		return
	}
	if err := saveToken(result.Token); err != nil {
		fmt.Printf("Error: could not store token: %v\n", err)
		return
	}
	fmt.Printf("✓ Logged in as %v (role %v, tenant %v)\n",
		result.Session["login"], result.Session["role"], orDash(result.Session["effectiveTenantId"]))
}

func logoutUser() {
	if loadToken() != "" {
		if _, err := call(http.MethodPost, "/auth/logout", nil, nil); err != nil {
			fmt.Printf("Warning: server logout failed: %v\n", err)
		}
	}
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	if loadToken() == "" {
		fmt.Println("Not logged in")
		return
	}
	var session map[string]any
	status, err := call(http.MethodGet, "/session", nil, &session)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Println("Session expired; log in again")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "LOGIN\t%v\n", session["login"])
	fmt.Fprintf(w, "NAME\t%v\n", session["displayName"])
	fmt.Fprintf(w, "ROLE\t%v\n", session["role"])
	fmt.Fprintf(w, "TENANT\t%v\n", orDash(session["effectiveTenantId"]))
	fmt.Fprintf(w, "EXPIRES\t%v\n", session["expiresAt"])
	w.Flush()
}

func changeSuperAdminPassword(args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	password := fs.String("password", "", "new password")
	fs.Parse(args)

	if *password == "" {
		fmt.Println("Error: password is required")
		return
	}
	report(call(http.MethodPost, "/auth/super-admin/password", map[string]string{"newPassword": *password}, nil))
}

// Tenant commands
func listTenants() {
	var tenants []map[string]any
	status, err := call(http.MethodGet, "/tenants", nil, &tenants)
	if err != nil || status != http.StatusOK {
		report(status, err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPREFIX\tACTIVE")
	for _, t := range tenants {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", t["id"], t["displayName"], t["loginPrefix"], t["isActive"])
	}
	w.Flush()
}

func switchTenant(tenantID string) {
	var session map[string]any
	status, err := call(http.MethodPost, "/session/tenant", map[string]string{"tenantId": tenantID}, &session)
	if err != nil || status != http.StatusOK {
		report(status, err)
		return
	}
	fmt.Printf("✓ Working in tenant: %v\n", orDash(session["effectiveTenantId"]))
}

func createTenant(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	id := fs.String("id", "", "tenant ID (generated when empty)")
	name := fs.String("name", "", "display name")
	prefix := fs.String("prefix", "", "login prefix, 2-8 letters")
	fs.Parse(args)

	if *name == "" || *prefix == "" {
		fmt.Println("Error: name and prefix are required")
		fs.PrintDefaults()
		return
	}
	report(call(http.MethodPost, "/tenants", map[string]string{
		"id": *id, "displayName": *name, "loginPrefix": *prefix,
	}, nil))
}

// User commands
func listUsers() {
	var users []map[string]any
	status, err := call(http.MethodGet, "/users", nil, &users)
	if err != nil || status != http.StatusOK {
		report(status, err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLOGIN\tNAME\tROLE\tACTIVE")
	for _, u := range users {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", u["id"], u["login"], u["displayName"], u["role"], u["isActive"])
	}
	w.Flush()
}

func createUser(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	login := fs.String("login", "", "login without tenant prefix")
	password := fs.String("password", "", "initial password")
	role := fs.String("role", "dealer", "role")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "email")
	admin := fs.String("admin-of", "", "create a tenant admin for this tenant (super admin only)")
	fs.Parse(args)

	if *login == "" || *password == "" {
		fmt.Println("Error: login and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"login": *login, "password": *password, "role": *role,
		"firstName": *first, "lastName": *last, "email": *email,
	}
	path := "/users"
	if *admin != "" {
		delete(payload, "role")
		path = "/tenants/" + *admin + "/admins"
	}
	report(call(http.MethodPost, path, payload, nil))
}

func resetPassword(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: workspace users reset-password <user-id> <new-password>")
		return
	}
	report(call(http.MethodPost, "/users/"+args[0]+"/password", map[string]string{"newPassword": args[1]}, nil))
}

func setActive(base string, args []string, active bool) {
	if len(args) < 1 {
		fmt.Printf("Usage: workspace %s <id>\n", strings.TrimPrefix(base, "/"))
		return
	}
	report(call(http.MethodPut, base+"/"+args[0]+"/active", map[string]bool{"active": active}, nil))
}

func checkCapability(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: workspace can <capability>")
		return
	}
	var decision struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
		Error   string `json:"error"`
	}
	status, err := call(http.MethodGet, "/authz/capabilities/"+args[0], nil, &decision)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	switch {
	case status != http.StatusOK:
		fmt.Printf("✗ %s\n", decision.Error)
	case decision.Allowed:
		fmt.Printf("✓ %s allowed\n", args[0])
	default:
		fmt.Printf("✗ %s denied: %s\n", args[0], decision.Reason)
	}
}

// Helper functions
func call(method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, getAPIURL()+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, out)
	}
	if out == nil && resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return resp.StatusCode, fmt.Errorf("%s (%d)", e.Error, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func report(status int, err error) {
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		return
	}
	if status >= 400 {
		fmt.Printf("✗ request failed (%d)\n", status)
		return
	}
	fmt.Println("✓ Done")
}

func orDash(v any) any {
	if v == nil || v == "" {
		return "-"
	}
	return v
}

func getAPIURL() string {
	if url := os.Getenv("WORKSPACE_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".workspace", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return strings.TrimSpace(string(data))
}

func addAuthHeader(req *http.Request) {
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`Workspace CLI

Usage:
  workspace <command> [options]

Commands:
  auth       Authentication (login, logout, who, passwd)
  tenant     Tenant scope and registry (list, switch, clear, create, activate, deactivate)
  users      Accounts in the current tenant (list, create, activate, deactivate, reset-password)
  can        Ask whether the current session holds a capability
  help       Show this help message

Environment Variables:
  WORKSPACE_API    API endpoint (default: http://localhost:8080/api)

Examples:
  workspace auth login -login admin -password secret
  workspace tenant switch latvia
  workspace users create -login anna -password changeme1 -role sm
  workspace can view_schedules
`)
}
