// ABOUTME: Command implementations for the movilchat CLI
// ABOUTME: Auth, catalog, contract, profile, and advisor operations

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/movilplan/movilchat/internal/backend"
	"github.com/movilplan/movilchat/internal/catalog"
	"github.com/movilplan/movilchat/internal/config"
	"github.com/movilplan/movilchat/internal/contracts"
	"github.com/movilplan/movilchat/internal/profile"
	"github.com/movilplan/movilchat/internal/session"
	"github.com/movilplan/movilchat/internal/storage"
)

func sessionFromBackend(s *backend.Session) *session.Session {
	return &session.Session{
		UserID:       s.User.ID,
		Email:        s.User.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(s.ExpiresIn) * time.Second),
	}
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("movilchat configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Backend Configuration ---")
	backendURL := prompt(reader, "Backend URL", "")
	anonKey := prompt(reader, "Anon key (or ${MOVILCHAT_ANON_KEY})", "${MOVILCHAT_ANON_KEY}")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# movilchat configuration\n")
	cfg.WriteString("# Generated by movilchat init\n\n")

	cfg.WriteString("backend:\n")
	cfg.WriteString(fmt.Sprintf("  url: \"%s\"\n", backendURL))
	cfg.WriteString(fmt.Sprintf("  anon_key: \"%s\"\n", anonKey))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", config.DefaultDatabasePath()))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo sign in:")
	fmt.Println("  movilchat login <email>")

	return nil
}

func runLogin(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: movilchat login <email>")
	}
	email := os.Args[2]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	password := prompt(bufio.NewReader(os.Stdin), "Password", "")
	if password == "" {
		return fmt.Errorf("password is required")
	}

	sess, err := a.client.SignIn(ctx, email, password)
	if err != nil {
		var ae *backend.AuthError
		if errors.As(err, &ae) {
			return fmt.Errorf("sign in failed: %s", ae.Message)
		}
		return fmt.Errorf("sign in failed: %w", err)
	}

	if err := a.sessions.Save(ctx, sessionFromBackend(sess)); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Signed in as %s\n", sess.User.DisplayName())
	if sess.User.IsAdvisor() {
		color.New(color.FgCyan).Println("    (advisor account)")
	}
	return nil
}

func runRegister(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: movilchat register <email>")
	}
	email := os.Args[2]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reader := bufio.NewReader(os.Stdin)
	password := prompt(reader, "Password", "")
	if password == "" {
		return fmt.Errorf("password is required")
	}
	nombres := prompt(reader, "Full name", "")
	telefono := prompt(reader, "Phone", "")

	sess, err := a.client.SignUp(ctx, email, password, backend.SignUpOptions{
		FullName: nombres,
		Phone:    telefono,
	})
	if err != nil {
		var ae *backend.AuthError
		if errors.As(err, &ae) {
			return fmt.Errorf("registration failed: %s", ae.Message)
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	if err := a.sessions.Save(ctx, sessionFromBackend(sess)); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	// The backend's signup trigger creates the profile row; fill in the
	// extra fields, tolerating either order.
	if _, err := profile.NewService(a.client).Ensure(ctx, sess.User.ID, email, nombres, telefono); err != nil {
		a.logger.Warn("completing profile after signup", "error", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Account created for %s\n", email)
	return nil
}

func runLogout(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.restoreSession(ctx); err == nil {
		// Best-effort: the local session is cleared regardless.
		if err := a.client.SignOut(ctx); err != nil {
			a.logger.Warn("backend sign-out failed", "error", err)
		}
	}

	if err := a.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	fmt.Println("Signed out.")
	return nil
}

func runMe(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.restoreSession(ctx); err != nil {
		return err
	}

	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		return err
	}

	role := "Cliente"
	if user.IsAdvisor() {
		role = "Asesor"
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("  Signed-in user")
	cyan.Println("  --------------")
	fmt.Printf("  ID:    %s\n", user.ID)
	fmt.Printf("  Name:  %s\n", user.DisplayName())
	fmt.Printf("  Email: %s\n", user.Email)
	fmt.Printf("  Role:  %s\n", role)
	return nil
}

func runPlans(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Catalog browsing works anonymously; a stored session just scopes
	// row policies. Ignore restore failures.
	_, _ = a.restoreSession(ctx)

	activeOnly := true
	if len(os.Args) > 2 && os.Args[2] == "--todos" {
		activeOnly = false
	}

	plans, err := catalog.NewService(a.client).List(ctx, activeOnly)
	if err != nil {
		return err
	}

	if len(plans) == 0 {
		fmt.Println("No plans available.")
		return nil
	}

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	for _, p := range plans {
		green.Printf("  %s", p.NombreComercial)
		fmt.Printf("  S/ %.2f/mes\n", p.Precio)
		gray.Printf("    id: %s\n", p.ID)
		if p.DatosMoviles != "" || p.MinutosVoz != "" {
			fmt.Printf("    %s datos, %s minutos\n", p.DatosMoviles, p.MinutosVoz)
		}
		if !p.Activo {
			color.New(color.FgYellow).Println("    [inactivo]")
		}
	}
	return nil
}

func runContratar(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: movilchat contratar <plan-id>")
	}
	planID := os.Args[2]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.restoreSession(ctx)
	if err != nil {
		return err
	}

	plan, err := catalog.NewService(a.client).Get(ctx, planID)
	if err != nil {
		return err
	}

	contract, err := contracts.NewService(a.client).Create(ctx, sess.UserID, planID)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Requested %s", plan.NombreComercial)
	fmt.Printf(" (contract %s, estado %s)\n", contract.ID, contract.Estado)
	fmt.Println("  An advisor will review your request.")
	return nil
}

func runMisPlanes(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.restoreSession(ctx)
	if err != nil {
		return err
	}

	list, err := contracts.NewService(a.client).ListMine(ctx, sess.UserID)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No contracted plans yet.")
		return nil
	}

	for _, c := range list {
		printContract(c)
	}
	return nil
}

func runCancelar(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: movilchat cancelar <contract-id>")
	}
	contractID := os.Args[2]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.restoreSession(ctx)
	if err != nil {
		return err
	}

	updated, err := contracts.NewService(a.client).Cancel(ctx, contractID, sess.UserID)
	if errors.Is(err, contracts.ErrNotPending) {
		return fmt.Errorf("contract %s is not a pending request of yours", contractID)
	}
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("  ✓ Cancelled contract %s\n", updated.ID)
	return nil
}

func runProfile(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.restoreSession(ctx)
	if err != nil {
		return err
	}

	svc := profile.NewService(a.client)

	// Flags update; no flags shows.
	var nombres, telefono string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--nombres" && i+1 < len(args):
			nombres = args[i+1]
			i++
		case args[i] == "--telefono" && i+1 < len(args):
			telefono = args[i+1]
			i++
		default:
			return fmt.Errorf("unknown argument: %s", args[i])
		}
	}

	if nombres != "" || telefono != "" {
		updated, err := svc.Update(ctx, sess.UserID, nombres, telefono)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Println("  ✓ Profile updated")
		printProfile(updated)
		return nil
	}

	p, err := svc.Get(ctx, sess.UserID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		fmt.Println("No profile yet. Update it with --nombres / --telefono.")
		return nil
	}
	if err != nil {
		return err
	}
	printProfile(p)
	return nil
}

func printProfile(p *profile.Profile) {
	cyan := color.New(color.FgCyan)
	cyan.Println("  Profile")
	cyan.Println("  -------")
	fmt.Printf("  Name:  %s\n", p.NombresCompletos)
	fmt.Printf("  Email: %s\n", p.Email)
	fmt.Printf("  Phone: %s\n", p.Telefono)
	if p.Rol != "" {
		fmt.Printf("  Role:  %s\n", p.Rol)
	}
}

// requireAdvisor restores the session and verifies the account is an
// advisor.
func requireAdvisor(ctx context.Context, a *app) (*backend.User, error) {
	if _, err := a.restoreSession(ctx); err != nil {
		return nil, err
	}
	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdvisor() {
		return nil, fmt.Errorf("this command requires an advisor account")
	}
	return user, nil
}

func runPendientes(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := requireAdvisor(ctx, a); err != nil {
		return err
	}

	pending, err := contracts.NewService(a.client).ListPending(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Println("No pending requests.")
		return nil
	}

	for _, c := range pending {
		printContract(c)
	}
	return nil
}

func runDecide(ctx context.Context, approve bool) error {
	verb := "approve"
	if !approve {
		verb = "reject"
	}
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: movilchat %s <contract-id>", verb)
	}
	contractID := os.Args[2]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	advisor, err := requireAdvisor(ctx, a)
	if err != nil {
		return err
	}

	svc := contracts.NewService(a.client)
	var updated *contracts.Contract
	if approve {
		updated, err = svc.Approve(ctx, contractID, advisor.ID)
	} else {
		updated, err = svc.Reject(ctx, contractID, advisor.ID)
	}
	if errors.Is(err, contracts.ErrNotPending) {
		return fmt.Errorf("contract %s is not pending (already decided?)", contractID)
	}
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("  ✓ Contract %s is now %s\n", updated.ID, updated.Estado)
	return nil
}

func runPlanImage(ctx context.Context) error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: movilchat plan-image <plan-id> <file>")
	}
	planID, filePath := os.Args[2], os.Args[3]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := requireAdvisor(ctx, a); err != nil {
		return err
	}

	uploader, err := storage.NewUploader(a.cfg.Storage)
	if errors.Is(err, storage.ErrNotConfigured) {
		return fmt.Errorf("add a storage section to %s to upload images", getConfigPath())
	}
	if err != nil {
		return err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("reading image metadata: %w", err)
	}

	url, err := uploader.UploadPlanImage(ctx, planID, filePath, f, info.Size())
	if err != nil {
		return err
	}

	if _, err := catalog.NewService(a.client).SetImage(ctx, planID, url); err != nil {
		return fmt.Errorf("recording image url: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Image uploaded: %s\n", url)
	return nil
}

func printContract(c contracts.Contract) {
	statusColor := map[string]*color.Color{
		contracts.StatusPending:   color.New(color.FgYellow),
		contracts.StatusApproved:  color.New(color.FgGreen),
		contracts.StatusRejected:  color.New(color.FgRed),
		contracts.StatusCancelled: color.New(color.FgHiBlack),
	}

	name := "Plan sin nombre"
	price := ""
	if c.Plan != nil {
		name = c.Plan.NombreComercial
		price = fmt.Sprintf("  S/ %.2f/mes", c.Plan.Precio)
	}

	fmt.Printf("  %s%s  ", name, price)
	if cc, ok := statusColor[c.Estado]; ok {
		cc.Printf("[%s]", c.Estado)
	} else {
		fmt.Printf("[%s]", c.Estado)
	}
	fmt.Println()
	color.New(color.FgHiBlack).Printf("    id: %s  solicitado: %s\n",
		c.ID, c.FechaContratacion.Format("2006-01-02 15:04"))
}
