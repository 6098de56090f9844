package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const replHelp = `commands:
  health                 health check
  user                   user information
  users                  user list (requires a token)
  admin                  admin dashboard (requires an admin token)
  cors <path> [method]   CORS preflight, method defaults to GET
  token <value>          set the bearer token and save it unencrypted to the session db
  logout                 forget the bearer token
  help                   show this help
  quit                   exit`

// RunREPL reads commands from in until quit, EOF or ctx cancellation. A token
// saved by an earlier session is restored when none was configured.
func (s *Session) RunREPL(ctx context.Context, in io.Reader) error {
	s.restoreToken()
	s.out.Infof("connected to %s, type 'help' for commands", s.client.BaseURL())

	scanCtx, stopScan := context.WithCancel(ctx)
	defer stopScan()
	lines, scanErr := scanLines(scanCtx, in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(s.out.Writer(), "hush> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out.Writer())
			return nil
		case err := <-scanErr:
			fmt.Fprintln(s.out.Writer())
			return err
		case line = <-lines:
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if quit := s.dispatch(ctx, strings.ToLower(fields[0]), fields[1:]); quit {
			return nil
		}
	}
}

// scanLines reads in on its own goroutine so a blocked read never holds up
// cancellation. The error channel yields once, after the last line.
func scanLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

// dispatch runs one command and reports whether the loop should stop.
func (s *Session) dispatch(ctx context.Context, cmd string, args []string) bool {
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(s.out.Writer(), replHelp)
	case "health":
		v, err := s.client.HealthCheck(ctx)
		s.report("Health", v, err)
	case "user":
		v, err := s.client.UserInfo(ctx)
		s.report("User", v, err)
	case "users":
		v, err := s.client.Users(ctx)
		s.report("Users", v, err)
	case "admin":
		v, err := s.client.AdminDashboard(ctx)
		s.report("Admin dashboard", v, err)
	case "cors":
		if len(args) == 0 {
			s.out.Warnf("usage: cors <path> [method]")
			return false
		}
		method := http.MethodGet
		if len(args) > 1 {
			method = strings.ToUpper(args[1])
		}
		resp, err := s.client.CORSPreflight(ctx, args[0], method)
		if err != nil {
			s.report("Preflight", nil, err)
			return false
		}
		s.out.Response("Preflight", resp)
	case "token":
		if len(args) == 0 {
			s.out.Warnf("usage: token <value>")
			return false
		}
		s.setToken(args[0])
	case "logout":
		s.setToken("")
	default:
		s.out.Warnf("unknown command %q, type 'help' for commands", cmd)
	}
	return false
}

func (s *Session) setToken(token string) {
	s.client.SetAuthToken(token)

	var err error
	if token == "" {
		err = s.store.DeleteToken(s.client.BaseURL())
	} else {
		err = s.store.SaveToken(s.client.BaseURL(), token)
	}
	if err != nil {
		s.out.Warnf("token not persisted: %v", err)
		s.log.WarnObj("token persistence failed", "token_store", map[string]any{
			"profile": s.client.BaseURL(),
			"error":   err.Error(),
		})
	}

	if token == "" {
		s.out.Infof("token cleared")
		return
	}
	s.out.Infof("token set")
}

func (s *Session) restoreToken() {
	if s.client.AuthToken() != "" {
		return
	}
	token, found, err := s.store.LoadToken(s.client.BaseURL())
	if err != nil {
		s.log.WarnObj("token restore failed", "token_store", map[string]any{
			"profile": s.client.BaseURL(),
			"error":   err.Error(),
		})
		return
	}
	if found {
		s.client.SetAuthToken(token)
		s.out.Infof("restored saved token")
	}
}
