package cli

import (
	"fmt"

	"github.com/kbukum/pixelflow/auth"
	"github.com/kbukum/pixelflow/version"
)

func (e *env) token(args []string) int {
	fs := e.flagSet("token")
	configPath := fs.StringP("config", "c", "", "configuration file")
	subject := fs.String("subject", "", "token subject (required)")
	scopes := fs.StringSlice("scope", []string{auth.ScopeAll}, "granted scopes, comma separated")
	if code, ok := e.parse(fs, args, 0); !ok {
		return code
	}
	if *subject == "" {
		fmt.Fprintln(e.stderr, "token: --subject is required")
		return ExitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(e.stderr, "token: %v\n", err)
		return ExitUsage
	}
	svc, err := auth.NewService(cfg.Auth)
	if err != nil {
		fmt.Fprintf(e.stderr, "token: %v\n", err)
		return ExitUsage
	}
	tok, err := svc.Issue(*subject, *scopes...)
	if err != nil {
		return e.fail(err)
	}
	fmt.Fprintln(e.stdout, tok)
	return ExitSuccess
}

func (e *env) version(args []string) int {
	fs := e.flagSet("version")
	short := fs.Bool("short", false, "print only the version")
	if code, ok := e.parse(fs, args, 0); !ok {
		return code
	}
	if *short {
		fmt.Fprintln(e.stdout, version.GetShortVersion())
		return ExitSuccess
	}
	version.Print(e.stdout, serviceName)
	return ExitSuccess
}
