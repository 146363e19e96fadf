package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-probe/telemetry"
	"github.com/amartya2002/uptime-probe/uptime"
)

// NewReproCmd creates the "repro" subcommand.
func NewReproCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repro",
		Short: "Send each known-bad case once and print a curl command that reproduces it",
		RunE:  runRepro,
	}
	cmd.Flags().String("cases", "", "Bug-case file, JSON or YAML (default from BUG_CASES_PATH)")
	return cmd
}

func runRepro(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	casesPath := cfg.Monitor.BugCasesPath
	if p, _ := cmd.Flags().GetString("cases"); p != "" {
		casesPath = p
	}
	cases, err := uptime.LoadCases(casesPath)
	if err != nil {
		return exitError(ExitConfig, "%v", err)
	}

	ctx := cmd.Context()
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		return exitError(ExitConfig, "%v", err)
	}
	defer func() {
		if serr := shutdownTracing(context.Background()); serr != nil {
			a.logger.Warn("Tracing shutdown failed", zap.Error(serr))
		}
	}()

	client := uptime.NewClient(cfg.Probe.ProbeURL(), uptime.WithTimeout(cfg.Probe.Timeout()))
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Running bug reproduction for test cases with bugs...")
	for _, in := range cases {
		res := client.Probe(ctx, in)
		a.logger.Debug("Reproduced case",
			zap.String("input", in.Echo()),
			zap.Int("status", res.StatusCode),
			zap.String("error", res.Error))
		if err := writeRepro(out, client.URL(), in, res); err != nil {
			return err
		}
	}
	return nil
}

func writeRepro(w io.Writer, url string, in uptime.Input, res uptime.Outcome) error {
	var shown bytes.Buffer
	enc := json.NewEncoder(&shown)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	cmdline, err := curlCommand(url, in)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\nCase: %s\n%sTo reproduce the error, run the following request:\n%s\n", in.Echo(), shown.Bytes(), cmdline)
	return err
}

// curlCommand renders a shell-safe curl invocation that sends in as the name field.
func curlCommand(url string, in uptime.Input) (string, error) {
	body, err := uptime.EncodeRequest(in)
	if err != nil {
		return "", fmt.Errorf("encode request body: %w", err)
	}
	quoted := strings.ReplaceAll(string(body), "'", `'\''`)
	return fmt.Sprintf(`curl -X POST -H "Content-Type: application/json" -d '%s' %s`, quoted, url), nil
}
