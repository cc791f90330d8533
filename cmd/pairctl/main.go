// Command pairctl is an operator CLI for a running interview server: health, room lookup,
// problem listing and an end-to-end WebSocket probe.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "pairctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "pairctl",
		Usage: "inspect and probe a pair-interview server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "server base URL",
				Sources: cli.EnvVars("PAIRCTL_SERVER"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Second,
				Usage: "per-command timeout",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "show server health",
				Action: healthAction,
			},
			{
				Name:      "room",
				Usage:     "show a live room",
				ArgsUsage: "<code>",
				Action:    roomAction,
			},
			{
				Name:  "problems",
				Usage: "list the problem catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "filter by title, difficulty or topic"},
				},
				Action: problemsAction,
			},
			{
				Name:  "probe",
				Usage: "create a room over WebSocket, ping it and leave",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "problem", Usage: "problem slug for the probe room"},
				},
				Action: probeAction,
			},
		},
	}
}

func clientFrom(cmd *cli.Command) (*apiClient, error) {
	return newAPIClient(cmd.String("server"), cmd.Duration("timeout"))
}

func withTimeout(ctx context.Context, cmd *cli.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cmd.Duration("timeout"))
}

func healthAction(ctx context.Context, cmd *cli.Command) error {
	c, err := clientFrom(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, cmd)
	defer cancel()
	h, err := c.health(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, h)
}

func roomAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("usage: pairctl room <code>", 2)
	}
	c, err := clientFrom(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, cmd)
	defer cancel()

	info, err := c.room(ctx, cmd.Args().First())
	var apiErr *apiError
	if errors.As(err, &apiErr) && len(apiErr.Body.Data) > 0 {
		var owner struct {
			Instance string `json:"instance"`
		}
		if json.Unmarshal(apiErr.Body.Data, &owner) == nil && owner.Instance != "" {
			return fmt.Errorf("room is hosted by instance %s", owner.Instance)
		}
	}
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	fmt.Fprintf(w, "code:         %s\n", info.Code)
	fmt.Fprintf(w, "participants: %d/%d\n", info.Participants, info.Capacity)
	fmt.Fprintf(w, "problem:      %s\n", info.CurrentProblem)
	fmt.Fprintf(w, "created:      %s\n", info.CreatedAt.Format(time.RFC3339))
	return nil
}

func problemsAction(ctx context.Context, cmd *cli.Command) error {
	c, err := clientFrom(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, cmd)
	defer cancel()
	list, err := c.problems(ctx, cmd.String("query"))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tTITLE\tDIFFICULTY")
	for _, p := range list.Problems {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Slug, p.Title, p.Difficulty)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "%d problem(s)\n", list.Total)
	return nil
}

func probeAction(ctx context.Context, cmd *cli.Command) error {
	c, err := clientFrom(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, cmd)
	defer cancel()
	res, err := c.probe(ctx, cmd.String("problem"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "ok: room %s (%s), ping %s\n", res.Code, res.Problem, res.RTT.Round(time.Microsecond))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
