package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/offlinesync/internal/app"
	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/pkg/offlinesync"
)

func newDrainCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Deliver queued mutations now and report the outcome of each",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := offlinesync.New(c.serviceConfig(false), offlinesync.WithLogger(c.logger))
			if err != nil {
				return err
			}
			defer svc.Close()

			results, err := svc.Drain(commandContext(cmd))
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), results)
		},
	}
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pending mutations by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			stats, err := svc.Stats(commandContext(cmd))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, p := range domain.Priorities {
				fmt.Fprintf(w, "%s\t%d\n", p, stats.Pending[p])
			}
			fmt.Fprintf(w, "total\t%d\n", stats.Total)
			fmt.Fprintf(w, "dead_letters\t%d\n", stats.DeadLetters)
			return w.Flush()
		},
	}
}

func newEnqueueCmd(c *cli) *cobra.Command {
	var (
		in       app.NewItem
		priority string
		headers  []string
		body     string
		bodyFile string
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Add a mutation to the queue without sending it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.URL == "" {
				return errors.New("--url is required")
			}
			if body != "" {
				in.Body = []byte(body)
			}
			if bodyFile != "" {
				b, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read body: %w", err)
				}
				in.Body = b
			}
			h, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			in.Headers = h
			in.Priority = domain.Priority(strings.ToLower(priority))

			svc, err := c.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			id, err := svc.Queue().AddItem(commandContext(cmd), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.URL, "url", "", "request URL, absolute or relative to the base URL")
	f.StringVar(&in.Method, "method", "POST", "HTTP method")
	f.StringVar(&body, "body", "", "request body")
	f.StringVar(&bodyFile, "body-file", "", "read the request body from a file")
	f.StringVar(&priority, "priority", string(domain.PriorityMedium), "priority: high, medium or low")
	f.StringArrayVar(&headers, "header", nil, "extra header as Key=Value, repeatable")
	return cmd
}

func newDeadLettersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dead-letters",
		Short: "List mutations that were abandoned",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			dls, err := svc.Queue().DeadLetters(commandContext(cmd))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tREASON\tSTATUS\tFAILED_AT\tREQUEST\tERROR")
			for _, dl := range dls {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s %s\t%s\n",
					dl.Item.ID, dl.Reason, dl.StatusCode,
					dl.FailedAt.Format(time.RFC3339),
					dl.Item.Method, dl.Item.URL, dl.Item.Error)
			}
			return w.Flush()
		},
	}
}

func newRequeueCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <item-id>",
		Short: "Move a dead-lettered mutation back into the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			item, err := svc.Queue().Requeue(commandContext(cmd), args[0])
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("no dead letter with id %s", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %s (%s %s)\n", item.ID, item.Method, item.URL)
			return nil
		},
	}
}

func newClearCmd(c *cli) *cobra.Command {
	var (
		yes    bool
		logout bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all local records, cached responses and queued mutations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			svc, err := c.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := commandContext(cmd)
			if logout {
				err = svc.Logout(ctx)
			} else {
				err = svc.Client().Logout(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	cmd.Flags().BoolVar(&logout, "logout", false, "also remove the session token file")
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q, want Key=Value", h)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func printResults(out io.Writer, results []domain.DeliveryResult) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOUTCOME\tSTATUS\tRETRIES\tREASON\tERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ItemID, r.Outcome, r.StatusCode, r.RetryCount, r.Reason, errText)
	}
	return w.Flush()
}
