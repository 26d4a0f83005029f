package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hidject/internal/metrics"
	"hidject/internal/network"
	"hidject/internal/protocol"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [host:port]",
		Short: "Follow the state feed of a running daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := mgr.Get()
			addr := fmt.Sprintf("127.0.0.1:%d", cfg.API.Port)
			if len(args) == 1 {
				addr = args[0]
			}

			client := network.NewStatusClient(addr, cfg.API.Token)
			client.OnState = func(p protocol.StatePayload) {
				line := fmt.Sprintf("%s state %s -> %s", stamp(), p.From, p.To)
				if p.Task != "" {
					line += " [" + p.Task + "]"
				}
				fmt.Println(line)
			}
			client.OnTask = func(p protocol.TaskPayload) {
				fmt.Printf("%s task %s %s\n", stamp(), p.Task, p.Outcome)
			}
			client.OnMode = func(p protocol.ModePayload) {
				fmt.Printf("%s mode %s %s\n", stamp(), p.Mode, p.Address)
			}
			client.Start()
			defer client.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [host:port]",
		Short: "Summarise frame and task counters of a running daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := mgr.Get()
			addr := fmt.Sprintf("127.0.0.1:%d", cfg.API.Port)
			if len(args) == 1 {
				addr = args[0]
			}
			s, err := fetchSummary(addr, cfg.API.Token)
			if err != nil {
				return err
			}
			fmt.Print(s)
			return nil
		},
	}
}

func fetchSummary(addr, token string) (metrics.Summary, error) {
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/metrics", nil)
	if err != nil {
		return metrics.Summary{}, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return metrics.Summary{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return metrics.Summary{}, fmt.Errorf("%s/metrics: %s", addr, resp.Status)
	}
	return metrics.ParseSummary(resp.Body)
}

func stamp() string {
	return time.Now().Format("15:04:05.000")
}

func newDiscoverCmd() *cobra.Command {
	var (
		port  int
		probe string
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find hidject daemons on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var found []network.DiscoveredServer
			if probe != "" {
				s, ok := network.ProbeServer(probe, 2*time.Second)
				if !ok {
					return fmt.Errorf("no hidject daemon at %s", probe)
				}
				found = append(found, s)
			} else {
				servers, err := network.ScanLAN(port)
				if err != nil {
					return err
				}
				found = servers
			}

			if len(found) == 0 {
				fmt.Println("No daemons found")
				return nil
			}
			for _, s := range found {
				fmt.Printf("%s\tstate=%s transport=%s target=%s\n", s.Addr, orDash(s.State), orDash(s.Transport), orDash(s.Target))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 18081, "API port to scan")
	cmd.Flags().StringVar(&probe, "probe", "", "Probe a single host:port instead of scanning")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
